package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/atlas/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/atlas/internal/core/domain"
)

type orchestratorFixture struct {
	snapshots    *memory.SnapshotStore
	versions     *memory.VersionStore
	queue        *memory.TaskQueue
	source       *fakeSource
	orchestrator *SnapshotOrchestrator
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	snapshots := memory.NewSnapshotStore()
	versions := memory.NewVersionStore(snapshots)
	queue := memory.NewTaskQueue()
	source := pageSource()
	orchestrator := NewSnapshotOrchestrator(snapshots, versions, queue, &fakeFactory{source: source})
	return &orchestratorFixture{
		snapshots:    snapshots,
		versions:     versions,
		queue:        queue,
		source:       source,
		orchestrator: orchestrator,
	}
}

// drainQueue executes queued tasks until none remain, like a worker
// would. Task failures propagate to the caller.
func (f *orchestratorFixture) drainQueue(t *testing.T) error {
	t.Helper()
	ctx := context.Background()
	for {
		task, err := f.queue.Dequeue(ctx)
		require.NoError(t, err)
		if task == nil {
			return nil
		}
		if err := f.orchestrator.Execute(ctx, task); err != nil {
			require.NoError(t, f.queue.MarkFailed(ctx, task.ID, err.Error()))
			return err
		}
		require.NoError(t, f.queue.MarkDone(ctx, task.ID))
	}
}

func TestOrchestrator_CreateSnapshot(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	id, err := f.orchestrator.CreateSnapshot(ctx, testReference, "tok")

	require.NoError(t, err)
	snap, err := f.orchestrator.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotOpen, snap.Status)
	assert.Equal(t, testReference, snap.ReferenceID)
	assert.Nil(t, snap.DocumentID)

	task, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, domain.TaskNormalize, task.Kind)
	assert.Equal(t, id, task.SnapshotID)
	assert.Equal(t, "tok", task.Token)
}

func TestOrchestrator_CreateSnapshot_EmptyReference(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orchestrator.CreateSnapshot(context.Background(), "", "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOrchestrator_GetSnapshot_NotFound(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orchestrator.GetSnapshot(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrchestrator_FirstIngestionFinishesDone(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	id, err := f.orchestrator.CreateSnapshot(ctx, testReference, "")
	require.NoError(t, err)
	require.NoError(t, f.drainQueue(t))

	snap, err := f.orchestrator.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotDone, snap.Status)
	require.NotNil(t, snap.DocumentID)
	assert.NotNil(t, snap.ExecutedAt)
	assert.NotNil(t, snap.FinishedAt)
	assert.Equal(t, 3, snap.Structure.Count())
	assert.Empty(t, snap.ChangedElements)
	// No diff fan-out on a first ingestion.
	assert.Nil(t, snap.StructureDiff)
	assert.Nil(t, snap.ChangedElementsDiff)
	assert.Equal(t, 0, f.queue.Pending())
}

func TestOrchestrator_UnchangedUpdateFinishesDone(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	_, err := f.orchestrator.CreateSnapshot(ctx, testReference, "")
	require.NoError(t, err)
	require.NoError(t, f.drainQueue(t))

	id, err := f.orchestrator.CreateSnapshot(ctx, testReference, "")
	require.NoError(t, err)
	require.NoError(t, f.drainQueue(t))

	snap, err := f.orchestrator.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotDone, snap.Status)
	assert.Nil(t, snap.StructureDiff)
	assert.Equal(t, 0, f.queue.Pending())
}

func TestOrchestrator_ContentChangeProducesDiffs(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	_, err := f.orchestrator.CreateSnapshot(ctx, testReference, "")
	require.NoError(t, err)
	require.NoError(t, f.drainQueue(t))

	f.source.children["A"] = []domain.SourceBlock{textBlock("B", "beta edited", false)}
	id, err := f.orchestrator.CreateSnapshot(ctx, testReference, "")
	require.NoError(t, err)

	// Run only the normalize task: the snapshot must sit in
	// processing_diffs with both diff jobs queued.
	task, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.TaskNormalize, task.Kind)
	require.NoError(t, f.orchestrator.Execute(ctx, task))
	require.NoError(t, f.queue.MarkDone(ctx, task.ID))

	snap, err := f.orchestrator.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotProcessingDiffs, snap.Status)
	assert.Equal(t, []string{"B"}, snap.ChangedElements)
	assert.Nil(t, snap.FinishedAt)
	assert.Equal(t, 2, f.queue.Pending())

	require.NoError(t, f.drainQueue(t))

	snap, err = f.orchestrator.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotDone, snap.Status)
	assert.NotNil(t, snap.FinishedAt)
	require.NotNil(t, snap.StructureDiff)
	assert.Empty(t, snap.StructureDiff.Changes)
	require.Contains(t, snap.ChangedElementsDiff, "B")
	assert.Contains(t, snap.ChangedElementsDiff["B"], "-beta")
	assert.Contains(t, snap.ChangedElementsDiff["B"], "+beta edited")
}

func TestOrchestrator_StructureChangeProducesDiffs(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	_, err := f.orchestrator.CreateSnapshot(ctx, testReference, "")
	require.NoError(t, err)
	require.NoError(t, f.drainQueue(t))

	f.source.children[testReference] = []domain.SourceBlock{
		textBlock("C", "gamma", false),
		textBlock("A", "alpha", true),
	}
	id, err := f.orchestrator.CreateSnapshot(ctx, testReference, "")
	require.NoError(t, err)
	require.NoError(t, f.drainQueue(t))

	snap, err := f.orchestrator.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotDone, snap.Status)
	require.NotNil(t, snap.StructureDiff)
	assert.NotEmpty(t, snap.StructureDiff.Changes)
	for _, change := range snap.StructureDiff.Changes {
		assert.Equal(t, domain.StructureMove, change.Op)
	}
	// No content changed, but the empty diff map still has to land so
	// the status can converge.
	require.NotNil(t, snap.ChangedElementsDiff)
	assert.Empty(t, snap.ChangedElementsDiff)
}

func TestOrchestrator_SourceFailureRecordsError(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	f.source.rootErr = domain.ErrSourceNotFound

	id, err := f.orchestrator.CreateSnapshot(ctx, testReference, "")
	require.NoError(t, err)

	err = f.drainQueue(t)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	snap, getErr := f.orchestrator.GetSnapshot(ctx, id)
	require.NoError(t, getErr)
	assert.Equal(t, domain.SnapshotError, snap.Status)
	assert.Contains(t, snap.Error, "processing failed")
	assert.NotNil(t, snap.FinishedAt)
}

func TestOrchestrator_InFlightReferenceConflicts(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	id, err := f.orchestrator.CreateSnapshot(ctx, testReference, "")
	require.NoError(t, err)

	require.True(t, f.orchestrator.acquire(testReference))
	defer f.orchestrator.release(testReference)

	task, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	err = f.orchestrator.Execute(ctx, task)

	assert.ErrorIs(t, err, domain.ErrSnapshotInProgress)

	// The snapshot stays retryable, not failed.
	snap, err := f.orchestrator.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, domain.SnapshotError, snap.Status)
}

func TestOrchestrator_UnknownTaskKind(t *testing.T) {
	f := newOrchestratorFixture(t)

	err := f.orchestrator.Execute(context.Background(), &domain.Task{ID: "t", Kind: "bogus"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
