package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
	"github.com/custodia-labs/atlas/internal/core/ports/driving"
	"github.com/custodia-labs/atlas/internal/logger"
)

// Ensure SnapshotOrchestrator implements the interface.
var _ driving.SnapshotService = (*SnapshotOrchestrator)(nil)

// SnapshotOrchestrator drives snapshots through their lifecycle:
// open -> pending -> {done | processing_diffs | error}, with
// processing_diffs resolving to done once both diff jobs have written
// back. It creates snapshot rows, runs the normalizer and fans out the
// two diff jobs through the task queue.
type SnapshotOrchestrator struct {
	snapshots  driven.SnapshotStore
	versions   driven.VersionStore
	queue      driven.TaskQueue
	sources    driven.SourceFactory
	normalizer *Normalizer

	// Normalization runs for the same document are serialized; a second
	// dispatch for an in-flight reference fails fast instead of
	// interleaving writes.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewSnapshotOrchestrator creates the orchestrator.
func NewSnapshotOrchestrator(
	snapshots driven.SnapshotStore,
	versions driven.VersionStore,
	queue driven.TaskQueue,
	sources driven.SourceFactory,
) *SnapshotOrchestrator {
	return &SnapshotOrchestrator{
		snapshots:  snapshots,
		versions:   versions,
		queue:      queue,
		sources:    sources,
		normalizer: NewNormalizer(versions),
		inflight:   make(map[string]struct{}),
	}
}

// CreateSnapshot records a new ingestion attempt and enqueues the
// normalization task. Store-only and fast; no external I/O happens here.
func (o *SnapshotOrchestrator) CreateSnapshot(ctx context.Context, referenceID, token string) (string, error) {
	if referenceID == "" {
		return "", fmt.Errorf("%w: empty reference id", domain.ErrInvalidInput)
	}

	snapshot := &domain.Snapshot{
		ID:          uuid.NewString(),
		ReferenceID: referenceID,
		TriggeredAt: time.Now().UTC(),
		Status:      domain.SnapshotOpen,
	}
	if err := o.snapshots.Create(ctx, snapshot); err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}

	if err := o.enqueue(ctx, domain.TaskNormalize, snapshot.ID, token); err != nil {
		return "", err
	}

	logger.Info("Snapshot %s triggered for reference %s", snapshot.ID, referenceID)
	return snapshot.ID, nil
}

// GetSnapshot returns a snapshot with its current status and results.
func (o *SnapshotOrchestrator) GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	return o.snapshots.Get(ctx, id)
}

// Execute runs one dequeued task.
func (o *SnapshotOrchestrator) Execute(ctx context.Context, task *domain.Task) error {
	switch task.Kind {
	case domain.TaskNormalize:
		return o.dispatch(ctx, task)
	case domain.TaskStructureDiff:
		return o.runStructureDiff(ctx, task.SnapshotID)
	case domain.TaskContentDiff:
		return o.runContentDiff(ctx, task.SnapshotID)
	default:
		return fmt.Errorf("%w: unknown task kind %q", domain.ErrInvalidInput, task.Kind)
	}
}

// dispatch runs the normalizer for a snapshot and, when this pass updated
// an existing document with changes, fans out the two diff jobs.
func (o *SnapshotOrchestrator) dispatch(ctx context.Context, task *domain.Task) error {
	snapshot, err := o.snapshots.Get(ctx, task.SnapshotID)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", task.SnapshotID, err)
	}

	if !o.acquire(snapshot.ReferenceID) {
		return fmt.Errorf("reference %s: %w", snapshot.ReferenceID, domain.ErrSnapshotInProgress)
	}
	defer o.release(snapshot.ReferenceID)

	if err := o.snapshots.SetPending(ctx, snapshot.ID); err != nil {
		return fmt.Errorf("mark snapshot pending: %w", err)
	}

	source, err := o.sources.Create(ctx, task.Token)
	if err != nil {
		o.recordError(ctx, snapshot.ID, err)
		return err
	}

	now := time.Now().UTC()
	result, err := o.normalizer.Run(ctx, source, snapshot, now)
	if err != nil {
		o.recordError(ctx, snapshot.ID, err)
		return err
	}

	hasChanges := len(result.ChangedElements) > 0 || result.StructureChanged
	status := domain.SnapshotDone
	if result.IsUpdate && hasChanges {
		status = domain.SnapshotProcessingDiffs
	}

	snapshot.DocumentID = &result.Pass.Document.ID
	snapshot.ExecutedAt = &now
	snapshot.Status = status
	snapshot.Structure = result.Structure
	snapshot.ChangedElements = result.ChangedElements
	if status == domain.SnapshotDone {
		snapshot.FinishedAt = &now
	}
	result.Pass.Snapshot = *snapshot

	if err := o.versions.ApplyPass(ctx, result.Pass); err != nil {
		o.recordError(ctx, snapshot.ID, err)
		return err
	}

	logger.Info("Snapshot %s normalized: %d new, %d changed, status %s",
		snapshot.ID, len(result.Pass.NewElements), len(result.ChangedElements), status)

	if status != domain.SnapshotProcessingDiffs {
		return nil
	}

	// Fan-out, not a pipeline: the jobs read disjoint data and write
	// disjoint snapshot columns, so they may run concurrently.
	if err := o.enqueue(ctx, domain.TaskStructureDiff, snapshot.ID, ""); err != nil {
		o.recordError(ctx, snapshot.ID, err)
		return err
	}
	if err := o.enqueue(ctx, domain.TaskContentDiff, snapshot.ID, ""); err != nil {
		o.recordError(ctx, snapshot.ID, err)
		return err
	}
	return nil
}

// runStructureDiff compares the snapshot's tree with the one recorded on
// the immediately preceding snapshot of the same document.
func (o *SnapshotOrchestrator) runStructureDiff(ctx context.Context, snapshotID string) error {
	logger.Debug("Running structure diff for snapshot %s", snapshotID)

	snapshot, err := o.snapshots.Get(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", snapshotID, err)
	}

	var diff *domain.StructureDiff
	previous, err := o.snapshots.PreviousSnapshot(ctx, snapshotID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Nothing to diff against. An empty summary is recorded anyway
		// so the snapshot status can still converge to done.
		diff = &domain.StructureDiff{NewElementCount: snapshot.Structure.Count()}
	case err != nil:
		o.recordError(ctx, snapshotID, fmt.Errorf("load previous snapshot: %w", err))
		return err
	case previous.Structure == nil:
		diff = &domain.StructureDiff{NewElementCount: snapshot.Structure.Count()}
	default:
		diff = DiffStructures(previous.Structure, snapshot.Structure)
	}

	if err := o.snapshots.SetStructureDiff(ctx, snapshotID, diff); err != nil {
		o.recordError(ctx, snapshotID, fmt.Errorf("store structure diff: %w", err))
		return err
	}
	return o.finish(ctx, snapshotID)
}

// runContentDiff produces a unified diff for every element in the
// snapshot's changed list, comparing its two most recent content versions.
func (o *SnapshotOrchestrator) runContentDiff(ctx context.Context, snapshotID string) error {
	logger.Debug("Running content diff for snapshot %s", snapshotID)

	snapshot, err := o.snapshots.Get(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", snapshotID, err)
	}

	diffs := make(map[string]string, len(snapshot.ChangedElements))
	for _, elementID := range snapshot.ChangedElements {
		contents, err := o.versions.LatestContentVersions(ctx, elementID, 2)
		if err != nil {
			o.recordError(ctx, snapshotID, fmt.Errorf("load content versions for %s: %w", elementID, err))
			return err
		}
		if len(contents) < 2 {
			// Brand-new element: nothing to compare against. Distinct
			// from "no change", so it is skipped, not diffed empty.
			logger.Debug("Element %s has %d content versions, skipping diff", elementID, len(contents))
			continue
		}
		text, err := UnifiedContentDiff(elementID, contents[1], contents[0])
		if err != nil {
			o.recordError(ctx, snapshotID, err)
			return err
		}
		diffs[elementID] = text
	}

	if err := o.snapshots.SetContentDiff(ctx, snapshotID, diffs); err != nil {
		o.recordError(ctx, snapshotID, fmt.Errorf("store content diff: %w", err))
		return err
	}
	return o.finish(ctx, snapshotID)
}

// finish flips the snapshot to done once both diff columns are present.
func (o *SnapshotOrchestrator) finish(ctx context.Context, snapshotID string) error {
	finished, err := o.snapshots.FinishIfComplete(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("finish snapshot %s: %w", snapshotID, err)
	}
	if finished {
		logger.Info("Snapshot %s done", snapshotID)
	}
	return nil
}

// recordError moves the snapshot to the error state. A secondary store
// failure here is logged and swallowed so it never masks the primary one.
func (o *SnapshotOrchestrator) recordError(ctx context.Context, snapshotID string, cause error) {
	logger.Warn("Snapshot %s failed: %v", snapshotID, cause)
	if err := o.snapshots.SetError(ctx, snapshotID, fmt.Sprintf("processing failed: %v", cause)); err != nil {
		logger.Warn("Failed to record snapshot error: %v", err)
	}
}

func (o *SnapshotOrchestrator) enqueue(ctx context.Context, kind domain.TaskKind, snapshotID, token string) error {
	now := time.Now().UTC()
	task := &domain.Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		SnapshotID: snapshotID,
		Token:      token,
		Status:     domain.TaskQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s task: %w", kind, err)
	}
	return nil
}

func (o *SnapshotOrchestrator) acquire(referenceID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[referenceID]; busy {
		return false
	}
	o.inflight[referenceID] = struct{}{}
	return true
}

func (o *SnapshotOrchestrator) release(referenceID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, referenceID)
}
