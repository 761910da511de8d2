package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

func TestVersionStore_GetDocumentByReference(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedDocument(t, store, now)
	ctx := context.Background()

	doc, err := store.VersionStore().GetDocumentByReference(ctx, "ref-1")

	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "Seed", doc.Title)
	assert.Equal(t, "notion_page", doc.DocumentType)
	assert.True(t, doc.IsActive)
	assert.True(t, doc.CreatedAt.Equal(now))
}

func TestVersionStore_GetDocumentByReference_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.VersionStore().GetDocumentByReference(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionStore_GetElement(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedDocument(t, store, now)
	ctx := context.Background()

	el, err := store.VersionStore().GetElement(ctx, "A")

	require.NoError(t, err)
	assert.Equal(t, "doc-1", el.DocumentID)
	require.NotNil(t, el.LatestMetadataVersion)
	assert.True(t, el.LatestMetadataVersion.Equal(now))
	require.NotNil(t, el.LatestContentVersion)
	assert.True(t, el.LatestContentVersion.Equal(now))
	assert.Equal(t, "hash-a1", el.LatestContentHash)

	_, err = store.VersionStore().GetElement(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionStore_ElementsWithCurrentMetadata(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedDocument(t, store, now)
	ctx := context.Background()

	elements, err := store.VersionStore().ElementsWithCurrentMetadata(ctx, "doc-1")

	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "A", elements[0].Element.ID)
	assert.Equal(t, 0, elements[0].Metadata.Position)
	assert.Equal(t, "B", elements[1].Element.ID)
	assert.Equal(t, 1, elements[1].Metadata.Level)
	require.NotNil(t, elements[1].Metadata.ParentElement)
	assert.Equal(t, "A", *elements[1].Metadata.ParentElement)
}

func TestVersionStore_ElementsWithCurrentMetadata_FollowsPointer(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedDocument(t, store, now)
	ctx := context.Background()

	// Append a newer metadata version moving A to position 5. The joined
	// read must return the new row only.
	later := now.Add(time.Hour)
	err := store.VersionStore().InsertMetadataVersion(ctx, &domain.ElementMetadata{
		ElementID: "A", Version: later, Level: 0, Position: 5,
	})
	require.NoError(t, err)

	elements, err := store.VersionStore().ElementsWithCurrentMetadata(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "B", elements[0].Element.ID)
	assert.Equal(t, "A", elements[1].Element.ID)
	assert.Equal(t, 5, elements[1].Metadata.Position)
	assert.True(t, elements[1].Metadata.Version.Equal(later))
}

func TestVersionStore_LatestContentVersions(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedDocument(t, store, now)
	ctx := context.Background()

	for i, text := range []string{"beta v2", "beta v3"} {
		err := store.VersionStore().InsertContentVersion(ctx, &domain.ElementContent{
			ElementID:  "B",
			Version:    now.Add(time.Duration(i+1) * time.Hour),
			ContentRaw: text,
			HashRaw:    text,
		})
		require.NoError(t, err)
	}

	contents, err := store.VersionStore().LatestContentVersions(ctx, "B", 2)

	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, "beta v3", contents[0].ContentRaw)
	assert.Equal(t, "beta v2", contents[1].ContentRaw)
}

func TestVersionStore_PointerNeverRegresses(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedDocument(t, store, now)
	ctx := context.Background()

	// An out-of-order write with an older version must append the row
	// without moving the cached pointer back.
	earlier := now.Add(-time.Hour)
	err := store.VersionStore().InsertContentVersion(ctx, &domain.ElementContent{
		ElementID:  "A",
		Version:    earlier,
		ContentRaw: "stale",
		HashRaw:    "hash-a0",
	})
	require.NoError(t, err)

	el, err := store.VersionStore().GetElement(ctx, "A")
	require.NoError(t, err)
	assert.True(t, el.LatestContentVersion.Equal(now))
	assert.Equal(t, "hash-a1", el.LatestContentHash)

	// Both rows exist regardless.
	contents, err := store.VersionStore().LatestContentVersions(ctx, "A", 10)
	require.NoError(t, err)
	assert.Len(t, contents, 2)
}

func TestVersionStore_ApplyPass_UpdatesSnapshotRow(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedDocument(t, store, now)
	ctx := context.Background()

	snap, err := store.SnapshotStore().Get(ctx, "snap-1")

	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotDone, snap.Status)
	require.NotNil(t, snap.DocumentID)
	assert.Equal(t, "doc-1", *snap.DocumentID)
	assert.Equal(t, 2, snap.Structure.Count())
	assert.NotNil(t, snap.ChangedElements)
	assert.Empty(t, snap.ChangedElements)
}

func TestVersionStore_ApplyPass_MissingSnapshotRollsBack(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	pass := &domain.NormalizationPass{
		IsNewDocument: true,
		Document: domain.Document{
			ID: "doc-x", ReferenceID: "ref-x", URL: "u", Title: "t",
			DocumentType: "notion_page", CreatedAt: now, UpdatedAt: now, IsActive: true,
		},
		Snapshot: domain.Snapshot{ID: "never-created"},
	}

	err := store.VersionStore().ApplyPass(ctx, pass)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	// The document insert must have rolled back with it.
	_, err = store.VersionStore().GetDocumentByReference(ctx, "ref-x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionStore_ApplyPass_UpdateTouchesTimestamp(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedDocument(t, store, now)
	ctx := context.Background()

	later := now.Add(24 * time.Hour)
	snapshot := &domain.Snapshot{ID: "snap-2", ReferenceID: "ref-1", TriggeredAt: later, Status: domain.SnapshotOpen}
	require.NoError(t, store.SnapshotStore().Create(ctx, snapshot))

	docID := "doc-1"
	pass := &domain.NormalizationPass{
		Document: domain.Document{
			ID: docID, ReferenceID: "ref-1", URL: "https://example.com/ref-1",
			Title: "Seed Renamed", DocumentType: "notion_page",
			CreatedAt: now, UpdatedAt: later, IsActive: true,
		},
		Snapshot: domain.Snapshot{
			ID: "snap-2", DocumentID: &docID, ReferenceID: "ref-1",
			TriggeredAt: later, ExecutedAt: &later, FinishedAt: &later,
			Status: domain.SnapshotDone, ChangedElements: []string{},
		},
	}
	require.NoError(t, store.VersionStore().ApplyPass(ctx, pass))

	doc, err := store.VersionStore().GetDocumentByReference(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "Seed Renamed", doc.Title)
	assert.True(t, doc.UpdatedAt.Equal(later))
	assert.True(t, doc.CreatedAt.Equal(now))
}
