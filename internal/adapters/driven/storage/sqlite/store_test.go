package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)

	require.NoError(t, err)
	assert.Contains(t, store.Path(), "atlas.db")
	require.NoError(t, store.Close())
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not re-run applied migrations.
	store, err = NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

// seedDocument applies a first ingestion pass: one document with
// elements A (level 0) and B (level 1, child of A).
func seedDocument(t *testing.T, store *Store, now time.Time) {
	t.Helper()
	ctx := context.Background()

	snapshot := &domain.Snapshot{
		ID:          "snap-1",
		ReferenceID: "ref-1",
		TriggeredAt: now,
		Status:      domain.SnapshotOpen,
	}
	require.NoError(t, store.SnapshotStore().Create(ctx, snapshot))

	docID := "doc-1"
	parent := "A"
	pass := &domain.NormalizationPass{
		IsNewDocument: true,
		Document: domain.Document{
			ID:           docID,
			ReferenceID:  "ref-1",
			URL:          "https://example.com/ref-1",
			Title:        "Seed",
			DocumentType: "notion_page",
			CreatedAt:    now,
			UpdatedAt:    now,
			IsActive:     true,
		},
		NewElements: []domain.NewElement{
			{
				Element:  domain.DocumentElement{ID: "A", DocumentID: docID, ElementType: "paragraph"},
				Metadata: domain.ElementMetadata{ElementID: "A", Version: now, Level: 0, Position: 0},
				Content:  domain.ElementContent{ElementID: "A", Version: now, ContentRaw: "alpha", ContentFormatted: "alpha", HashRaw: "hash-a1"},
			},
			{
				Element:  domain.DocumentElement{ID: "B", DocumentID: docID, ElementType: "paragraph"},
				Metadata: domain.ElementMetadata{ElementID: "B", Version: now, Level: 1, Position: 1, ParentElement: &parent},
				Content:  domain.ElementContent{ElementID: "B", Version: now, ContentRaw: "beta", ContentFormatted: "beta", HashRaw: "hash-b1"},
			},
		},
		Snapshot: domain.Snapshot{
			ID:          "snap-1",
			DocumentID:  &docID,
			ReferenceID: "ref-1",
			TriggeredAt: now,
			ExecutedAt:  &now,
			FinishedAt:  &now,
			Status:      domain.SnapshotDone,
			Structure: domain.Structure{
				{ID: "A", Children: domain.Structure{{ID: "B"}}},
			},
			ChangedElements: []string{},
		},
	}
	require.NoError(t, store.VersionStore().ApplyPass(ctx, pass))
}
