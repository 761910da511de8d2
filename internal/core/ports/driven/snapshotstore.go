package driven

import (
	"context"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

// SnapshotStore persists snapshot rows across their lifecycle.
//
// The two diff jobs write disjoint columns of the same row through the
// targeted setters below, never a whole-row overwrite, so they can run
// concurrently without coordination.
type SnapshotStore interface {
	// Create stores a freshly triggered snapshot (status open).
	Create(ctx context.Context, snapshot *domain.Snapshot) error

	// Get retrieves a snapshot by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Snapshot, error)

	// SetPending marks the snapshot as being normalized.
	SetPending(ctx context.Context, id string) error

	// SetStructureDiff writes the structure diff result column.
	SetStructureDiff(ctx context.Context, id string, diff *domain.StructureDiff) error

	// SetContentDiff writes the per-element content diff column.
	// An empty map is a valid result (no comparable elements).
	SetContentDiff(ctx context.Context, id string, diffs map[string]string) error

	// SetError moves the snapshot to the error state with a message.
	SetError(ctx context.Context, id string, message string) error

	// FinishIfComplete flips a processing_diffs snapshot to done once
	// both diff result columns are present. The check and update are one
	// atomic statement, so the two diff jobs cannot race each other into
	// a lost update. Returns true if the snapshot was finished by this
	// call.
	FinishIfComplete(ctx context.Context, id string) (bool, error)

	// PreviousSnapshot returns the snapshot immediately preceding the
	// given one for the same document, by triggered-time ordering.
	// Returns domain.ErrNotFound if there is none.
	PreviousSnapshot(ctx context.Context, snapshotID string) (*domain.Snapshot, error)
}
