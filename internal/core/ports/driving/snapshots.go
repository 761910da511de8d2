package driving

import (
	"context"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

// SnapshotService is the public contract of the snapshot orchestrator.
type SnapshotService interface {
	// CreateSnapshot records a new ingestion attempt for a document
	// reference and enqueues the normalization work. It is synchronous
	// and store-only: no external I/O happens before it returns the
	// snapshot ID.
	CreateSnapshot(ctx context.Context, referenceID, token string) (string, error)

	// GetSnapshot returns the snapshot with its current status and any
	// diff results. Returns domain.ErrNotFound for unknown IDs.
	GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error)

	// Execute runs one dequeued task: normalization dispatch or one of
	// the two diff jobs. Called by queue workers, not by API clients.
	Execute(ctx context.Context, task *domain.Task) error
}
