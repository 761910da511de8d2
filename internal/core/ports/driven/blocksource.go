package driven

import (
	"context"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

// BlockSource fetches the raw block tree from the external document
// source. These are the only two capabilities the normalizer needs.
//
// Implementations map provider failures onto the domain's source errors:
// domain.ErrSourceRateLimited and domain.ErrSourceUnavailable are
// transient, domain.ErrSourceNotFound and domain.ErrSourceAuth are fatal
// for the current snapshot.
type BlockSource interface {
	// GetRoot resolves a document reference to its URL and title.
	GetRoot(ctx context.Context, referenceID string) (*domain.SourceRoot, error)

	// GetChildren returns the ordered direct children of a block.
	GetChildren(ctx context.Context, blockID string) ([]domain.SourceBlock, error)
}

// SourceFactory creates block sources, optionally bound to a per-request
// credential. An empty token selects the configured default credential.
type SourceFactory interface {
	Create(ctx context.Context, token string) (BlockSource, error)
}
