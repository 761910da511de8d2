package driven

import (
	"context"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

// VersionStore persists documents and their versioned elements.
//
// The store, not its callers, enforces the cached-pointer consistency rule:
// whenever a metadata or content version row is inserted, the owning
// element's cached latest-version pointer is bumped to that version if and
// only if the new version is strictly newer than the cached one. Insert and
// pointer update are atomic, so a reader never observes a version row the
// pointer does not yet account for, and an out-of-order write can never
// regress the pointer.
type VersionStore interface {
	// GetDocumentByReference retrieves a document by its external
	// reference ID. Returns domain.ErrNotFound if no document exists.
	GetDocumentByReference(ctx context.Context, referenceID string) (*domain.Document, error)

	// GetElement retrieves an element by its stable external ID.
	// Returns domain.ErrNotFound if the element has never been observed.
	GetElement(ctx context.Context, id string) (*domain.DocumentElement, error)

	// ElementsWithCurrentMetadata returns all elements of a document
	// joined to their current metadata version, ordered by position.
	ElementsWithCurrentMetadata(ctx context.Context, documentID string) ([]domain.ElementWithMetadata, error)

	// LatestContentVersions returns up to limit content versions for an
	// element, newest first.
	LatestContentVersions(ctx context.Context, elementID string, limit int) ([]domain.ElementContent, error)

	// InsertElement writes a first-seen element together with its initial
	// metadata and content versions, atomically.
	InsertElement(ctx context.Context, el *domain.NewElement) error

	// InsertMetadataVersion appends a metadata version and conditionally
	// bumps the element's cached metadata pointer, atomically.
	InsertMetadataVersion(ctx context.Context, meta *domain.ElementMetadata) error

	// InsertContentVersion appends a content version and conditionally
	// bumps the element's cached content pointer and hash, atomically.
	InsertContentVersion(ctx context.Context, content *domain.ElementContent) error

	// ApplyPass applies the complete write set of one normalization run
	// (document upsert, new elements, appended versions, snapshot update)
	// in a single transaction. Any failure rolls the whole pass back;
	// a partial element tree is never visible.
	ApplyPass(ctx context.Context, pass *domain.NormalizationPass) error
}
