package domain

import "time"

// Document represents one logical external document tracked by atlas.
// Actual content lives in the versioned element tables; the document row
// only carries identity and bookkeeping.
type Document struct {
	// ID is the internal unique identifier.
	ID string

	// ReferenceID is the stable identifier of the document at the
	// external source (e.g. a Notion page ID).
	ReferenceID string

	// URL is the location of the document at the source.
	URL string

	// Title is the human-readable title at ingestion time.
	Title string

	// DocumentType describes the source kind (e.g. "notion_page").
	DocumentType string

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is bumped on every subsequent ingestion.
	UpdatedAt time.Time

	// IsActive marks documents that are still being tracked.
	IsActive bool
}

// DocumentElement is one structural node (block) of a document.
// The row itself is static; everything subject to change is traced in
// ElementMetadata and ElementContent version rows. The Latest* fields are
// cached pointers maintained by the version store so reads never need a
// max-aggregate over the version tables.
type DocumentElement struct {
	// ID is the stable external block ID, unchanged across versions.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// ElementType is the block type (paragraph, heading, list item, ...).
	ElementType string

	// LatestMetadataVersion points at the newest metadata version, or nil
	// if no metadata row exists yet.
	LatestMetadataVersion *time.Time

	// LatestContentVersion points at the newest content version, or nil
	// if no content row exists yet.
	LatestContentVersion *time.Time

	// LatestContentHash caches the hash of the newest content version.
	LatestContentHash string
}

// ElementMetadata is one versioned set of structural facts for an element.
// Rows are append-only; the primary key is (ElementID, Version).
type ElementMetadata struct {
	// ElementID links to the DocumentElement.
	ElementID string

	// Version is the snapshot timestamp this row was observed at.
	Version time.Time

	// Level is the nesting depth, 0 for root-level elements.
	Level int

	// Position is the absolute pre-order index within the document.
	Position int

	// ParentElement is the enclosing element, nil at level 0.
	ParentElement *string

	// Predecessor is the preceding sibling on the same level, nil if first.
	Predecessor *string

	// Successor is the following sibling on the same level, nil if last.
	Successor *string
}

// StructurallyEqual reports whether two metadata versions describe the same
// place in the document tree. Only level, position and parent participate;
// sibling links follow from those.
func (m ElementMetadata) StructurallyEqual(other ElementMetadata) bool {
	if m.Level != other.Level || m.Position != other.Position {
		return false
	}
	return equalPtr(m.ParentElement, other.ParentElement)
}

// ElementContent is one versioned content payload for an element.
// Rows are append-only; the primary key is (ElementID, Version). A new row
// is only written when HashRaw differs from the element's cached hash.
type ElementContent struct {
	// ElementID links to the DocumentElement.
	ElementID string

	// Version is the snapshot timestamp this content was observed at.
	Version time.Time

	// ContentRaw is the plain text content. Hashing covers only this
	// field, so formatting or structural moves never register as content
	// changes.
	ContentRaw string

	// ContentFormatted preserves the source's formatted text.
	ContentFormatted string

	// HashRaw is the content hash over ContentRaw.
	HashRaw string
}

// ElementWithMetadata pairs an element with its current metadata version,
// as returned by the version store's joined read.
type ElementWithMetadata struct {
	Element  DocumentElement
	Metadata ElementMetadata
}

// NewElement bundles the three rows written when a block is observed for
// the first time: the element itself plus its initial metadata and content
// versions.
type NewElement struct {
	Element  DocumentElement
	Metadata ElementMetadata
	Content  ElementContent
}

// NormalizationPass is the complete write set of one normalizer run.
// The version store applies it in a single transaction so a partial
// element tree is never visible.
type NormalizationPass struct {
	// Document is the upserted document row. IsNewDocument selects
	// between create and timestamp-only update.
	Document      Document
	IsNewDocument bool

	// NewElements are blocks seen for the first time.
	NewElements []NewElement

	// NewMetadata are appended metadata versions for existing elements
	// whose position or nesting changed.
	NewMetadata []ElementMetadata

	// NewContent are appended content versions for existing elements
	// whose content hash changed.
	NewContent []ElementContent

	// Snapshot is the snapshot row as it must read once the pass commits
	// (structure, changed elements, status, executed timestamp).
	Snapshot Snapshot
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
