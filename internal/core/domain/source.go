package domain

// SourceRoot is the root-level information the block source exposes for a
// document reference: just enough to create or refresh the document row.
type SourceRoot struct {
	// URL is the document location at the source.
	URL string

	// Title is the document title at the source.
	Title string
}

// SourceBlock is one node of the external block tree as the normalizer
// consumes it. The source client flattens provider-specific payloads into
// this shape.
type SourceBlock struct {
	// ID is the stable block identifier at the source.
	ID string

	// Type is the provider block type (paragraph, heading_1, ...).
	Type string

	// HasChildren indicates the block has nested children to fetch.
	HasChildren bool

	// PlainText is the unformatted text content.
	PlainText string

	// FormattedText is the source's formatted text content.
	FormattedText string
}
