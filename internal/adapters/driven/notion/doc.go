// Package notion implements the block source against the Notion API.
// It resolves page references, walks block children with cursor
// pagination, and flattens rich text into the plain and formatted forms
// the normalizer stores.
package notion
