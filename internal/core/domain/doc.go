// Package domain defines the core business entities for atlas.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: One logical external document
//   - DocumentElement: One structural node with cached version pointers
//   - ElementMetadata / ElementContent: Append-only version rows
//   - Snapshot: One ingestion attempt and its diff results
//   - Structure: The nested document tree representation
//   - Task: One durable unit of queued work
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
