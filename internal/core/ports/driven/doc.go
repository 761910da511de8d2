// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - VersionStore: Versioned element persistence with cached pointers
//   - SnapshotStore: Snapshot lifecycle and diff result persistence
//   - TaskQueue: Durable queue carrying snapshot work between processes
//   - BlockSource / SourceFactory: Fetches the external block tree
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
