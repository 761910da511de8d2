package domain

import "time"

// SnapshotStatus tracks a snapshot through its lifecycle.
type SnapshotStatus string

const (
	// SnapshotOpen means the snapshot row exists but work has not started.
	SnapshotOpen SnapshotStatus = "open"

	// SnapshotPending means normalization is in progress.
	SnapshotPending SnapshotStatus = "pending"

	// SnapshotProcessingDiffs means normalization committed with changes
	// and the two diff jobs are in flight.
	SnapshotProcessingDiffs SnapshotStatus = "processing_diffs"

	// SnapshotDone is the successful terminal state.
	SnapshotDone SnapshotStatus = "done"

	// SnapshotError is the failed terminal state; Error carries the cause.
	SnapshotError SnapshotStatus = "error"
)

// Snapshot is one ingestion attempt and its diff results, the unit of
// tracked work. Snapshots are never deleted; they form the audit trail.
type Snapshot struct {
	// ID is the unique snapshot identifier.
	ID string

	// DocumentID links to the resolved document. Nil until normalization
	// has matched or created the document.
	DocumentID *string

	// ReferenceID is the external document reference this snapshot was
	// requested for.
	ReferenceID string

	// TriggeredAt is when the snapshot was requested. Snapshot ordering
	// per document follows this timestamp.
	TriggeredAt time.Time

	// ExecutedAt is when normalization ran, nil before that.
	ExecutedAt *time.Time

	// FinishedAt is when the snapshot reached a terminal state.
	FinishedAt *time.Time

	// Status is the current lifecycle state.
	Status SnapshotStatus

	// Structure is the full document tree produced by normalization.
	Structure Structure

	// StructureDiff is the tree diff against the preceding snapshot,
	// written by the structure diff job.
	StructureDiff *StructureDiff

	// ChangedElements lists the IDs of elements whose content changed in
	// this pass. Nil until normalization commits; empty on a no-change
	// update.
	ChangedElements []string

	// ChangedElementsDiff maps element ID to a unified content diff,
	// written by the content diff job.
	ChangedElementsDiff map[string]string

	// Error is the human-readable failure message when Status is error.
	Error string
}
