package domain

import "time"

// TaskKind identifies the unit of work a queued task performs.
type TaskKind string

const (
	// TaskNormalize runs the normalizer for a snapshot.
	TaskNormalize TaskKind = "normalize"

	// TaskStructureDiff computes the tree diff against the preceding
	// snapshot.
	TaskStructureDiff TaskKind = "structure_diff"

	// TaskContentDiff computes per-element content diffs for the
	// snapshot's changed elements.
	TaskContentDiff TaskKind = "content_diff"
)

// TaskStatus tracks a task through the queue.
type TaskStatus string

const (
	// TaskQueued means the task is waiting for a worker.
	TaskQueued TaskStatus = "queued"

	// TaskRunning means a worker has claimed the task.
	TaskRunning TaskStatus = "running"

	// TaskDone means the task completed.
	TaskDone TaskStatus = "done"

	// TaskFailed means the task failed; LastError carries the cause.
	TaskFailed TaskStatus = "failed"
)

// Task is one durable unit of work addressed by snapshot ID. All three
// kinds are idempotent: re-running a task against the same snapshot either
// re-derives no-op changes or overwrites the task's own output fields.
type Task struct {
	// ID is the unique task identifier.
	ID string

	// Kind selects the work to perform.
	Kind TaskKind

	// SnapshotID is the snapshot this task operates on.
	SnapshotID string

	// Token optionally carries a per-request source credential for
	// normalize tasks. Empty means the configured credential is used.
	Token string

	// Status is the current queue state.
	Status TaskStatus

	// Attempts counts how often a worker has claimed the task.
	Attempts int

	// LastError is the most recent failure message, if any.
	LastError string

	// CreatedAt is when the task was enqueued. Workers claim tasks in
	// creation order.
	CreatedAt time.Time

	// UpdatedAt is bumped on every status change.
	UpdatedAt time.Time
}
