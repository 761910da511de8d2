package driven

import (
	"context"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

// TaskQueue is the durable queue carrying snapshot work. The HTTP request
// path only enqueues; a bounded worker pool dequeues and executes. All
// cross-component communication goes through the store or this queue,
// never through in-process shared memory.
type TaskQueue interface {
	// Enqueue adds a task in the queued state.
	Enqueue(ctx context.Context, task *domain.Task) error

	// Dequeue claims the oldest queued task, marking it running and
	// incrementing its attempt counter atomically. Returns nil and no
	// error when the queue is empty.
	Dequeue(ctx context.Context) (*domain.Task, error)

	// MarkDone records successful completion of a claimed task.
	MarkDone(ctx context.Context, taskID string) error

	// MarkFailed records a failed attempt with its error message.
	MarkFailed(ctx context.Context, taskID string, message string) error
}
