package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
)

// Ensure TaskQueue implements the interface.
var _ driven.TaskQueue = (*TaskQueue)(nil)

// TaskQueue is an in-memory FIFO implementation of driven.TaskQueue.
type TaskQueue struct {
	mu    sync.Mutex
	order []string
	tasks map[string]domain.Task
}

// NewTaskQueue creates a new in-memory task queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{tasks: make(map[string]domain.Task)}
}

// Enqueue adds a task in the queued state.
func (q *TaskQueue) Enqueue(_ context.Context, task *domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.tasks[task.ID]; exists {
		return domain.ErrAlreadyExists
	}
	t := *task
	t.Status = domain.TaskQueued
	q.tasks[task.ID] = t
	q.order = append(q.order, task.ID)
	return nil
}

// Dequeue claims the oldest queued task. Returns nil when the queue is
// empty.
func (q *TaskQueue) Dequeue(_ context.Context) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.order {
		task := q.tasks[id]
		if task.Status != domain.TaskQueued {
			continue
		}
		task.Status = domain.TaskRunning
		task.Attempts++
		task.UpdatedAt = time.Now().UTC()
		q.tasks[id] = task
		claimed := task
		return &claimed, nil
	}
	return nil, nil
}

// MarkDone records successful completion of a claimed task.
func (q *TaskQueue) MarkDone(_ context.Context, taskID string) error {
	return q.setStatus(taskID, domain.TaskDone, "")
}

// MarkFailed records a failed attempt with its error message.
func (q *TaskQueue) MarkFailed(_ context.Context, taskID string, message string) error {
	return q.setStatus(taskID, domain.TaskFailed, message)
}

// Pending returns the number of tasks still waiting or running.
// Useful for tests draining the queue.
func (q *TaskQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := 0
	for _, task := range q.tasks {
		if task.Status == domain.TaskQueued || task.Status == domain.TaskRunning {
			pending++
		}
	}
	return pending
}

func (q *TaskQueue) setStatus(taskID string, status domain.TaskStatus, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.Status = status
	task.LastError = message
	task.UpdatedAt = time.Now().UTC()
	q.tasks[taskID] = task
	return nil
}
