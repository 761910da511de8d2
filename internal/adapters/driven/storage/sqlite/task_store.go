package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
)

// Ensure taskQueue implements the interface.
var _ driven.TaskQueue = (*taskQueue)(nil)

// taskQueue is the SQLite-backed durable task queue. Tasks survive process
// restarts; a claim is a transactional select-then-update so two workers
// never run the same task.
type taskQueue struct {
	store *Store
}

// Enqueue adds a task in the queued state.
func (q *taskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	now := time.Now().UTC()
	_, err := q.store.db.ExecContext(ctx, `
		INSERT INTO tasks (id, kind, snapshot_id, token, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, '', ?, ?)
	`, task.ID, string(task.Kind), task.SnapshotID, task.Token,
		string(domain.TaskQueued), toNano(now), toNano(now))
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// Dequeue claims the oldest queued task. Returns nil when no task is
// waiting.
func (q *taskQueue) Dequeue(ctx context.Context) (*domain.Task, error) {
	tx, err := q.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, kind, snapshot_id, token, status, attempts, last_error, created_at, updated_at
		FROM tasks
		WHERE status = ?
		ORDER BY created_at
		LIMIT 1
	`, string(domain.TaskQueued))

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}

	now := time.Now().UTC()
	task.Status = domain.TaskRunning
	task.Attempts++
	task.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, attempts = ?, updated_at = ? WHERE id = ?
	`, string(task.Status), task.Attempts, toNano(now), task.ID)
	if err != nil {
		return nil, fmt.Errorf("claiming task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return task, nil
}

// MarkDone records successful completion of a claimed task.
func (q *taskQueue) MarkDone(ctx context.Context, taskID string) error {
	return q.setStatus(ctx, taskID, domain.TaskDone, "")
}

// MarkFailed records a failed attempt with its error message.
func (q *taskQueue) MarkFailed(ctx context.Context, taskID string, message string) error {
	return q.setStatus(ctx, taskID, domain.TaskFailed, message)
}

func (q *taskQueue) setStatus(ctx context.Context, taskID string, status domain.TaskStatus, message string) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, last_error = ?, updated_at = ? WHERE id = ?
	`, string(status), message, toNano(time.Now().UTC()), taskID)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking task update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var kind, status string
	var createdAt, updatedAt int64
	err := row.Scan(&task.ID, &kind, &task.SnapshotID, &task.Token,
		&status, &task.Attempts, &task.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	task.Kind = domain.TaskKind(kind)
	task.Status = domain.TaskStatus(status)
	task.CreatedAt = fromNano(createdAt)
	task.UpdatedAt = fromNano(updatedAt)
	return &task, nil
}
