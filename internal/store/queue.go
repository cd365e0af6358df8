package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Sync task kinds. Anything else in the sync_tasks table indicates a local
// bug and is dropped by the replayer without retry.
const (
	TaskKindProgress = "progress"
	TaskKindSetting  = "setting"
)

// SyncTask is one pending remote write. Tasks are replayed in enqueue order
// and deleted on success or once the retry ceiling is reached.
type SyncTask struct {
	ID         int64
	Kind       string
	Payload    json.RawMessage
	EnqueuedAt time.Time
	RetryCount int
}

// EnqueueSyncTask durably appends a pending remote write with retry_count 0.
func (s *Store) EnqueueSyncTask(ctx context.Context, kind string, payload json.RawMessage) error {
	if s.degraded {
		return ErrStoreUnavailable
	}
	if kind == "" {
		return fmt.Errorf("task kind is required")
	}

	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO sync_tasks (kind, payload, enqueued_at, retry_count) VALUES (?, ?, ?, 0)",
		kind, string(payload), s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue sync task: %w", err)
	}
	return nil
}

// PendingSyncTasks returns every queued task in enqueue order.
func (s *Store) PendingSyncTasks(ctx context.Context) ([]SyncTask, error) {
	if s.degraded {
		return nil, nil
	}

	rows, err := s.conn.QueryContext(ctx,
		"SELECT id, kind, payload, enqueued_at, retry_count FROM sync_tasks ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []SyncTask
	for rows.Next() {
		var task SyncTask
		var payload, enqueuedAt string

		if err := rows.Scan(&task.ID, &task.Kind, &payload, &enqueuedAt, &task.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		task.Payload = json.RawMessage(payload)
		if t, err := time.Parse(time.RFC3339Nano, enqueuedAt); err == nil {
			task.EnqueuedAt = t
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync tasks: %w", err)
	}

	return tasks, nil
}

// DeleteSyncTask removes a task, normally after successful remote
// application. Idempotent: deleting an absent task is not an error.
func (s *Store) DeleteSyncTask(ctx context.Context, id int64) error {
	if s.degraded {
		return ErrStoreUnavailable
	}

	if _, err := s.conn.ExecContext(ctx, "DELETE FROM sync_tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete sync task %d: %w", id, err)
	}
	return nil
}

// BumpSyncTaskRetry durably increments a task's retry counter and, if the
// new count has reached the ceiling, deletes the task in the same
// transaction. The increment is visible before any later pass reads the
// task, so a task is never retried beyond the ceiling even across process
// restarts.
//
// Returns the incremented count and whether the task was abandoned.
func (s *Store) BumpSyncTaskRetry(ctx context.Context, id int64, ceiling int) (int, bool, error) {
	if s.degraded {
		return 0, false, ErrStoreUnavailable
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		"UPDATE sync_tasks SET retry_count = retry_count + 1 WHERE id = ? RETURNING retry_count", id,
	).Scan(&count)
	if err == sql.ErrNoRows {
		// Task vanished (already applied or abandoned elsewhere).
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: bump retry for task %d: %v", ErrTransactionFailed, id, err)
	}

	abandoned := count >= ceiling
	if abandoned {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sync_tasks WHERE id = ?", id); err != nil {
			return 0, false, fmt.Errorf("%w: abandon task %d: %v", ErrTransactionFailed, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	return count, abandoned, nil
}

// SyncTaskCount returns the number of pending sync tasks.
func (s *Store) SyncTaskCount(ctx context.Context) (int, error) {
	if s.degraded {
		return 0, nil
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sync tasks: %w", err)
	}
	return count, nil
}
