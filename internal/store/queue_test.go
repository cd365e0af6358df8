package store

import (
	"context"
	"encoding/json"
	"testing"
)

func TestEnqueueAndPendingOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, payload := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		if err := st.EnqueueSyncTask(ctx, TaskKindProgress, json.RawMessage(payload)); err != nil {
			t.Fatalf("EnqueueSyncTask failed: %v", err)
		}
	}

	tasks, err := st.PendingSyncTasks(ctx)
	if err != nil {
		t.Fatalf("PendingSyncTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}

	for i, task := range tasks {
		if task.RetryCount != 0 {
			t.Errorf("new task %d retry count = %d, want 0", task.ID, task.RetryCount)
		}
		var body struct{ N int }
		if err := json.Unmarshal(task.Payload, &body); err != nil {
			t.Fatalf("task payload unmarshal failed: %v", err)
		}
		if body.N != i+1 {
			t.Errorf("task %d payload n = %d, want %d (enqueue order violated)", i, body.N, i+1)
		}
	}
}

func TestDeleteSyncTaskIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.EnqueueSyncTask(ctx, TaskKindSetting, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("EnqueueSyncTask failed: %v", err)
	}
	tasks, _ := st.PendingSyncTasks(ctx)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}

	if err := st.DeleteSyncTask(ctx, tasks[0].ID); err != nil {
		t.Fatalf("DeleteSyncTask failed: %v", err)
	}
	// Deleting again must not error.
	if err := st.DeleteSyncTask(ctx, tasks[0].ID); err != nil {
		t.Fatalf("repeated DeleteSyncTask failed: %v", err)
	}

	count, err := st.SyncTaskCount(ctx)
	if err != nil {
		t.Fatalf("SyncTaskCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestBumpSyncTaskRetryAbandonsAtCeiling(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.EnqueueSyncTask(ctx, TaskKindProgress, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("EnqueueSyncTask failed: %v", err)
	}
	tasks, _ := st.PendingSyncTasks(ctx)
	id := tasks[0].ID

	const ceiling = 3
	for want := 1; want < ceiling; want++ {
		count, abandoned, err := st.BumpSyncTaskRetry(ctx, id, ceiling)
		if err != nil {
			t.Fatalf("BumpSyncTaskRetry failed: %v", err)
		}
		if count != want || abandoned {
			t.Fatalf("bump %d = (%d, %v), want (%d, false)", want, count, abandoned, want)
		}

		// The counter must be durable, not in-memory.
		pending, _ := st.PendingSyncTasks(ctx)
		if len(pending) != 1 || pending[0].RetryCount != want {
			t.Fatalf("durable retry count after bump %d = %v", want, pending)
		}
	}

	count, abandoned, err := st.BumpSyncTaskRetry(ctx, id, ceiling)
	if err != nil {
		t.Fatalf("final bump failed: %v", err)
	}
	if count != ceiling || !abandoned {
		t.Fatalf("final bump = (%d, %v), want (%d, true)", count, abandoned, ceiling)
	}

	remaining, _ := st.SyncTaskCount(ctx)
	if remaining != 0 {
		t.Errorf("abandoned task still pending (count %d)", remaining)
	}
}

func TestBumpSyncTaskRetryMissingTask(t *testing.T) {
	st := newTestStore(t)

	count, abandoned, err := st.BumpSyncTaskRetry(context.Background(), 12345, 3)
	if err != nil {
		t.Fatalf("BumpSyncTaskRetry on missing task failed: %v", err)
	}
	if count != 0 || abandoned {
		t.Errorf("missing task bump = (%d, %v), want (0, false)", count, abandoned)
	}
}
