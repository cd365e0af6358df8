package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lexyapp/lexy/internal/catalog"
	"github.com/lexyapp/lexy/internal/store"
)

// fakeBackend scripts remote behavior per call.
type fakeBackend struct {
	interactions []json.RawMessage
	settings     map[string]string

	failInteractions bool
	unauthenticated  bool
	rejectToken      bool

	// failFor rejects only interactions whose payload contains this
	// substring, for per-task independence tests.
	failFor string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{settings: make(map[string]string)}
}

func (f *fakeBackend) RecordInteraction(ctx context.Context, payload json.RawMessage) error {
	if f.rejectToken {
		return fmt.Errorf("%w: status 401", ErrRemoteUnauthenticated)
	}
	if f.failInteractions {
		return fmt.Errorf("%w: scripted failure", ErrRemoteCall)
	}
	if f.failFor != "" && strings.Contains(string(payload), f.failFor) {
		return fmt.Errorf("%w: scripted failure for %s", ErrRemoteCall, f.failFor)
	}
	f.interactions = append(f.interactions, payload)
	return nil
}

func (f *fakeBackend) UpdateUserSetting(ctx context.Context, namespace, key, value string) error {
	f.settings[namespace+"/"+key] = value
	return nil
}

func (f *fakeBackend) IsAuthenticated(ctx context.Context) bool {
	return !f.unauthenticated
}

func newTestQueue(t *testing.T, backend Backend, online func() bool) (*Queue, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "lexy.db"))
	if err != nil {
		t.Fatalf("store open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	q := New(st, backend, &Config{
		Debounce: 10 * time.Millisecond,
		Online:   online,
		Logger:   log.New(os.Stderr, "[syncq-test] ", 0),
	})
	t.Cleanup(q.Stop)

	return q, st
}

func progressTask(t *testing.T, q *Queue, interactionID string) {
	t.Helper()

	payload, err := json.Marshal(ProgressPayload{
		InteractionID: interactionID,
		ContentItemID: "greet-01",
		AnsweredAt:    time.Now().UTC(),
		Correct:       true,
	})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	if err := q.Enqueue(context.Background(), store.TaskKindProgress, payload); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
}

func pendingCount(t *testing.T, st *store.Store) int {
	t.Helper()
	count, err := st.SyncTaskCount(context.Background())
	if err != nil {
		t.Fatalf("SyncTaskCount failed: %v", err)
	}
	return count
}

func TestReplayAppliesInOrderAndDrainsQueue(t *testing.T) {
	backend := newFakeBackend()
	q, st := newTestQueue(t, backend, nil)

	for i := 1; i <= 3; i++ {
		progressTask(t, q, fmt.Sprintf("rec-%d", i))
	}

	q.Replay(context.Background())

	if got := pendingCount(t, st); got != 0 {
		t.Errorf("queue not drained, %d pending", got)
	}
	if len(backend.interactions) != 3 {
		t.Fatalf("backend saw %d interactions, want 3", len(backend.interactions))
	}
	for i, payload := range backend.interactions {
		var p ProgressPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			t.Fatalf("payload unmarshal failed: %v", err)
		}
		want := fmt.Sprintf("rec-%d", i+1)
		if p.InteractionID != want {
			t.Errorf("apply order wrong at %d: got %s, want %s", i, p.InteractionID, want)
		}
	}
}

func TestReplayMarksInteractionSynced(t *testing.T) {
	backend := newFakeBackend()
	q, st := newTestQueue(t, backend, nil)
	ctx := context.Background()

	stored, err := st.AppendInteraction(ctx, catalog.InteractionRecord{ContentItemID: "greet-01", Correct: true})
	if err != nil {
		t.Fatalf("AppendInteraction failed: %v", err)
	}
	progressTask(t, q, stored.ID)

	q.Replay(ctx)

	recs, err := st.ListInteractions(ctx, store.InteractionFilter{})
	if err != nil {
		t.Fatalf("ListInteractions failed: %v", err)
	}
	if len(recs) != 1 || !recs[0].Synced {
		t.Errorf("interaction not marked synced after apply: %+v", recs)
	}
}

func TestReplayAbandonsAfterRetryCeiling(t *testing.T) {
	backend := newFakeBackend()
	backend.failInteractions = true
	q, st := newTestQueue(t, backend, nil)
	ctx := context.Background()

	progressTask(t, q, "doomed")

	// Each pass costs one attempt; the task must be gone after exactly
	// RetryCeiling passes.
	for pass := 1; pass < RetryCeiling; pass++ {
		q.Replay(ctx)
		if got := pendingCount(t, st); got != 1 {
			t.Fatalf("after pass %d: %d pending, want 1", pass, got)
		}
	}

	q.Replay(ctx)
	if got := pendingCount(t, st); got != 0 {
		t.Fatalf("task not abandoned at ceiling, %d pending", got)
	}

	// A later pass must not resurrect it.
	backend.failInteractions = false
	q.Replay(ctx)
	if len(backend.interactions) != 0 {
		t.Errorf("abandoned task was retried: %v", backend.interactions)
	}
}

func TestReplayTasksAreIndependent(t *testing.T) {
	backend := newFakeBackend()
	backend.failFor = "doomed"
	q, st := newTestQueue(t, backend, nil)
	ctx := context.Background()

	progressTask(t, q, "fine-1")
	progressTask(t, q, "doomed")
	progressTask(t, q, "fine-2")

	q.Replay(ctx)

	// The failure in the middle must not block the task behind it.
	if len(backend.interactions) != 2 {
		t.Fatalf("backend saw %d interactions, want 2", len(backend.interactions))
	}
	if got := pendingCount(t, st); got != 1 {
		t.Errorf("%d pending, want just the failing task", got)
	}
}

func TestReplaySkipsWhileOffline(t *testing.T) {
	backend := newFakeBackend()
	online := false
	q, st := newTestQueue(t, backend, func() bool { return online })
	ctx := context.Background()

	progressTask(t, q, "waiting")

	q.Replay(ctx)
	if got := pendingCount(t, st); got != 1 {
		t.Fatalf("offline replay touched the queue, %d pending", got)
	}
	if len(backend.interactions) != 0 {
		t.Fatal("offline replay reached the backend")
	}

	online = true
	q.Replay(ctx)
	if got := pendingCount(t, st); got != 0 {
		t.Errorf("online replay left %d pending", got)
	}
}

func TestReplaySkipsWhileUnauthenticated(t *testing.T) {
	backend := newFakeBackend()
	backend.unauthenticated = true
	q, st := newTestQueue(t, backend, nil)
	ctx := context.Background()

	progressTask(t, q, "waiting")
	q.Replay(ctx)

	if got := pendingCount(t, st); got != 1 {
		t.Errorf("unauthenticated replay consumed the queue, %d pending", got)
	}
	// No retry budget burned either.
	tasks, _ := st.PendingSyncTasks(ctx)
	if len(tasks) == 1 && tasks[0].RetryCount != 0 {
		t.Errorf("unauthenticated replay burned retry budget: %d", tasks[0].RetryCount)
	}
}

func TestReplayAbortsOnRejectedCredentials(t *testing.T) {
	backend := newFakeBackend()
	backend.rejectToken = true
	q, st := newTestQueue(t, backend, nil)
	ctx := context.Background()

	progressTask(t, q, "rec-1")
	progressTask(t, q, "rec-2")

	q.Replay(ctx)

	// A 401 on the wire must not burn anyone's retry budget.
	tasks, err := st.PendingSyncTasks(ctx)
	if err != nil {
		t.Fatalf("PendingSyncTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("%d pending, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.RetryCount != 0 {
			t.Errorf("task %d retry count = %d, want 0", task.ID, task.RetryCount)
		}
	}
}

func TestReplayDropsUnknownKindWithoutRetry(t *testing.T) {
	backend := newFakeBackend()
	q, st := newTestQueue(t, backend, nil)
	ctx := context.Background()

	if err := st.EnqueueSyncTask(ctx, "mystery", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("EnqueueSyncTask failed: %v", err)
	}
	progressTask(t, q, "fine")

	q.Replay(ctx)

	if got := pendingCount(t, st); got != 0 {
		t.Errorf("unknown-kind task not dropped, %d pending", got)
	}
	if len(backend.interactions) != 1 {
		t.Errorf("valid task behind unknown kind not applied")
	}
}

func TestReplayAppliesSettingTask(t *testing.T) {
	backend := newFakeBackend()
	q, st := newTestQueue(t, backend, nil)
	ctx := context.Background()

	if err := st.PutSetting(ctx, "daily_goal", "25"); err != nil {
		t.Fatalf("PutSetting failed: %v", err)
	}
	payload, _ := json.Marshal(SettingPayload{Key: "daily_goal", Value: "25"})
	if err := q.Enqueue(ctx, store.TaskKindSetting, payload); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	q.Replay(ctx)

	if backend.settings["user/daily_goal"] != "25" {
		t.Errorf("setting not applied remotely: %v", backend.settings)
	}
	if got := pendingCount(t, st); got != 0 {
		t.Errorf("%d pending after apply", got)
	}
}

func TestEnqueueSchedulesDebouncedReplay(t *testing.T) {
	backend := newFakeBackend()
	q, st := newTestQueue(t, backend, nil)

	progressTask(t, q, "rec-1")
	progressTask(t, q, "rec-2")

	// Both enqueues land inside one debounce window; wait for the single
	// coalesced pass to drain them.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pendingCount(t, st) == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := pendingCount(t, st); got != 0 {
		t.Fatalf("debounced replay never drained the queue, %d pending", got)
	}
	if len(backend.interactions) != 2 {
		t.Errorf("backend saw %d interactions, want 2", len(backend.interactions))
	}
}

func TestEnqueueWhileOfflineDoesNotSchedule(t *testing.T) {
	backend := newFakeBackend()
	q, st := newTestQueue(t, backend, func() bool { return false })

	progressTask(t, q, "parked")

	time.Sleep(100 * time.Millisecond)

	if got := pendingCount(t, st); got != 1 {
		t.Errorf("offline enqueue was replayed, %d pending", got)
	}
}

func TestReplayEmitsEvents(t *testing.T) {
	backend := newFakeBackend()
	q, _ := newTestQueue(t, backend, nil)
	ctx := context.Background()

	progressTask(t, q, "rec-1")
	q.Replay(ctx)

	var sawApplied, sawComplete bool
	for {
		select {
		case event := <-q.Events():
			switch event.Type {
			case EventTaskApplied:
				sawApplied = true
			case EventPassComplete:
				sawComplete = true
				if event.Pending != 0 {
					t.Errorf("pass-complete pending = %d, want 0", event.Pending)
				}
			}
		default:
			if !sawApplied || !sawComplete {
				t.Errorf("events missing: applied=%v complete=%v", sawApplied, sawComplete)
			}
			return
		}
	}
}

func TestBackendErrorsAreClassified(t *testing.T) {
	if !errors.Is(fmt.Errorf("%w: boom", ErrRemoteCall), ErrRemoteCall) {
		t.Error("ErrRemoteCall wrapping broken")
	}
	if !errors.Is(fmt.Errorf("%w: 401", ErrRemoteUnauthenticated), ErrRemoteUnauthenticated) {
		t.Error("ErrRemoteUnauthenticated wrapping broken")
	}
}
