// Package syncq provides the durable sync queue that replays pending remote
// writes against the backend with a bounded retry budget.
//
// Every local write that needs remote reconciliation is first persisted in
// the store's sync_tasks collection, then replayed opportunistically:
// immediately (after a short debounce) when the client is online, or on the
// next offline-to-online transition otherwise. A task is deleted on
// successful remote application, or abandoned once it has failed
// RetryCeiling times. Local data is the source of truth throughout; a
// remote-sync failure is never surfaced to the caller whose local write
// already succeeded.
package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/lexyapp/lexy/internal/store"
)

// RetryCeiling is the maximum number of failed remote-application attempts
// before a task is abandoned.
const RetryCeiling = 3

// DefaultDebounce is how long the queue waits after an enqueue before
// starting a replay pass, so bursts coalesce into one pass.
const DefaultDebounce = time.Second

// Config holds queue configuration.
type Config struct {
	// Debounce delays replay after an enqueue to coalesce bursts.
	Debounce time.Duration

	// Namespace scopes remote setting writes (default "user").
	Namespace string

	// Online reports current connectivity. nil means "always online".
	Online func() bool

	// Logger for replay activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce:  DefaultDebounce,
		Namespace: "user",
		Logger:    log.New(os.Stderr, "[syncq] ", log.LstdFlags),
	}
}

// Queue replays pending sync tasks against the remote backend.
type Queue struct {
	store   *store.Store
	backend Backend
	config  *Config
	events  chan Event

	mu            sync.Mutex
	timer         *time.Timer
	replaying     bool
	pendingReplay bool
}

// New creates a Queue over the given store and backend.
func New(st *store.Store, backend Backend, config *Config) *Queue {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Namespace == "" {
		config.Namespace = "user"
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[syncq] ", log.LstdFlags)
	}

	return &Queue{
		store:   st,
		backend: backend,
		config:  config,
		events:  make(chan Event, 64),
	}
}

// Enqueue durably appends a pending remote write. When currently online it
// also arms (or re-arms) the debounced replay timer; each enqueue during the
// debounce window pushes the pass back so bursts drain in one pass.
//
// The append itself does not depend on connectivity: a task enqueued while
// offline simply waits for the next online transition to trigger replay.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload json.RawMessage) error {
	if err := q.store.EnqueueSyncTask(ctx, kind, payload); err != nil {
		return err
	}

	if q.online() {
		q.ScheduleReplay()
	}
	return nil
}

// ScheduleReplay arms the debounced replay timer, cancelling any pending
// schedule. The connectivity monitor calls this on the offline-to-online
// edge.
func (q *Queue) ScheduleReplay() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.config.Debounce, func() {
		q.Replay(context.Background())
	})
}

// Stop cancels any pending scheduled replay. In-flight passes run to
// completion; their remote calls fail naturally if connectivity is gone.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// Events returns the observability stream: task applications, abandonments,
// and pass completions. Events are dropped, not blocked on, when nobody
// drains the channel.
func (q *Queue) Events() <-chan Event {
	return q.events
}

// Replay drains all currently-pending tasks against the remote backend.
//
// The pass is a no-op while offline or unauthenticated. Tasks are processed
// independently in enqueue order: success deletes the task, failure bumps
// its durable retry counter, and a task at the ceiling is abandoned. A
// replay requested while one is in flight coalesces into a single follow-up
// pass instead of overlapping.
func (q *Queue) Replay(ctx context.Context) {
	q.mu.Lock()
	if q.replaying {
		q.pendingReplay = true
		q.mu.Unlock()
		return
	}
	q.replaying = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.replaying = false
		rearm := q.pendingReplay
		q.pendingReplay = false
		q.mu.Unlock()
		if rearm {
			q.ScheduleReplay()
		}
	}()

	if !q.online() {
		return
	}
	if !q.backend.IsAuthenticated(ctx) {
		q.config.Logger.Printf("Replay skipped: not authenticated")
		return
	}

	tasks, err := q.store.PendingSyncTasks(ctx)
	if err != nil {
		q.config.Logger.Printf("Failed to load pending tasks: %v", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	q.config.Logger.Printf("Replaying %d pending tasks", len(tasks))

	applied := 0
	for _, task := range tasks {
		ok, err := q.applyTask(ctx, task)
		if ok {
			applied++
		}
		if errors.Is(err, ErrRemoteUnauthenticated) {
			// Credentials went bad mid-pass. Leave the rest of the queue
			// (and its retry budget) for a future authenticated pass.
			q.config.Logger.Printf("Replay aborted: authentication rejected")
			break
		}
	}

	pending, _ := q.store.SyncTaskCount(ctx)
	q.config.Logger.Printf("Replay pass complete: applied=%d pending=%d", applied, pending)
	q.emit(Event{Type: EventPassComplete, Pending: pending})
}

// applyTask attempts one remote application. Returns whether the task was
// applied, and the remote error if there was one.
func (q *Queue) applyTask(ctx context.Context, task store.SyncTask) (bool, error) {
	var err error
	switch task.Kind {
	case store.TaskKindProgress:
		err = q.backend.RecordInteraction(ctx, task.Payload)
	case store.TaskKindSetting:
		var p SettingPayload
		if uerr := json.Unmarshal(task.Payload, &p); uerr != nil {
			err = fmt.Errorf("malformed setting payload: %w", uerr)
		} else {
			err = q.backend.UpdateUserSetting(ctx, q.config.Namespace, p.Key, p.Value)
		}
	default:
		// Unknown kinds indicate a local bug, not a transient condition.
		// Dropped without retry.
		q.config.Logger.Printf("WARNING: dropping sync task %d with unknown kind %q", task.ID, task.Kind)
		if derr := q.store.DeleteSyncTask(ctx, task.ID); derr != nil {
			q.config.Logger.Printf("Failed to drop task %d: %v", task.ID, derr)
		}
		return false, nil
	}

	if err == nil {
		if derr := q.store.DeleteSyncTask(ctx, task.ID); derr != nil {
			q.config.Logger.Printf("Failed to delete applied task %d: %v", task.ID, derr)
		}
		q.markSynced(ctx, task)
		q.emit(Event{Type: EventTaskApplied, TaskID: task.ID, Kind: task.Kind})
		return true, nil
	}

	if errors.Is(err, ErrRemoteUnauthenticated) {
		// Not a transient failure; the counter stays untouched.
		return false, err
	}

	count, abandoned, berr := q.store.BumpSyncTaskRetry(ctx, task.ID, RetryCeiling)
	if berr != nil {
		q.config.Logger.Printf("Failed to bump retry for task %d: %v", task.ID, berr)
		return false, err
	}

	if abandoned {
		q.config.Logger.Printf("WARNING: abandoning sync task %d (%s) after %d attempts: %v",
			task.ID, task.Kind, count, err)
		q.emit(Event{Type: EventTaskAbandoned, TaskID: task.ID, Kind: task.Kind, RetryCount: count})
	} else {
		q.config.Logger.Printf("Sync task %d (%s) failed (attempt %d/%d): %v",
			task.ID, task.Kind, count, RetryCeiling, err)
	}
	return false, err
}

// markSynced flips the informational synced flag on the local record the
// applied task originated from. Failures here are logged only; the flag is
// bookkeeping, not a consistency anchor.
func (q *Queue) markSynced(ctx context.Context, task store.SyncTask) {
	switch task.Kind {
	case store.TaskKindProgress:
		var p ProgressPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil || p.InteractionID == "" {
			return
		}
		if err := q.store.MarkInteractionSynced(ctx, p.InteractionID); err != nil {
			q.config.Logger.Printf("Failed to mark interaction %s synced: %v", p.InteractionID, err)
		}
	case store.TaskKindSetting:
		var p SettingPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil || p.Key == "" {
			return
		}
		if err := q.store.MarkSettingSynced(ctx, p.Key); err != nil {
			q.config.Logger.Printf("Failed to mark setting %s synced: %v", p.Key, err)
		}
	}
}

func (q *Queue) online() bool {
	return q.config.Online == nil || q.config.Online()
}

func (q *Queue) emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case q.events <- e:
	default:
		// Nobody draining; observability events are droppable.
	}
}
