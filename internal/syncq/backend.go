package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Backend is the remote collaborator the queue replays against. It is
// injected at construction; the queue never reaches for a global client.
type Backend interface {
	// RecordInteraction applies one progress payload remotely.
	RecordInteraction(ctx context.Context, payload json.RawMessage) error

	// UpdateUserSetting applies one setting write remotely.
	UpdateUserSetting(ctx context.Context, namespace, key, value string) error

	// IsAuthenticated reports whether the backend will accept writes.
	// Consulted once before every replay pass; an unauthenticated backend
	// makes the pass a silent no-op.
	IsAuthenticated(ctx context.Context) bool
}

// ErrRemoteUnauthenticated marks a rejected call that should skip replay
// rather than burn retry budget.
var ErrRemoteUnauthenticated = errors.New("remote backend not authenticated")

// ErrRemoteCall marks a transient remote failure that drives the retry
// counter.
var ErrRemoteCall = errors.New("remote call failed")

// ProgressPayload is the wire body of a "progress" sync task. It carries the
// full interaction so the remote side needs no local lookups.
type ProgressPayload struct {
	InteractionID string    `json:"interaction_id"`
	ContentItemID string    `json:"content_item_id"`
	AnsweredAt    time.Time `json:"answered_at"`
	Correct       bool      `json:"correct"`
	TimeTakenMs   int64     `json:"time_taken_ms"`
	PointsEarned  int       `json:"points_earned"`
	StreakAtTime  int       `json:"streak_at_time"`
}

// SettingPayload is the wire body of a "setting" sync task.
type SettingPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
