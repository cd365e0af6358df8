package syncq

import "time"

// EventType classifies queue observability events.
type EventType string

const (
	// EventTaskApplied indicates a task was successfully applied remotely.
	EventTaskApplied EventType = "task_applied"

	// EventTaskAbandoned indicates a task hit the retry ceiling and was
	// removed without being applied.
	EventTaskAbandoned EventType = "task_abandoned"

	// EventPassComplete indicates a replay pass finished.
	EventPassComplete EventType = "pass_complete"
)

// Event is one queue observability record. These feed logs and the
// dashboard; they are never surfaced to the caller of the original write.
type Event struct {
	Type       EventType `json:"type"`
	TaskID     int64     `json:"task_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	RetryCount int       `json:"retry_count,omitempty"`
	Pending    int       `json:"pending,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
