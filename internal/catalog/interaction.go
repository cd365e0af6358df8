package catalog

import (
	"fmt"
	"time"
)

// InteractionRecord is one answered exercise, appended to the local log.
//
// Records are immutable after the append except for Synced, which flips to
// true once the corresponding sync task has been applied remotely. Synced is
// informational only; local reads never filter on it.
type InteractionRecord struct {
	ID            string    `json:"id"`
	ContentItemID string    `json:"content_item_id"`
	AnsweredAt    time.Time `json:"answered_at"`
	Correct       bool      `json:"correct"`
	TimeTakenMs   int64     `json:"time_taken_ms"`
	PointsEarned  int       `json:"points_earned"`
	StreakAtTime  int       `json:"streak_at_time"`
	Synced        bool      `json:"synced"`
}

// Validate checks that the record has usable field values.
// ID and AnsweredAt are assigned by the store, so they are not required here.
func (r *InteractionRecord) Validate() error {
	if r.ContentItemID == "" {
		return fmt.Errorf("content_item_id is required")
	}
	if r.TimeTakenMs < 0 {
		return fmt.Errorf("time_taken_ms must not be negative (got %d)", r.TimeTakenMs)
	}
	if r.PointsEarned < 0 {
		return fmt.Errorf("points_earned must not be negative (got %d)", r.PointsEarned)
	}
	if r.StreakAtTime < 0 {
		return fmt.Errorf("streak_at_time must not be negative (got %d)", r.StreakAtTime)
	}
	return nil
}

// InteractionID builds the composite record key from the answered item and a
// write timestamp. Nanosecond resolution keeps keys distinguishable even
// under rapid consecutive answers to the same item.
func InteractionID(contentItemID string, at time.Time) string {
	return fmt.Sprintf("%s_%d", contentItemID, at.UnixNano())
}
