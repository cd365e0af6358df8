// Package catalog provides the data structures for lexy's cached content
// and interaction records.
//
// Content items arrive in generations: a batch import replaces the whole
// cached catalog at once, so an item is never mutated after it is written.
// Interaction records are the append-only log of everything the user
// answered; aggregates are always derived from the log, never stored.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// Difficulty bounds for content items.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Payload carries the renderable body of an exercise.
type Payload struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer"`
	Hint    string   `json:"hint,omitempty"`
}

// ContentItem is one cached exercise from the shared catalog.
//
// Items are immutable once cached. CachedAt is stamped by the store when a
// generation is imported, not by the producer of the batch file.
type ContentItem struct {
	ID         string    `json:"id"`
	Level      string    `json:"level"` // a1..c2
	Topic      string    `json:"topic"`
	Type       string    `json:"type"` // multiple_choice, translation, cloze, ...
	Difficulty int       `json:"difficulty"`
	Payload    Payload   `json:"payload"`
	CachedAt   time.Time `json:"cached_at,omitempty"`
}

// Validate checks that the item has usable field values.
func (c *ContentItem) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Level == "" {
		return fmt.Errorf("level is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	if c.Difficulty < MinDifficulty || c.Difficulty > MaxDifficulty {
		return fmt.Errorf("difficulty must be between %d and %d (got %d)", MinDifficulty, MaxDifficulty, c.Difficulty)
	}
	if c.Payload.Prompt == "" {
		return fmt.Errorf("payload.prompt is required")
	}
	if c.Payload.Answer == "" {
		return fmt.Errorf("payload.answer is required")
	}
	return nil
}

// MarshalPayload serializes the payload for storage in a single column.
func (c *ContentItem) MarshalPayload() (string, error) {
	data, err := json.Marshal(c.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload for %s: %w", c.ID, err)
	}
	return string(data), nil
}

// UnmarshalPayload restores the payload from its stored column value.
func (c *ContentItem) UnmarshalPayload(data string) error {
	if err := json.Unmarshal([]byte(data), &c.Payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload for %s: %w", c.ID, err)
	}
	return nil
}
