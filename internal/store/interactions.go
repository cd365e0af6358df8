package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lexyapp/lexy/internal/catalog"
)

// InteractionFilter selects interaction records. Zero values mean
// "no constraint".
type InteractionFilter struct {
	ContentItemID string
	// Correct filters on correctness when non-nil.
	Correct *bool
	// Since/Until bound answered_at, inclusive on Since, exclusive on Until.
	Since time.Time
	Until time.Time
	// Limit caps the result count (0 = no limit).
	Limit int
}

// AppendInteraction assigns an id, stamps answered_at, and inserts the
// record. An existing id is never overwritten: on the (rare) id collision
// from two answers landing in the same nanosecond, the timestamp is nudged
// forward and the insert retried.
func (s *Store) AppendInteraction(ctx context.Context, rec catalog.InteractionRecord) (*catalog.InteractionRecord, error) {
	if s.degraded {
		return nil, ErrStoreUnavailable
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid interaction: %w", err)
	}

	insert := `
	INSERT INTO interactions (id, content_item_id, answered_at, correct, time_taken_ms, points_earned, streak_at_time, synced)
	VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`

	at := s.now().UTC()
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		rec.ID = catalog.InteractionID(rec.ContentItemID, at)
		rec.AnsweredAt = at
		rec.Synced = false

		_, err := s.conn.ExecContext(ctx, insert,
			rec.ID,
			rec.ContentItemID,
			at.Format(time.RFC3339Nano),
			boolToInt(rec.Correct),
			rec.TimeTakenMs,
			rec.PointsEarned,
			rec.StreakAtTime,
		)
		if err == nil {
			stored := rec
			return &stored, nil
		}
		lastErr = err
		if !strings.Contains(err.Error(), "UNIQUE") {
			break
		}
		at = at.Add(time.Nanosecond)
	}

	return nil, fmt.Errorf("failed to append interaction: %w", lastErr)
}

// ListInteractions returns records matching the filter, most recent first.
// In degraded mode the result is empty, never an error.
func (s *Store) ListInteractions(ctx context.Context, filter InteractionFilter) ([]catalog.InteractionRecord, error) {
	if s.degraded {
		return nil, nil
	}

	var conditions []string
	var args []interface{}

	if filter.ContentItemID != "" {
		conditions = append(conditions, "content_item_id = ?")
		args = append(args, filter.ContentItemID)
	}
	if filter.Correct != nil {
		conditions = append(conditions, "correct = ?")
		args = append(args, boolToInt(*filter.Correct))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "answered_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "answered_at < ?")
		args = append(args, filter.Until.UTC().Format(time.RFC3339Nano))
	}

	query := `
	SELECT id, content_item_id, answered_at, correct, time_taken_ms, points_earned, streak_at_time, synced
	FROM interactions
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY answered_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// MarkInteractionSynced flips the informational synced flag after the
// corresponding sync task applied remotely. Missing records are ignored;
// the flag is best-effort bookkeeping, not a consistency anchor.
func (s *Store) MarkInteractionSynced(ctx context.Context, id string) error {
	if s.degraded {
		return ErrStoreUnavailable
	}

	if _, err := s.conn.ExecContext(ctx, "UPDATE interactions SET synced = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to mark interaction synced: %w", err)
	}
	return nil
}

// InteractionCount returns the total number of recorded interactions.
func (s *Store) InteractionCount(ctx context.Context) (int, error) {
	if s.degraded {
		return 0, nil
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM interactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

// scanInteractions scans query rows into interaction records.
func scanInteractions(rows *sql.Rows) ([]catalog.InteractionRecord, error) {
	var records []catalog.InteractionRecord

	for rows.Next() {
		var rec catalog.InteractionRecord
		var answeredAt string
		var correct, synced int

		if err := rows.Scan(
			&rec.ID,
			&rec.ContentItemID,
			&answeredAt,
			&correct,
			&rec.TimeTakenMs,
			&rec.PointsEarned,
			&rec.StreakAtTime,
			&synced,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}

		if t, err := time.Parse(time.RFC3339Nano, answeredAt); err == nil {
			rec.AnsweredAt = t
		}
		rec.Correct = correct != 0
		rec.Synced = synced != 0

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}

	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
