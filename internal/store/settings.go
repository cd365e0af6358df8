package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PutSetting upserts a key/value pair with last-write-wins semantics.
// Repeated puts with the same key are idempotent apart from the timestamp.
// The synced flag resets on every write; it flips back once the
// corresponding sync task applies remotely.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	if s.degraded {
		return ErrStoreUnavailable
	}
	if key == "" {
		return fmt.Errorf("setting key is required")
	}

	query := `
	INSERT INTO settings (key, value, updated_at, synced)
	VALUES (?, ?, ?, 0)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at,
		synced = 0
	`
	_, err := s.conn.ExecContext(ctx, query, key, value, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to put setting %s: %w", key, err)
	}
	return nil
}

// GetSetting returns the value for key and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	if s.degraded {
		return "", false, nil
	}

	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// AllSettings returns every stored setting as a key/value map.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	settings := make(map[string]string)
	if s.degraded {
		return settings, nil
	}

	rows, err := s.conn.QueryContext(ctx, "SELECT key, value FROM settings ORDER BY key ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return settings, nil
}

// MarkSettingSynced flips the synced flag for a setting after the
// corresponding sync task applied remotely.
func (s *Store) MarkSettingSynced(ctx context.Context, key string) error {
	if s.degraded {
		return ErrStoreUnavailable
	}

	if _, err := s.conn.ExecContext(ctx, "UPDATE settings SET synced = 1 WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to mark setting synced: %w", err)
	}
	return nil
}
