// Package store provides the embedded SQLite persistence layer for lexy.
//
// The store owns five collections: content_items (the cached catalog
// generation), interactions (the append-only answer log), settings,
// sync_tasks (the durable queue of pending remote writes), and cache_meta
// (catalog freshness bookkeeping).
//
// The database runs embedded with WAL mode so the CLI and the background
// daemon can read concurrently. Multi-collection writes (cache replacement,
// cache clear, retry bookkeeping) happen inside a single transaction; no
// reader ever observes a half-applied generation.
//
// If the storage medium cannot be initialized at all (quota, permissions,
// sandboxing), the store enters a permanent degraded mode for the process
// lifetime: reads return empty results, durable writes return
// ErrStoreUnavailable, and nothing crashes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the embedded SQLite database.
type Store struct {
	conn     *sql.DB
	path     string
	degraded bool

	// now is swappable so tests can simulate cache expiry.
	now func() time.Time
}

// Open creates or opens the database at the specified path.
//
// Open never returns a nil store: if the medium cannot be initialized, the
// returned store is in degraded mode and the error describes why. Callers
// should log the error and keep the handle; degraded mode is permanent and
// initialization is not retried.
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.degraded = true
		return s, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		s.degraded = true
		return s, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		s.degraded = true
		return s, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s.conn = conn

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			s.conn = nil
			s.degraded = true
			return s, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = conn.Close()
		s.conn = nil
		s.degraded = true
		return s, err
	}

	return s, nil
}

// Degraded reports whether the store is in permanent degraded mode.
func (s *Store) Degraded() bool {
	return s.degraded
}

// SetClock replaces the store's time source. Tests use this to simulate
// elapsed time for cache expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// initSchema creates the five collections and their indexes.
// Idempotent - safe to call on every Open.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS content_items (
		id TEXT PRIMARY KEY,
		level TEXT NOT NULL,
		topic TEXT NOT NULL,
		type TEXT NOT NULL,
		difficulty INTEGER NOT NULL,
		payload TEXT NOT NULL,  -- JSON
		cached_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		content_item_id TEXT NOT NULL,
		answered_at TEXT NOT NULL,
		correct INTEGER NOT NULL,
		time_taken_ms INTEGER NOT NULL,
		points_earned INTEGER NOT NULL,
		streak_at_time INTEGER NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sync_tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,  -- JSON
		enqueued_at TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		item_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_content_level ON content_items(level);
	CREATE INDEX IF NOT EXISTS idx_content_topic ON content_items(topic);
	CREATE INDEX IF NOT EXISTS idx_content_type ON content_items(type);
	CREATE INDEX IF NOT EXISTS idx_content_difficulty ON content_items(difficulty);

	CREATE INDEX IF NOT EXISTS idx_interactions_item ON interactions(content_item_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_answered ON interactions(answered_at DESC);
	CREATE INDEX IF NOT EXISTS idx_interactions_correct ON interactions(correct);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}
