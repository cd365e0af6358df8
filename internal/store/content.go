package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lexyapp/lexy/internal/catalog"
)

// cacheTTL is how long a cached generation stays fresh.
const cacheTTL = 7 * 24 * time.Hour

// metaKeyLastUpdate is the cache_meta key tracking the last refresh.
const metaKeyLastUpdate = "lastCacheUpdate"

// ContentFilter selects content items. Criteria combine conjunctively;
// multiple values within one criterion combine disjunctively. Zero values
// mean "no constraint".
type ContentFilter struct {
	Levels []string
	Topics []string
	Types  []string
	// Difficulty range, inclusive. 0 means unbounded on that side.
	MinDifficulty int
	MaxDifficulty int
}

// CacheInfo describes the freshness of the cached catalog generation.
type CacheInfo struct {
	LastUpdate *time.Time
	ItemCount  int
	IsExpired  bool
}

// ReplaceContentItems atomically installs a new catalog generation: the
// content collection is cleared, all given items are inserted stamped with
// the current time, and cache_meta is updated, all in one transaction.
// On any failure nothing is observable - the previous generation survives.
func (s *Store) ReplaceContentItems(ctx context.Context, items []catalog.ContentItem) error {
	if s.degraded {
		return ErrStoreUnavailable
	}

	for i := range items {
		if err := items[i].Validate(); err != nil {
			return fmt.Errorf("invalid content item %d: %w", i, err)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM content_items"); err != nil {
		return fmt.Errorf("%w: clear content: %v", ErrTransactionFailed, err)
	}

	now := s.now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	insert := `
	INSERT INTO content_items (id, level, topic, type, difficulty, payload, cached_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for i := range items {
		payload, err := items[i].MarshalPayload()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			items[i].ID,
			items[i].Level,
			items[i].Topic,
			items[i].Type,
			items[i].Difficulty,
			payload,
			stamp,
		); err != nil {
			return fmt.Errorf("%w: insert %s: %v", ErrTransactionFailed, items[i].ID, err)
		}
	}

	meta := `
	INSERT INTO cache_meta (key, value, item_count)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		item_count = excluded.item_count
	`
	if _, err := tx.ExecContext(ctx, meta, metaKeyLastUpdate, stamp, len(items)); err != nil {
		return fmt.Errorf("%w: update cache meta: %v", ErrTransactionFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	return nil
}

// QueryContentItems returns all cached items matching the filter.
// In degraded mode the result is empty, never an error.
func (s *Store) QueryContentItems(ctx context.Context, filter ContentFilter) ([]catalog.ContentItem, error) {
	if s.degraded {
		return nil, nil
	}

	var conditions []string
	var args []interface{}

	appendSet := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := strings.Repeat("?, ", len(values))
		conditions = append(conditions, fmt.Sprintf("%s IN (%s)", column, placeholders[:len(placeholders)-2]))
		for _, v := range values {
			args = append(args, v)
		}
	}

	appendSet("level", filter.Levels)
	appendSet("topic", filter.Topics)
	appendSet("type", filter.Types)

	if filter.MinDifficulty > 0 {
		conditions = append(conditions, "difficulty >= ?")
		args = append(args, filter.MinDifficulty)
	}
	if filter.MaxDifficulty > 0 {
		conditions = append(conditions, "difficulty <= ?")
		args = append(args, filter.MaxDifficulty)
	}

	query := `
	SELECT id, level, topic, type, difficulty, payload, cached_at
	FROM content_items
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rowid ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content items: %w", err)
	}
	defer rows.Close()

	return scanContentItems(rows)
}

// CacheInfo reports when the catalog was last refreshed and whether the
// cached generation has expired. A store with no prior refresh (including a
// degraded store) reports expired.
func (s *Store) CacheInfo(ctx context.Context) (CacheInfo, error) {
	if s.degraded {
		return CacheInfo{IsExpired: true}, nil
	}

	var value string
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT value, item_count FROM cache_meta WHERE key = ?", metaKeyLastUpdate,
	).Scan(&value, &count)
	if err == sql.ErrNoRows {
		return CacheInfo{IsExpired: true}, nil
	}
	if err != nil {
		return CacheInfo{}, fmt.Errorf("failed to read cache meta: %w", err)
	}

	last, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return CacheInfo{}, fmt.Errorf("failed to parse cache timestamp: %w", err)
	}

	return CacheInfo{
		LastUpdate: &last,
		ItemCount:  count,
		IsExpired:  s.now().Sub(last) > cacheTTL,
	}, nil
}

// ClearCache empties the content collection and cache_meta atomically.
func (s *Store) ClearCache(ctx context.Context) error {
	if s.degraded {
		return ErrStoreUnavailable
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM content_items"); err != nil {
		return fmt.Errorf("%w: clear content: %v", ErrTransactionFailed, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_meta"); err != nil {
		return fmt.Errorf("%w: clear cache meta: %v", ErrTransactionFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	return nil
}

// ContentItemCount returns the number of cached content items.
func (s *Store) ContentItemCount(ctx context.Context) (int, error) {
	if s.degraded {
		return 0, nil
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_items").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count content items: %w", err)
	}
	return count, nil
}

// scanContentItems scans query rows into content items.
func scanContentItems(rows *sql.Rows) ([]catalog.ContentItem, error) {
	var items []catalog.ContentItem

	for rows.Next() {
		var item catalog.ContentItem
		var payload, cachedAt string

		if err := rows.Scan(
			&item.ID,
			&item.Level,
			&item.Topic,
			&item.Type,
			&item.Difficulty,
			&payload,
			&cachedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}

		if err := item.UnmarshalPayload(payload); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, cachedAt); err == nil {
			item.CachedAt = t
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content items: %w", err)
	}

	return items, nil
}
