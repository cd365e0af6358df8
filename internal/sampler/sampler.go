// Package sampler answers "what should the user see next" from the cached
// catalog without callers touching storage details.
package sampler

import (
	"context"
	"math/rand/v2"

	"github.com/lexyapp/lexy/internal/catalog"
	"github.com/lexyapp/lexy/internal/store"
)

// Sampler draws filtered, optionally shuffled selections from the cached
// content generation. It only ever reads.
type Sampler struct {
	store *store.Store
}

// New creates a Sampler over the given store.
func New(st *store.Store) *Sampler {
	return &Sampler{store: st}
}

// Sample applies the filter, optionally shuffles the matches uniformly, and
// truncates to limit (0 = no limit). An empty match set returns an empty
// slice, never an error. Without shuffle the original cache order is kept.
func (s *Sampler) Sample(ctx context.Context, filter store.ContentFilter, shuffle bool, limit int) ([]catalog.ContentItem, error) {
	items, err := s.store.QueryContentItems(ctx, filter)
	if err != nil {
		return nil, err
	}

	if shuffle {
		rand.Shuffle(len(items), func(i, j int) {
			items[i], items[j] = items[j], items[i]
		})
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	return items, nil
}

// PickOne returns a single uniformly chosen matching item, or nil when
// nothing matches.
func (s *Sampler) PickOne(ctx context.Context, filter store.ContentFilter) (*catalog.ContentItem, error) {
	items, err := s.Sample(ctx, filter, true, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}
