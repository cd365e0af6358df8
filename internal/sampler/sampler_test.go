package sampler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lexyapp/lexy/internal/catalog"
	"github.com/lexyapp/lexy/internal/store"
)

func newTestSampler(t *testing.T, items []catalog.ContentItem) *Sampler {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "lexy.db"))
	if err != nil {
		t.Fatalf("store open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if len(items) > 0 {
		if err := st.ReplaceContentItems(context.Background(), items); err != nil {
			t.Fatalf("seeding content failed: %v", err)
		}
	}

	return New(st)
}

func item(id string, difficulty int) catalog.ContentItem {
	return catalog.ContentItem{
		ID:         id,
		Level:      "a1",
		Topic:      "greetings",
		Type:       "multiple_choice",
		Difficulty: difficulty,
		Payload:    catalog.Payload{Prompt: "p", Answer: "a"},
	}
}

func TestSampleDifficultyRangeKeepsOrder(t *testing.T) {
	s := newTestSampler(t, []catalog.ContentItem{
		item("one", 1), item("two", 2), item("three", 2), item("four", 3),
	})

	got, err := s.Sample(context.Background(), store.ContentFilter{MinDifficulty: 2, MaxDifficulty: 2}, false, 0)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	// Without shuffle, original cache order is preserved.
	if got[0].ID != "two" || got[1].ID != "three" {
		t.Errorf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestSampleShufflePreservesSet(t *testing.T) {
	seed := []catalog.ContentItem{
		item("a", 1), item("b", 1), item("c", 1), item("d", 1), item("e", 1),
	}
	s := newTestSampler(t, seed)

	got, err := s.Sample(context.Background(), store.ContentFilter{}, true, 0)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(got) != len(seed) {
		t.Fatalf("shuffle changed item count: %d", len(got))
	}

	seen := make(map[string]bool)
	for _, it := range got {
		if seen[it.ID] {
			t.Fatalf("shuffle duplicated item %s", it.ID)
		}
		seen[it.ID] = true
	}
	for _, want := range seed {
		if !seen[want.ID] {
			t.Errorf("shuffle dropped item %s", want.ID)
		}
	}
}

func TestSampleLimit(t *testing.T) {
	s := newTestSampler(t, []catalog.ContentItem{
		item("a", 1), item("b", 1), item("c", 1),
	})

	got, err := s.Sample(context.Background(), store.ContentFilter{}, true, 2)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("limit 2 returned %d items", len(got))
	}
}

func TestSampleEmptyMatchIsNotAnError(t *testing.T) {
	s := newTestSampler(t, []catalog.ContentItem{item("a", 1)})

	got, err := s.Sample(context.Background(), store.ContentFilter{Levels: []string{"c2"}}, true, 0)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestPickOne(t *testing.T) {
	s := newTestSampler(t, []catalog.ContentItem{item("only", 1)})
	ctx := context.Background()

	picked, err := s.PickOne(ctx, store.ContentFilter{})
	if err != nil {
		t.Fatalf("PickOne failed: %v", err)
	}
	if picked == nil || picked.ID != "only" {
		t.Errorf("PickOne = %v, want the only item", picked)
	}

	none, err := s.PickOne(ctx, store.ContentFilter{Topics: []string{"nope"}})
	if err != nil {
		t.Fatalf("PickOne failed: %v", err)
	}
	if none != nil {
		t.Errorf("PickOne on empty match = %v, want nil", none)
	}
}
