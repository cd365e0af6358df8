package daemon

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lexyapp/lexy/internal/catalog"
	"github.com/lexyapp/lexy/internal/store"
)

func testItem(id string) catalog.ContentItem {
	return catalog.ContentItem{
		ID:         id,
		Level:      "a1",
		Topic:      "greetings",
		Type:       "multiple_choice",
		Difficulty: 1,
		Payload:    catalog.Payload{Prompt: "p", Answer: "a"},
	}
}

func TestDaemonInstallsPreexistingBatches(t *testing.T) {
	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "catalog")

	st, err := store.Open(filepath.Join(dir, "lexy.db"))
	if err != nil {
		t.Fatalf("store open failed: %v", err)
	}
	defer st.Close()

	// A batch dropped while the daemon was not running must be picked up
	// at startup.
	if err := catalog.WriteBatchFile(filepath.Join(catalogDir, "drop.json"), []catalog.ContentItem{
		testItem("pre-1"), testItem("pre-2"),
	}); err != nil {
		t.Fatalf("WriteBatchFile failed: %v", err)
	}

	d := New(st, nil, nil, nil, &Config{
		CatalogDir:       catalogDir,
		DebounceInterval: 100 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon-test] ", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitForCount(t, st, 2)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("daemon exited with error: %v", err)
	}
}

func TestDaemonRefreshesOnNewBatchFile(t *testing.T) {
	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "catalog")

	st, err := store.Open(filepath.Join(dir, "lexy.db"))
	if err != nil {
		t.Fatalf("store open failed: %v", err)
	}
	defer st.Close()

	d := New(st, nil, nil, nil, &Config{
		CatalogDir:       catalogDir,
		DebounceInterval: 100 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon-test] ", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// Let the watcher come up before dropping the file.
	time.Sleep(200 * time.Millisecond)

	if err := catalog.WriteBatchFile(filepath.Join(catalogDir, "new.json"), []catalog.ContentItem{
		testItem("live-1"),
	}); err != nil {
		t.Fatalf("WriteBatchFile failed: %v", err)
	}

	waitForCount(t, st, 1)

	d.Stop()
	if err := <-done; err != nil {
		t.Fatalf("daemon exited with error: %v", err)
	}
}

func waitForCount(t *testing.T, st *store.Store, want int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		count, err := st.ContentItemCount(context.Background())
		if err != nil {
			t.Fatalf("ContentItemCount failed: %v", err)
		}
		if count == want {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("cache never reached %d items", want)
}
