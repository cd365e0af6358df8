// Package daemon runs the background sync agent.
//
// The daemon watches the catalog drop directory for new batch files and
// installs refreshed generations into the cache, keeps the connectivity
// signal current, schedules replay passes on the offline-to-online edge and
// on a slow periodic tick, and forwards queue activity to the dashboard.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lexyapp/lexy/internal/catalog"
	"github.com/lexyapp/lexy/internal/connectivity"
	"github.com/lexyapp/lexy/internal/dashboard"
	"github.com/lexyapp/lexy/internal/store"
	"github.com/lexyapp/lexy/internal/syncq"
)

// Config holds daemon configuration.
type Config struct {
	// CatalogDir is the drop directory watched for batch files.
	CatalogDir string

	// DebounceInterval coalesces bursts of file events into one refresh.
	DebounceInterval time.Duration

	// ReplayInterval is the slow periodic replay tick, a safety net for
	// missed connectivity edges. Zero disables it.
	ReplayInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 2 * time.Second,
		ReplayInterval:   5 * time.Minute,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon coordinates the catalog watcher, connectivity monitor, sync queue,
// and dashboard.
type Daemon struct {
	store     *store.Store
	queue     *syncq.Queue
	monitor   *connectivity.Monitor
	dashboard *dashboard.Server
	config    *Config

	watcher *fsnotify.Watcher

	// pendingRefresh marks that file events arrived and a refresh is due
	// once the debounce window closes.
	mu             sync.Mutex
	pendingRefresh bool
	lastEvent      time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon. monitor and dash may be nil; the corresponding
// features are then disabled.
func New(st *store.Store, queue *syncq.Queue, monitor *connectivity.Monitor, dash *dashboard.Server, config *Config) *Daemon {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 2 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	return &Daemon{
		store:     st,
		queue:     queue,
		monitor:   monitor,
		dashboard: dash,
		config:    config,
	}
}

// Start runs the daemon until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.config.CatalogDir != "" {
		if err := os.MkdirAll(d.config.CatalogDir, 0755); err != nil {
			return fmt.Errorf("failed to create catalog directory: %w", err)
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		d.watcher = watcher

		if err := watcher.Add(d.config.CatalogDir); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", d.config.CatalogDir, err)
		}

		d.wg.Add(1)
		go d.watchLoop(ctx)

		d.config.Logger.Printf("Watching catalog directory %s", d.config.CatalogDir)

		// Pick up batches dropped while the daemon was not running.
		d.refreshCache(ctx)
	}

	if d.monitor != nil {
		d.monitor.Start()
	}

	if d.queue != nil {
		d.wg.Add(1)
		go d.forwardEvents(ctx)

		if d.config.ReplayInterval > 0 {
			d.wg.Add(1)
			go d.replayLoop(ctx)
		}

		// Drain anything left over from previous sessions.
		d.queue.ScheduleReplay()
	}

	<-ctx.Done()

	if d.monitor != nil {
		d.monitor.Stop()
	}
	if d.queue != nil {
		d.queue.Stop()
	}
	if d.watcher != nil {
		d.watcher.Close()
	}
	d.wg.Wait()

	return nil
}

// Stop signals the daemon to shut down.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// watchLoop consumes file events and debounces them into cache refreshes.
func (d *Daemon) watchLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !d.relevantEvent(event) {
				continue
			}
			d.mu.Lock()
			d.pendingRefresh = true
			d.lastEvent = time.Now()
			d.mu.Unlock()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)

		case <-ticker.C:
			d.mu.Lock()
			due := d.pendingRefresh && time.Since(d.lastEvent) >= d.config.DebounceInterval
			if due {
				d.pendingRefresh = false
			}
			d.mu.Unlock()

			if due {
				d.refreshCache(ctx)
			}
		}
	}
}

// relevantEvent filters for writes to *.json batch files. Editors and
// download tools produce temp-file noise we do not want to refresh on.
func (d *Daemon) relevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, ".json")
}

// refreshCache reads the whole drop directory and installs it as the new
// cache generation. An empty directory is left alone rather than wiping the
// cache.
func (d *Daemon) refreshCache(ctx context.Context) {
	items, err := catalog.ReadAllBatchFiles(d.config.CatalogDir)
	if err != nil {
		d.config.Logger.Printf("Cache refresh failed: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	if err := d.store.ReplaceContentItems(ctx, items); err != nil {
		d.config.Logger.Printf("Cache refresh failed: %v", err)
		return
	}

	d.config.Logger.Printf("Cache refreshed: %d items", len(items))

	if d.dashboard != nil {
		d.dashboard.BroadcastJSON(dashboard.MessageTypeCacheRefreshed,
			dashboard.CacheRefreshedData{ItemCount: len(items)})
	}
}

// forwardEvents relays queue activity to the dashboard.
func (d *Daemon) forwardEvents(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.queue.Events():
			if !ok {
				return
			}
			if d.dashboard == nil {
				continue
			}

			switch event.Type {
			case syncq.EventTaskApplied:
				d.dashboard.BroadcastJSON(dashboard.MessageTypeTaskApplied, event)
			case syncq.EventTaskAbandoned:
				d.dashboard.BroadcastJSON(dashboard.MessageTypeTaskAbandoned, event)
			case syncq.EventPassComplete:
				d.dashboard.BroadcastJSON(dashboard.MessageTypeReplayComplete, event)
				d.dashboard.BroadcastJSON(dashboard.MessageTypeQueue,
					map[string]int{"pending": event.Pending})
			}
		}
	}
}

// replayLoop is the slow periodic replay safety net.
func (d *Daemon) replayLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ReplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.queue.Replay(ctx)
		}
	}
}
