package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trailscout/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file for changes and hot-reloads it.
// It watches the containing directory rather than the file itself;
// most editors replace files via rename, which drops a file watch.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	path        string
	dir         string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	onReload    []func(*Config)

	stats WatcherStats
}

// WatcherStats tracks watcher activity for the doctor command and tests.
type WatcherStats struct {
	EventsSeen    int
	Reloads       int
	ReloadErrors  int
	LastEventTime time.Time
	LastEventPath string
}

// NewWatcher creates a Watcher for the given config file path.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fw,
		path:        path,
		dir:         filepath.Dir(path),
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked with the freshly loaded config
// after each settled change. Register before Start.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Start begins watching the config directory. Non-blocking; the event
// loop runs in a goroutine until Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.Get(logging.CategoryBoot).Warn("config watcher: failed to create dir %s: %v (continuing anyway)", w.dir, err)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		logging.Get(logging.CategoryBoot).Warn("config watcher: initial watch failed (dir may not exist): %v", err)
	} else {
		logging.Get(logging.CategoryBoot).Info("config watcher: watching %s", w.dir)
	}

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryBoot).Error("config watcher: error closing watcher: %v", err)
	}
}

// run is the main event loop.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Error("config watcher: %v", err)

		case <-debounceTicker.C:
			w.processDebouncedEvents()
		}
	}
}

// handleEvent records a relevant filesystem event for debounced reload.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Only care about the config file itself.
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return // Ignore chmod, remove, etc.
	}

	w.mu.Lock()
	w.stats.EventsSeen++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processDebouncedEvents reloads once events have settled past the
// debounce window.
func (w *Watcher) processDebouncedEvents() {
	w.mu.Lock()
	now := time.Now()
	settled := false
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			delete(w.debounceMap, path)
			settled = true
		}
	}
	w.mu.Unlock()

	if !settled {
		return
	}
	w.reload()
}

// reload loads the config file and notifies subscribers. A file that
// fails to parse keeps the previous config in effect.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Get(logging.CategoryBoot).Error("config watcher: reload failed: %v", err)
		w.mu.Lock()
		w.stats.ReloadErrors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.stats.Reloads++
	callbacks := make([]func(*Config), len(w.onReload))
	copy(callbacks, w.onReload)
	w.mu.Unlock()

	logging.Get(logging.CategoryBoot).Info("config watcher: reloaded %s", w.path)
	for _, fn := range callbacks {
		fn(cfg)
	}
}

// Stats returns a copy of the watcher statistics.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
