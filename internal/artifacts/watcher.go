package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"qatriage/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports settled changes to store files. It watches the containing
// directory because appends replace the file through a rename.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	dir         string
	handlers    map[string]func()
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	Events        int
	Notifications int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// NewWatcher creates a watcher for store files in dir.
func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		dir:         abs,
		handlers:    make(map[string]func()),
		debounceMap: make(map[string]time.Time),
		debounceDur: 200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// OnChange registers fn for the store at path. Register before Start.
func (w *Watcher) OnChange(path string, fn func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if filepath.Dir(abs) != w.dir {
		return fmt.Errorf("%s is not in watched directory %s", abs, w.dir)
	}
	w.mu.Lock()
	w.handlers[abs] = fn
	w.mu.Unlock()
	return nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logging.Store("watching %s", w.dir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.StoreError("error closing watcher: %v", err)
	}
}

// Done is closed when the event loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

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
			logging.StoreError("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.processDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.handlers[name]; !ok {
		return
	}
	w.stats.Events++
	w.stats.LastEventPath = name
	w.stats.LastEventTime = time.Now()
	w.debounceMap[name] = time.Now()
}

func (w *Watcher) processDebounced() {
	w.mu.Lock()
	now := time.Now()
	var ready []func()
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			ready = append(ready, w.handlers[path])
			delete(w.debounceMap, path)
			w.stats.Notifications++
		}
	}
	w.mu.Unlock()

	for _, fn := range ready {
		fn()
	}
}

// Tail yields records appended to a store since the last call.
type Tail[T any] struct {
	store *Store[T]
	seen  int
}

// NewTail starts a tail at the current end of store.
func NewTail[T any](store *Store[T]) (*Tail[T], error) {
	recs, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Tail[T]{store: store, seen: len(recs)}, nil
}

// Next returns records appended since the previous call. If the store
// shrank (it was quarantined and restarted) the tail starts over.
func (t *Tail[T]) Next() ([]T, error) {
	recs, err := t.store.Load()
	if err != nil {
		return nil, err
	}
	if len(recs) < t.seen {
		t.seen = 0
	}
	fresh := recs[t.seen:]
	t.seen = len(recs)
	return fresh, nil
}
