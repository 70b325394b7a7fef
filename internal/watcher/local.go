package watcher

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"file-recorder/internal/ignore"
	"file-recorder/internal/logging"
	"file-recorder/internal/metrics"
)

var log = logging.For("watcher")

// LocalWatcher watches local folders through a Backend and reports debounced
// batches of file events per watched folder.
type LocalWatcher struct {
	backend   Backend
	interval  time.Duration
	filter    *ignore.Matcher
	onChanges func(folder string, events []FileEvent)

	mu      sync.Mutex
	watches map[string]*localWatch
}

type localWatch struct {
	path      string
	handle    WatchHandle
	debouncer *Debouncer
}

// NewLocalWatcher creates a local watcher. onChanges is called from the
// debounce timer goroutine with the watched folder path and its batch.
func NewLocalWatcher(backend Backend, interval time.Duration, onChanges func(string, []FileEvent)) *LocalWatcher {
	return &LocalWatcher{
		backend:   backend,
		interval:  interval,
		filter:    ignore.NewTransientMatcher(),
		onChanges: onChanges,
		watches:   make(map[string]*localWatch),
	}
}

// AddWatch starts watching path recursively. Watching an already watched
// path succeeds without doing anything.
func (w *LocalWatcher) AddWatch(path string) error {
	key := keyOf(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watches[key]; ok {
		log.Debug("Already watching %s", path)
		return nil
	}

	lw := &localWatch{path: path}
	lw.debouncer = NewDebouncer(w.interval, func(batch []FileEvent) {
		w.emit(lw.path, batch)
	})

	handle, err := w.backend.Watch(path, func(ev FileEvent) {
		w.receive(lw, ev)
	})
	if err != nil {
		lw.debouncer.Stop()
		return fmt.Errorf("watch %s: %w", path, err)
	}
	lw.handle = handle

	w.watches[key] = lw
	metrics.WatcherLocalWatches.Set(float64(len(w.watches)))
	log.Info("Watching local folder %s", path)
	return nil
}

// RemoveWatch stops watching path and drops its pending events.
func (w *LocalWatcher) RemoveWatch(path string) {
	key := keyOf(path)

	w.mu.Lock()
	lw, ok := w.watches[key]
	delete(w.watches, key)
	metrics.WatcherLocalWatches.Set(float64(len(w.watches)))
	w.mu.Unlock()

	if !ok {
		return
	}
	w.close(lw)
	log.Info("Stopped watching local folder %s", lw.path)
}

// StopAll removes every watch.
func (w *LocalWatcher) StopAll() {
	w.mu.Lock()
	all := make([]*localWatch, 0, len(w.watches))
	for _, lw := range w.watches {
		all = append(all, lw)
	}
	w.watches = make(map[string]*localWatch)
	metrics.WatcherLocalWatches.Set(0)
	w.mu.Unlock()

	for _, lw := range all {
		w.close(lw)
	}
}

// IsWatching reports whether path has an active watch.
func (w *LocalWatcher) IsWatching(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watches[keyOf(path)]
	return ok
}

// WatchedPaths returns the watched folder paths in sorted order.
func (w *LocalWatcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.watches))
	for _, lw := range w.watches {
		paths = append(paths, lw.path)
	}
	sort.Strings(paths)
	return paths
}

func (w *LocalWatcher) close(lw *localWatch) {
	lw.debouncer.Stop()
	if err := lw.handle.Close(); err != nil {
		log.Warn("Error closing watch on %s: %v", lw.path, err)
	}
}

// receive filters one raw event before it enters the debounce window.
func (w *LocalWatcher) receive(lw *localWatch, ev FileEvent) {
	if ev.Type == EventModified && ev.IsDir {
		return
	}
	if w.filter.ShouldIgnore(ev.Path, ev.IsDir) {
		metrics.WatcherEventsIgnored.Inc()
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	log.Debug("%s: %s", ev.Type, ev.Path)
	lw.debouncer.Add(ev)
}

func (w *LocalWatcher) emit(folder string, batch []FileEvent) {
	metrics.WatcherBatchesTotal.Inc()
	log.Info("%d change(s) under %s", len(batch), folder)
	if w.onChanges != nil {
		w.onChanges(folder, batch)
	}
}
