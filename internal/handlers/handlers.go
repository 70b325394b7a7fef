package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"file-recorder/internal/database"
	"file-recorder/internal/logging"
	"file-recorder/internal/reconciler"
	"file-recorder/internal/registry"
	"file-recorder/internal/scanner"
	"file-recorder/internal/watcher"
)

var log = logging.For("http")

type Handlers struct {
	db         *database.Database
	registry   *registry.Registry
	manager    *watcher.Manager
	queue      *scanner.Queue
	reconciler *reconciler.Reconciler
	events     *eventLog
	startTime  time.Time
	ready      atomic.Bool
}

func New(db *database.Database, reg *registry.Registry, mgr *watcher.Manager, queue *scanner.Queue, rec *reconciler.Reconciler) *Handlers {
	h := &Handlers{
		db:         db,
		registry:   reg,
		manager:    mgr,
		queue:      queue,
		reconciler: rec,
		events:     newEventLog(defaultEventLogSize),
		startTime:  time.Now(),
	}
	mgr.Subscribe(h.events.record)
	return h
}

// SetReady marks startup as finished; readiness probes fail until then.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// reconfigure pushes registry changes to a running manager.
func (h *Handlers) reconfigure(ctx context.Context) {
	if err := h.manager.Reconfigure(ctx); err != nil {
		log.Error("Failed to apply watcher configuration: %v", err)
	}
}

// enqueueRescan queues path and refreshes the monitored mtime once the scan
// completed.
func (h *Handlers) enqueueRescan(path, reason string) (string, bool) {
	return h.queue.Enqueue(path, reason, RefreshAfterScan(h.registry, path))
}

// RefreshAfterScan returns a completion callback that records the folder's
// current mtime after a successful scan.
func RefreshAfterScan(reg *registry.Registry, path string) scanner.DoneFunc {
	return func(res scanner.Result, err error) {
		if err != nil || res.Cancelled {
			return
		}
		if err := reg.RefreshMtime(context.Background(), path); err != nil {
			log.Warn("Failed to refresh mtime of %s after rescan: %v", path, err)
		}
	}
}
