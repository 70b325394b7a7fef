package scanner

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"file-recorder/internal/database"
	"file-recorder/internal/metrics"
)

// Rescanner performs one clear-and-rescan. *Scanner implements it.
type Rescanner interface {
	Rescan(ctx context.Context, root string) (Result, error)
}

// DoneFunc is called after a queued rescan finished.
type DoneFunc func(Result, error)

// Request is a queued rescan.
type Request struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Reason string `json:"reason"`

	done []DoneFunc
}

// Queue runs rescans one at a time in FIFO order. A path that is already
// waiting is not queued twice.
type Queue struct {
	scanner Rescanner
	silent  func(ctx context.Context) bool

	mu      sync.Mutex
	pending []*Request
	byKey   map[string]*Request
	current *Request
	wake    chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue creates a stopped queue. silent reports whether automatic
// rescans should be logged at debug level; it may be nil.
func NewQueue(scanner Rescanner, silent func(ctx context.Context) bool) *Queue {
	return &Queue{
		scanner: scanner,
		silent:  silent,
		byKey:   make(map[string]*Request),
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the consumer goroutine.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	if q.done != nil {
		q.mu.Unlock()
		cancel()
		return
	}
	q.cancel = cancel
	q.done = make(chan struct{})
	done := q.done
	q.mu.Unlock()

	go q.run(ctx, done)
}

// Stop cancels the running rescan, drops pending requests and waits for the
// consumer to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel, done := q.cancel, q.done
	dropped := len(q.pending)
	q.pending = nil
	q.byKey = make(map[string]*Request)
	q.cancel, q.done = nil, nil
	q.mu.Unlock()

	metrics.RescanQueueDepth.Set(0)
	if cancel == nil {
		return
	}
	if dropped > 0 {
		log.Info("Dropping %d pending rescan(s)", dropped)
	}
	cancel()
	<-done
}

// Enqueue adds a rescan of path. If the path is already waiting, onDone is
// attached to that request and its id is returned with queued == false.
// onDone may be nil.
func (q *Queue) Enqueue(path, reason string, onDone DoneFunc) (id string, queued bool) {
	path = database.NormalizePath(path)
	key := database.PathKey(path)

	q.mu.Lock()
	defer q.mu.Unlock()

	if req, ok := q.byKey[key]; ok {
		if onDone != nil {
			req.done = append(req.done, onDone)
		}
		return req.ID, false
	}

	req := &Request{ID: uuid.NewString(), Path: path, Reason: reason}
	if onDone != nil {
		req.done = append(req.done, onDone)
	}
	q.pending = append(q.pending, req)
	q.byKey[key] = req
	metrics.RescanQueueDepth.Set(float64(len(q.pending)))

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return req.ID, true
}

// Pending returns the waiting requests in order.
func (q *Queue) Pending() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Request, 0, len(q.pending))
	for _, r := range q.pending {
		out = append(out, Request{ID: r.ID, Path: r.Path, Reason: r.Reason})
	}
	return out
}

// Current returns the running request, if any.
func (q *Queue) Current() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return nil
	}
	return &Request{ID: q.current.ID, Path: q.current.Path, Reason: q.current.Reason}
}

func (q *Queue) next() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	delete(q.byKey, database.PathKey(req.Path))
	q.current = req
	metrics.RescanQueueDepth.Set(float64(len(q.pending)))
	return req
}

func (q *Queue) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		for {
			if ctx.Err() != nil {
				return
			}
			req := q.next()
			if req == nil {
				break
			}
			q.process(ctx, req)
		}

		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
	}
}

func (q *Queue) process(ctx context.Context, req *Request) {
	logf := log.Info
	if q.silent != nil && q.silent(ctx) {
		logf = log.Debug
	}
	logf("Rescan %s of %s started (%s)", shortID(req.ID), req.Path, req.Reason)

	res, err := q.scanner.Rescan(ctx, req.Path)

	switch {
	case err != nil:
		log.Error("Rescan %s of %s failed: %v", shortID(req.ID), req.Path, err)
	case res.Cancelled:
		log.Warn("Rescan %s of %s cancelled", shortID(req.ID), req.Path)
	default:
		logf("Rescan %s of %s done: %d files, %d errors", shortID(req.ID), req.Path, res.FileCount, res.ErrorCount)
	}

	q.mu.Lock()
	q.current = nil
	callbacks := req.done
	q.mu.Unlock()

	for _, fn := range callbacks {
		fn(res, err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
