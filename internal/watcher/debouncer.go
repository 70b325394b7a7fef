package watcher

import (
	"sort"
	"sync"
	"time"
)

// DefaultDebounceInterval is the quiet period before a batch is flushed.
const DefaultDebounceInterval = time.Second

// Debouncer collects events and hands them over as one batch after a quiet
// period. Events for the same path within the window collapse into the last
// one seen.
type Debouncer struct {
	interval time.Duration
	flushFn  func([]FileEvent)

	mu      sync.Mutex
	events  map[string]FileEvent
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer creates a debouncer that calls flush with each batch.
func NewDebouncer(interval time.Duration, flush func([]FileEvent)) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Debouncer{
		interval: interval,
		flushFn:  flush,
		events:   make(map[string]FileEvent),
	}
}

// Add records event and restarts the quiet period.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.events[event.Path] = event

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.interval, func() { d.flush(gen) })
}

// Pending returns the number of paths waiting for the next flush.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

// Stop cancels the timer and discards pending events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.events = make(map[string]FileEvent)
}

// flush emits the pending batch unless a newer event superseded the timer
// that triggered it.
func (d *Debouncer) flush(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || len(d.events) == 0 {
		d.mu.Unlock()
		return
	}

	batch := make([]FileEvent, 0, len(d.events))
	for _, event := range d.events {
		batch = append(batch, event)
	}
	d.events = make(map[string]FileEvent)
	d.timer = nil
	d.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	d.flushFn(batch)
}
