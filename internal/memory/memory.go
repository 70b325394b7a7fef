package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"file-recorder/internal/logging"
	"file-recorder/internal/metrics"
)

var log = logging.For("memory")

// Config holds the thresholds of a Monitor.
type Config struct {
	// Limit is the heap budget in bytes. Zero uses GOMEMLIMIT.
	Limit int64
	// HighWaterMark is the usage ratio below which paused scans resume.
	HighWaterMark float64
	// CriticalWaterMark is the usage ratio at which scans pause.
	CriticalWaterMark float64
	// CheckInterval is how often heap usage is sampled.
	CheckInterval time.Duration
}

// DefaultConfig returns the thresholds used by the server.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.70,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and holds scans back while it is critical.
// A Monitor without a limit never pauses.
type Monitor struct {
	config    Config
	limit     int64
	readAlloc func() uint64

	mu      sync.Mutex
	usage   float64
	paused  bool
	resume  chan struct{}
	stop    chan struct{}
	stopped sync.Once
}

// NewMonitor creates a monitor. It does not sample until Start is called.
func NewMonitor(config Config) *Monitor {
	limit := config.Limit
	if limit == 0 {
		if current := debug.SetMemoryLimit(-1); current > 0 && current < 1<<62 {
			limit = current
		}
	}
	if limit == 0 {
		log.Debug("No memory limit configured, scan backpressure disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		readAlloc: heapAlloc,
		resume:    make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Start samples heap usage every CheckInterval until Stop.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases any waiting scans.
func (m *Monitor) Stop() {
	m.stopped.Do(func() {
		close(m.stop)
		m.mu.Lock()
		m.setPaused(false)
		m.mu.Unlock()
	})
}

func (m *Monitor) check() {
	if m.limit == 0 {
		return
	}
	usage := float64(m.readAlloc()) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = usage

	switch {
	case usage >= m.config.CriticalWaterMark && !m.paused:
		log.Warn("Heap at %.1f%% of limit, pausing scans", usage*100)
		metrics.MemoryPausesTotal.Inc()
		m.setPaused(true)
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.paused:
		log.Info("Heap back to %.1f%% of limit, resuming scans", usage*100)
		m.setPaused(false)
	}
}

// setPaused must be called with mu held.
func (m *Monitor) setPaused(paused bool) {
	if m.paused == paused {
		return
	}
	m.paused = paused
	if paused {
		metrics.MemoryPaused.Set(1)
		return
	}
	metrics.MemoryPaused.Set(0)
	close(m.resume)
	m.resume = make(chan struct{})
}

// Wait blocks while scans are paused. It returns ctx.Err() when ctx ends
// first.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	resume := m.resume
	m.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether scans are currently held back.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Usage returns the last sampled heap usage as a ratio of the limit.
func (m *Monitor) Usage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}
