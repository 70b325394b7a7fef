package watcher

import (
	"os"
	"sort"
	"sync"
	"time"

	"file-recorder/internal/database"
	"file-recorder/internal/filesystem"
	"file-recorder/internal/metrics"
)

const (
	// FirstCheckDelay is the delay before the first check of a new poll.
	FirstCheckDelay = time.Second

	retryFast   = 5 * time.Second
	retryMedium = 30 * time.Second
	retrySlow   = 300 * time.Second
)

// retryInterval returns the retry delay for a path that has been failing
// for elapsed.
func retryInterval(elapsed time.Duration) time.Duration {
	switch {
	case elapsed < 2*time.Minute:
		return retryFast
	case elapsed < 10*time.Minute:
		return retryMedium
	default:
		return retrySlow
	}
}

// PollCallbacks receive poller results. They are called from timer
// goroutines without any poller lock held.
type PollCallbacks struct {
	// OnChange is called when the directory mtime differs from the last one seen.
	OnChange func(path string, mtime time.Time)
	// OnError is called on every failed check.
	OnError func(path string, err error)
	// OnRestored is called on the first successful check after failures.
	OnRestored func(path string)
}

// NetworkPoller detects changes in folders that cannot be watched by
// comparing the directory mtime on a timer.
type NetworkPoller struct {
	callbacks  PollCallbacks
	stat       func(string) (os.FileInfo, error)
	now        func() time.Time
	firstCheck time.Duration

	mu    sync.Mutex
	polls map[string]*pollState
}

type pollState struct {
	path     string
	interval time.Duration
	timer    *time.Timer
	delay    time.Duration // delay used for the next scheduled check
	stopped  bool

	lastMtime time.Time
	hasMtime  bool

	failing      bool
	firstFailure time.Time
	failCount    int
}

// NewNetworkPoller creates a poller. Stats go through filesystem.StatWithRetry.
func NewNetworkPoller(callbacks PollCallbacks) *NetworkPoller {
	return &NetworkPoller{
		callbacks: callbacks,
		stat: func(path string) (os.FileInfo, error) {
			return filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
		},
		now:        time.Now,
		firstCheck: FirstCheckDelay,
		polls:      make(map[string]*pollState),
	}
}

// AddPoll starts polling folder at its configured interval, with a first
// check shortly after. Adding a path that is already polled does nothing.
func (p *NetworkPoller) AddPoll(folder database.MonitoredFolder) {
	key := keyOf(folder.Path)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.polls[key]; ok {
		log.Debug("Already polling %s", folder.Path)
		return
	}

	st := &pollState{
		path:     folder.Path,
		interval: minutes(folder.PollIntervalMinutes),
	}
	if folder.LastMtime != nil {
		st.lastMtime = *folder.LastMtime
		st.hasMtime = true
	}
	p.polls[key] = st
	p.schedule(key, st, p.firstCheck)
	p.publishGauges()

	log.Info("Polling network folder %s every %d minute(s)", folder.Path, folder.PollIntervalMinutes)
}

// RemovePoll stops polling path and discards its state.
func (p *NetworkPoller) RemovePoll(path string) {
	key := keyOf(path)

	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.polls[key]
	if !ok {
		return
	}
	p.stopState(st)
	delete(p.polls, key)
	p.publishGauges()
	log.Info("Stopped polling network folder %s", st.path)
}

// UpdateInterval changes the normal interval of path. A path in backoff
// keeps its retry schedule and picks up the new interval on recovery.
func (p *NetworkPoller) UpdateInterval(path string, intervalMinutes int) {
	key := keyOf(path)

	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.polls[key]
	if !ok {
		return
	}
	st.interval = minutes(intervalMinutes)
	if !st.failing {
		p.schedule(key, st, st.interval)
	}
	log.Info("Poll interval of %s set to %d minute(s)", st.path, intervalMinutes)
}

// StopAll removes every poll.
func (p *NetworkPoller) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, st := range p.polls {
		p.stopState(st)
		delete(p.polls, key)
	}
	p.publishGauges()
}

// IsPolling reports whether path is polled.
func (p *NetworkPoller) IsPolling(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.polls[keyOf(path)]
	return ok
}

// PolledPaths returns the polled paths in sorted order.
func (p *NetworkPoller) PolledPaths() []string {
	return p.paths(func(*pollState) bool { return true })
}

// ErrorPaths returns the paths currently in backoff.
func (p *NetworkPoller) ErrorPaths() []string {
	return p.paths(func(st *pollState) bool { return st.failing })
}

func (p *NetworkPoller) paths(include func(*pollState) bool) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := []string{}
	for _, st := range p.polls {
		if include(st) {
			out = append(out, st.path)
		}
	}
	sort.Strings(out)
	return out
}

// schedule (re)arms the timer of st. Caller holds p.mu.
func (p *NetworkPoller) schedule(key string, st *pollState, delay time.Duration) {
	if st.timer != nil {
		st.timer.Stop()
	}
	st.delay = delay
	st.timer = time.AfterFunc(delay, func() {
		if p.check(key) {
			p.mu.Lock()
			if cur, ok := p.polls[key]; ok && cur == st && !st.stopped {
				p.schedule(key, st, st.delay)
			}
			p.mu.Unlock()
		}
	})
}

func (p *NetworkPoller) stopState(st *pollState) {
	st.stopped = true
	if st.timer != nil {
		st.timer.Stop()
	}
}

// check performs one stat of the path under key and updates its state and
// next delay. It returns false when the poll was removed meanwhile.
func (p *NetworkPoller) check(key string) bool {
	p.mu.Lock()
	st, ok := p.polls[key]
	if !ok || st.stopped {
		p.mu.Unlock()
		return false
	}
	path := st.path
	p.mu.Unlock()

	start := time.Now()
	info, err := p.stat(path)
	metrics.PollerCheckDuration.Observe(time.Since(start).Seconds())

	p.mu.Lock()
	if cur, ok := p.polls[key]; !ok || cur != st || st.stopped {
		p.mu.Unlock()
		return false
	}

	restored := false
	if err != nil {
		if !st.failing {
			st.failing = true
			st.firstFailure = p.now()
			st.failCount = 0
		}
		st.failCount++
		st.delay = retryInterval(p.now().Sub(st.firstFailure))
		failCount, delay := st.failCount, st.delay
		p.publishGauges()
		p.mu.Unlock()

		metrics.PollerChecksTotal.WithLabelValues("error").Inc()
		log.Warn("Poll of %s failed (%d in a row), retrying in %s: %v", path, failCount, delay, err)
		if p.callbacks.OnError != nil {
			p.callbacks.OnError(path, err)
		}
		return true
	}

	if st.failing {
		st.failing = false
		st.failCount = 0
		st.firstFailure = time.Time{}
		restored = true
	}
	st.delay = st.interval

	mtime := info.ModTime()
	changed := st.hasMtime && !mtime.Equal(st.lastMtime)
	st.lastMtime = mtime
	st.hasMtime = true
	if restored {
		p.publishGauges()
	}
	p.mu.Unlock()

	if restored {
		log.Info("Connection to %s restored", path)
		if p.callbacks.OnRestored != nil {
			p.callbacks.OnRestored(path)
		}
	}

	if changed {
		metrics.PollerChecksTotal.WithLabelValues("changed").Inc()
		log.Info("Poll detected a change in %s", path)
		if p.callbacks.OnChange != nil {
			p.callbacks.OnChange(path, mtime)
		}
	} else {
		metrics.PollerChecksTotal.WithLabelValues("unchanged").Inc()
		log.Debug("Poll of %s: no change", path)
	}
	return true
}

// publishGauges updates poller gauges. Caller holds p.mu.
func (p *NetworkPoller) publishGauges() {
	failing := 0
	for _, st := range p.polls {
		if st.failing {
			failing++
		}
	}
	metrics.WatcherPolledPaths.Set(float64(len(p.polls)))
	metrics.WatcherBackoffPaths.Set(float64(failing))
}

func minutes(n int) time.Duration {
	if n <= 0 {
		n = 1
	}
	return time.Duration(n) * time.Minute
}
