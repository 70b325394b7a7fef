package watcher

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"file-recorder/internal/database"
)

type pollRecorder struct {
	mu       sync.Mutex
	changes  []time.Time
	errors   int
	restored int
}

func (r *pollRecorder) callbacks() PollCallbacks {
	return PollCallbacks{
		OnChange: func(_ string, mtime time.Time) {
			r.mu.Lock()
			r.changes = append(r.changes, mtime)
			r.mu.Unlock()
		},
		OnError: func(string, error) {
			r.mu.Lock()
			r.errors++
			r.mu.Unlock()
		},
		OnRestored: func(string) {
			r.mu.Lock()
			r.restored++
			r.mu.Unlock()
		},
	}
}

// testPoller returns a poller whose timers never fire during the test;
// checks are driven by calling check directly.
type testPoller struct {
	*NetworkPoller
	rec     *pollRecorder
	now     time.Time
	statErr error
	mtime   time.Time
}

func newTestPoller(t *testing.T) *testPoller {
	t.Helper()

	tp := &testPoller{rec: &pollRecorder{}, now: time.Unix(1700000000, 0)}
	tp.NetworkPoller = NewNetworkPoller(tp.rec.callbacks())
	tp.firstCheck = time.Hour
	tp.NetworkPoller.now = func() time.Time { return tp.now }
	tp.stat = func(path string) (os.FileInfo, error) {
		if tp.statErr != nil {
			return nil, tp.statErr
		}
		return fakeInfo{name: path, mtime: tp.mtime}, nil
	}
	t.Cleanup(tp.StopAll)
	return tp
}

func (tp *testPoller) delay(t *testing.T, path string) time.Duration {
	t.Helper()
	tp.mu.Lock()
	defer tp.mu.Unlock()
	st, ok := tp.polls[keyOf(path)]
	if !ok {
		t.Fatalf("%s is not polled", path)
	}
	return st.delay
}

func TestRetryIntervalIsMonotonic(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{119 * time.Second, 5 * time.Second},
		{2 * time.Minute, 30 * time.Second},
		{9*time.Minute + 59*time.Second, 30 * time.Second},
		{10 * time.Minute, 300 * time.Second},
		{24 * time.Hour, 300 * time.Second},
	}
	for _, tt := range tests {
		if got := retryInterval(tt.elapsed); got != tt.want {
			t.Errorf("retryInterval(%s) = %s, want %s", tt.elapsed, got, tt.want)
		}
	}

	prev := time.Duration(0)
	for elapsed := time.Duration(0); elapsed < 20*time.Minute; elapsed += 7 * time.Second {
		got := retryInterval(elapsed)
		if got < prev {
			t.Fatalf("retryInterval(%s) = %s, decreased from %s", elapsed, got, prev)
		}
		prev = got
	}
}

func TestPollerBackoffAndRestore(t *testing.T) {
	tp := newTestPoller(t)
	path := `\\server\share\videos`
	tp.AddPoll(database.MonitoredFolder{Path: path, PollIntervalMinutes: 15, Enabled: true})

	if got := tp.delay(t, path); got != time.Hour {
		t.Fatalf("first check delay = %s", got)
	}

	tp.statErr = errors.New("network path not found")
	start := tp.now

	steps := []struct {
		at   time.Duration
		want time.Duration
	}{
		{0, 5 * time.Second},
		{5 * time.Second, 5 * time.Second},
		{2*time.Minute + 10*time.Second, 30 * time.Second},
		{11 * time.Minute, 300 * time.Second},
	}
	for i, s := range steps {
		tp.now = start.Add(s.at)
		tp.check(keyOf(path))
		if got := tp.delay(t, path); got != s.want {
			t.Errorf("failure %d at +%s: delay = %s, want %s", i+1, s.at, got, s.want)
		}
	}
	if tp.rec.errors != len(steps) {
		t.Errorf("connection errors = %d, want %d", tp.rec.errors, len(steps))
	}
	if got := tp.ErrorPaths(); len(got) != 1 {
		t.Errorf("ErrorPaths() = %v", got)
	}

	tp.statErr = nil
	tp.mtime = time.Unix(1000, 0)
	tp.check(keyOf(path))

	if got := tp.delay(t, path); got != 15*time.Minute {
		t.Errorf("delay after recovery = %s, want configured 15m", got)
	}
	if tp.rec.restored != 1 {
		t.Errorf("restored = %d, want 1", tp.rec.restored)
	}
	if got := tp.ErrorPaths(); len(got) != 0 {
		t.Errorf("ErrorPaths() after recovery = %v", got)
	}

	// A new failure streak starts from the fast bucket again.
	tp.statErr = errors.New("gone")
	tp.now = start.Add(time.Hour)
	tp.check(keyOf(path))
	if got := tp.delay(t, path); got != 5*time.Second {
		t.Errorf("delay of new streak = %s, want 5s", got)
	}
}

func TestPollerChangeDetection(t *testing.T) {
	tp := newTestPoller(t)

	// Without a known mtime the first check only records it.
	tp.AddPoll(database.MonitoredFolder{Path: "//nas/a", PollIntervalMinutes: 5, Enabled: true})
	tp.mtime = time.Unix(1000, 0)
	tp.check(keyOf("//nas/a"))
	if len(tp.rec.changes) != 0 {
		t.Fatalf("change reported without a previous mtime: %v", tp.rec.changes)
	}

	tp.check(keyOf("//nas/a"))
	if len(tp.rec.changes) != 0 {
		t.Fatalf("change reported for equal mtime")
	}

	tp.mtime = time.Unix(2000, 0)
	tp.check(keyOf("//nas/a"))
	if len(tp.rec.changes) != 1 || !tp.rec.changes[0].Equal(tp.mtime) {
		t.Fatalf("changes = %v, want one at %v", tp.rec.changes, tp.mtime)
	}

	// A stored mtime from the registry is the comparison baseline.
	last := time.Unix(500, 0)
	tp.AddPoll(database.MonitoredFolder{Path: "//nas/b", PollIntervalMinutes: 5, Enabled: true, LastMtime: &last})
	tp.check(keyOf("//nas/b"))
	if len(tp.rec.changes) != 2 {
		t.Errorf("changes = %d, want 2", len(tp.rec.changes))
	}
}

func TestPollerUpdateAndRemove(t *testing.T) {
	tp := newTestPoller(t)
	path := "//nas/a"
	tp.AddPoll(database.MonitoredFolder{Path: path, PollIntervalMinutes: 5, Enabled: true})
	tp.AddPoll(database.MonitoredFolder{Path: "//NAS/a", PollIntervalMinutes: 9, Enabled: true})

	if got := tp.PolledPaths(); len(got) != 1 {
		t.Fatalf("PolledPaths() = %v, want one entry", got)
	}

	tp.UpdateInterval(path, 30)
	if got := tp.delay(t, path); got != 30*time.Minute {
		t.Errorf("delay after UpdateInterval = %s", got)
	}

	tp.RemovePoll(path)
	if tp.IsPolling(path) {
		t.Error("still polling after RemovePoll")
	}
	if tp.check(keyOf(path)) {
		t.Error("check ran for a removed poll")
	}
}
