package handlers

import (
	"sync"

	"file-recorder/internal/watcher"
)

const defaultEventLogSize = 200

// eventLog keeps the most recent watcher notifications in a ring.
type eventLog struct {
	mu    sync.Mutex
	items []watcher.Notification
	next  int
	full  bool
}

func newEventLog(size int) *eventLog {
	return &eventLog{items: make([]watcher.Notification, size)}
}

func (l *eventLog) record(n watcher.Notification) {
	l.mu.Lock()
	l.items[l.next] = n
	l.next = (l.next + 1) % len(l.items)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()
}

// recent returns up to limit notifications, newest first. limit <= 0 means all.
func (l *eventLog) recent(limit int) []watcher.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.next
	if l.full {
		n = len(l.items)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]watcher.Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.next - i + len(l.items)) % len(l.items)
		out = append(out, l.items[idx])
	}
	return out
}
