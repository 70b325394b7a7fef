package watcher

import (
	"errors"
	"sync"
	"testing"
)

type fakeBackend struct {
	mu       sync.Mutex
	handlers map[string]func(FileEvent)
	calls    int
	closed   int
	fail     error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{handlers: make(map[string]func(FileEvent))}
}

type fakeHandle struct {
	b    *fakeBackend
	root string
}

func (b *fakeBackend) Watch(root string, handler func(FileEvent)) (WatchHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	if b.fail != nil {
		return nil, b.fail
	}
	b.handlers[root] = handler
	return &fakeHandle{b: b, root: root}, nil
}

func (h *fakeHandle) Close() error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	delete(h.b.handlers, h.root)
	h.b.closed++
	return nil
}

// send delivers ev to the watch on root, if any.
func (b *fakeBackend) send(root string, ev FileEvent) {
	b.mu.Lock()
	h := b.handlers[root]
	b.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

type batch struct {
	folder string
	events []FileEvent
}

func newTestLocalWatcher(b Backend) (*LocalWatcher, chan batch) {
	out := make(chan batch, 8)
	w := NewLocalWatcher(b, testInterval, func(folder string, events []FileEvent) {
		out <- batch{folder, events}
	})
	return w, out
}

func TestLocalWatcherAddIsIdempotent(t *testing.T) {
	b := newFakeBackend()
	w, _ := newTestLocalWatcher(b)
	defer w.StopAll()

	for _, p := range []string{"/media", "/media", "/MEDIA"} {
		if err := w.AddWatch(p); err != nil {
			t.Fatalf("AddWatch(%q) error = %v", p, err)
		}
	}
	if b.calls != 1 {
		t.Errorf("backend Watch called %d times, want 1", b.calls)
	}
	if got := w.WatchedPaths(); len(got) != 1 {
		t.Errorf("WatchedPaths() = %v", got)
	}
}

func TestLocalWatcherFiltersEvents(t *testing.T) {
	b := newFakeBackend()
	w, out := newTestLocalWatcher(b)
	defer w.StopAll()

	if err := w.AddWatch("/media"); err != nil {
		t.Fatal(err)
	}

	b.send("/media", FileEvent{Type: EventCreated, Path: "/media/movie.mkv.part"})
	b.send("/media", FileEvent{Type: EventModified, Path: "/media/~$notes.docx"})
	b.send("/media", FileEvent{Type: EventCreated, Path: "/media/Thumbs.db"})
	b.send("/media", FileEvent{Type: EventModified, Path: "/media/sub", IsDir: true})
	b.send("/media", FileEvent{Type: EventCreated, Path: "/media/new", IsDir: true})
	b.send("/media", FileEvent{Type: EventCreated, Path: "/media/movie.mkv"})
	b.send("/media", FileEvent{Type: EventModified, Path: "/media/movie.mkv"})

	select {
	case got := <-out:
		if got.folder != "/media" {
			t.Errorf("folder = %q", got.folder)
		}
		want := []FileEvent{
			{Type: EventModified, Path: "/media/movie.mkv"},
			{Type: EventCreated, Path: "/media/new", IsDir: true},
		}
		if len(got.events) != len(want) {
			t.Fatalf("events = %+v, want %+v", got.events, want)
		}
		for i := range want {
			if got.events[i] != want[i] {
				t.Errorf("events[%d] = %+v, want %+v", i, got.events[i], want[i])
			}
		}
	case <-timeout():
		t.Fatal("timed out waiting for batch")
	}
}

func TestLocalWatcherRemove(t *testing.T) {
	b := newFakeBackend()
	w, out := newTestLocalWatcher(b)

	if err := w.AddWatch("/media"); err != nil {
		t.Fatal(err)
	}
	if err := w.AddWatch("/music"); err != nil {
		t.Fatal(err)
	}

	b.send("/media", FileEvent{Type: EventCreated, Path: "/media/a.mkv"})
	w.RemoveWatch("/media")

	if w.IsWatching("/media") {
		t.Error("still watching after RemoveWatch")
	}
	if b.closed != 1 {
		t.Errorf("closed = %d, want 1", b.closed)
	}
	select {
	case got := <-out:
		t.Fatalf("pending events survived removal: %+v", got)
	case <-shortWait():
	}

	w.StopAll()
	if len(w.WatchedPaths()) != 0 || b.closed != 2 {
		t.Errorf("after StopAll: watched=%v closed=%d", w.WatchedPaths(), b.closed)
	}
}

func TestLocalWatcherBackendError(t *testing.T) {
	b := newFakeBackend()
	b.fail = errors.New("too many open files")
	w, _ := newTestLocalWatcher(b)

	if err := w.AddWatch("/media"); err == nil {
		t.Fatal("AddWatch() succeeded with failing backend")
	}
	if w.IsWatching("/media") {
		t.Error("failed watch is registered")
	}
}
