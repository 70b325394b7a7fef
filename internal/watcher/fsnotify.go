package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"file-recorder/internal/ignore"
)

// FSNotifyBackend watches directory trees with fsnotify. fsnotify is not
// recursive, so every subdirectory gets its own watch and directories created
// later are added as they appear.
type FSNotifyBackend struct{}

// NewFSNotifyBackend returns the default OS backend.
func NewFSNotifyBackend() *FSNotifyBackend {
	return &FSNotifyBackend{}
}

type fsnotifyWatch struct {
	root    string
	fsw     *fsnotify.Watcher
	skip    *ignore.Matcher
	handler func(FileEvent)
	done    chan struct{}

	mu   sync.Mutex
	dirs map[string]struct{}
}

// Watch registers root and all of its subdirectories.
func (b *FSNotifyBackend) Watch(root string, handler func(FileEvent)) (WatchHandle, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &fsnotifyWatch{
		root:    root,
		fsw:     fsw,
		skip:    ignore.NewScanMatcher(root),
		handler: handler,
		done:    make(chan struct{}),
		dirs:    make(map[string]struct{}),
	}

	if err := fsw.Add(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.track(root)
	w.addTree(root)

	go w.loop()
	return w, nil
}

// addTree watches every non-ignored directory below dir.
func (w *fsnotifyWatch) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || path == dir {
			return nil
		}
		if w.skip.ShouldIgnore(path, true) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			log.Warn("Failed to watch directory %s: %v", path, addErr)
			return nil
		}
		w.track(path)
		return nil
	})
}

func (w *fsnotifyWatch) track(dir string) {
	w.mu.Lock()
	w.dirs[dir] = struct{}{}
	w.mu.Unlock()
}

// untrack forgets dir and reports whether it was a watched directory.
func (w *fsnotifyWatch) untrack(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.dirs[dir]
	delete(w.dirs, dir)
	return ok
}

func (w *fsnotifyWatch) loop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("fsnotify error under %s: %v", w.root, err)
		}
	}
}

func (w *fsnotifyWatch) handleEvent(event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create):
		isDir := false
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			isDir = true
			if !w.skip.ShouldIgnore(path, true) {
				if err := w.fsw.Add(path); err != nil {
					log.Warn("Failed to watch new directory %s: %v", path, err)
				} else {
					w.track(path)
					w.addTree(path)
				}
			}
		}
		w.handler(FileEvent{Type: EventCreated, Path: path, IsDir: isDir})

	// Timestamp-only changes (touch, utimensat) arrive as Chmod.
	case event.Has(fsnotify.Write), event.Has(fsnotify.Chmod):
		isDir := false
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			isDir = true
		}
		w.handler(FileEvent{Type: EventModified, Path: path, IsDir: isDir})

	case event.Has(fsnotify.Remove):
		w.handler(FileEvent{Type: EventDeleted, Path: path, IsDir: w.untrack(path)})

	case event.Has(fsnotify.Rename):
		// fsnotify reports the old name only; the new name arrives as a Create.
		w.handler(FileEvent{Type: EventMoved, Path: path, IsDir: w.untrack(path)})
	}
}

// Close stops the watch and waits for the event loop to exit.
func (w *fsnotifyWatch) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
