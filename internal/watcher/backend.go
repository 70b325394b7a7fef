package watcher

// Backend starts recursive OS-level watches. Implementations deliver raw
// events to the handler from their own goroutine.
type Backend interface {
	Watch(root string, handler func(FileEvent)) (WatchHandle, error)
}

// WatchHandle stops one watch started by a Backend.
type WatchHandle interface {
	Close() error
}
