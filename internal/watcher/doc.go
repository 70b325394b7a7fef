// Package watcher detects changes in monitored folders.
//
// Local folders are watched through an OS notification Backend and their
// events are debounced into batches. Network folders are polled on a timer,
// comparing the directory mtime and backing off while the path is
// unreachable. The Manager dispatches every enabled monitored folder to one
// of the two, aggregates their state into a Status and forwards detected
// changes to listeners and to the rescan queue.
package watcher
