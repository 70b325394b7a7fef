package watcher

import (
	"io/fs"
	"time"
)

func timeout() <-chan time.Time {
	return time.After(2 * time.Second)
}

func shortWait() <-chan time.Time {
	return time.After(4 * testInterval)
}

type fakeInfo struct {
	name  string
	mtime time.Time
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return 0 }
func (f fakeInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o755 }
func (f fakeInfo) ModTime() time.Time { return f.mtime }
func (f fakeInfo) IsDir() bool        { return true }
func (f fakeInfo) Sys() any           { return nil }
