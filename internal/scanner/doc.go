// Package scanner builds the folder index from the filesystem.
//
// A Scanner walks one root in parallel and writes file and directory records
// in batches. Entries that cannot be read are recorded as scan errors and
// the walk continues. A Queue serializes rescans: each request clears the
// indexed tree of a path and scans it again, one request at a time, so the
// index has a single writer for watcher-driven updates.
package scanner
