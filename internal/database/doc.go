// Package database provides the SQLite store behind the file recorder.
//
// It holds:
//   - the folder index: deduplicated folder paths linked by parent_id, and
//     one file record per (folder, filename)
//   - scan sources and per-entry scan errors
//   - monitored folder registrations and watcher settings
//
// Paths are stored normalized (single separator, no trailing separator)
// with a case-folded path_key used for every lookup and prefix query.
// The database runs in WAL mode; writes are serialized by the store.
package database
