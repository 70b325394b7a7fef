// Package reconciler compares monitored folders with the folder index after
// the process was not running.
//
// A pass never modifies the index. Folders whose directory mtime moved are
// diffed file by file against the indexed records and reported to the
// caller, which decides whether to rescan. The new mtime is only persisted
// through Confirm, so an unconfirmed change is reported again on the next
// pass.
package reconciler
