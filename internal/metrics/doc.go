// Package metrics provides Prometheus instrumentation for the file recorder.
//
// All metrics are prefixed with "file_recorder_" and registered with the
// default registry through promauto, so importing the package is enough to
// expose them on /metrics.
//
// # Metric Categories
//
//   - HTTP: request counts, durations and in-flight requests of the local API
//   - Database: query counts and durations, write transaction durations,
//     rows affected, open connections
//   - Index: file, folder and byte totals, refreshed by the Collector
//   - Scanner: scan runs by result, processed entries, entry errors,
//     rescan queue depth
//   - Watcher: active local watches, polled paths, paths in backoff,
//     aggregate status, accepted and ignored events, debounced batches,
//     poll checks by result
//   - Reconciler: passes, pass duration, folders by outcome, file-level
//     differences by type
//   - Filesystem: retry attempts, successes, failures and transient errors
//     by operation and volume kind (local or network)
//   - Memory: heap usage against GOMEMLIMIT, scan pauses under pressure
//
// InitializeMetrics pre-creates the label combinations so dashboards see
// zero-valued series before the first event.
package metrics
