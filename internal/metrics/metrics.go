package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_recorder_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_recorder_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_recorder_db_transaction_duration_seconds",
			Help:    "Duration of write transactions by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"result"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_recorder_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Index contents, refreshed by the Collector
var (
	IndexFilesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_index_files",
			Help: "Number of file records in the index",
		},
	)

	IndexFoldersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_index_folders",
			Help: "Number of deduplicated folder rows in the index",
		},
	)

	IndexSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_index_size_bytes",
			Help: "Sum of indexed file sizes in bytes",
		},
	)

	IndexUnresolvedErrors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_index_unresolved_scan_errors",
			Help: "Number of unresolved scan error entries",
		},
	)
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_scanner_runs_total",
			Help: "Total number of scans by result",
		},
		[]string{"result"}, // "completed", "cancelled", "failed"
	)

	ScannerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_scanner_last_run_duration_seconds",
			Help: "Duration of the last scan in seconds",
		},
	)

	ScannerEntriesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_recorder_scanner_entries_processed_total",
			Help: "Total number of files and directories recorded by the scanner",
		},
	)

	ScannerEntryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_recorder_scanner_entry_errors_total",
			Help: "Total number of entries the scanner could not read",
		},
	)

	ScannerParallelWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_scanner_parallel_workers",
			Help: "Number of workers used by the last parallel walk",
		},
	)

	RescanQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_rescan_queue_depth",
			Help: "Number of rescan requests waiting to run",
		},
	)
)

// Watcher metrics
var (
	WatcherLocalWatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_watcher_local_watches",
			Help: "Number of monitored folders with an active OS watch",
		},
	)

	WatcherPolledPaths = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_watcher_polled_paths",
			Help: "Number of monitored folders being polled",
		},
	)

	WatcherBackoffPaths = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_watcher_backoff_paths",
			Help: "Number of polled folders currently in connection backoff",
		},
	)

	WatcherStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "file_recorder_watcher_status",
			Help: "Aggregate watcher status (1 for the current kind)",
		},
		[]string{"kind"},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_watcher_events_total",
			Help: "Filesystem events accepted into a debounce window by type",
		},
		[]string{"type"},
	)

	WatcherEventsIgnored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_recorder_watcher_events_ignored_total",
			Help: "Filesystem events dropped by the transient file filter",
		},
	)

	WatcherBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_recorder_watcher_batches_total",
			Help: "Debounced event batches emitted",
		},
	)

	PollerChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_poller_checks_total",
			Help: "Network poll checks by result",
		},
		[]string{"result"}, // "unchanged", "changed", "error"
	)

	PollerCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "file_recorder_poller_check_duration_seconds",
			Help:    "Duration of a single network poll stat",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)
)

// Reconciler metrics
var (
	ReconcileRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_recorder_reconcile_runs_total",
			Help: "Total number of startup reconciliation passes",
		},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "file_recorder_reconcile_duration_seconds",
			Help:    "Duration of a reconciliation pass",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	ReconcileFolders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_reconcile_folders_total",
			Help: "Monitored folders checked by outcome",
		},
		[]string{"outcome"}, // "unchanged", "first_check", "new", "changed", "error"
	)

	ReconcileFileChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_reconcile_file_changes_total",
			Help: "File-level differences found by type",
		},
		[]string{"type"}, // "added", "deleted", "modified"
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after transient errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_recorder_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation", "volume"},
	)

	FilesystemTransientErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_recorder_filesystem_transient_errors_total",
			Help: "Transient errors (stale handles, network timeouts) seen by filesystem operations",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_memory_paused",
			Help: "Whether scans are paused due to memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_recorder_memory_pauses_total",
			Help: "Number of times scans were paused for memory pressure",
		},
	)

	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_recorder_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 when unset)",
		},
	)
)
