package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range []string{"initialize_schema", "get_or_create_folder", "insert_files",
		"direct_children", "clear_source", "files_under", "folder_indexed", "backfill_parent_links",
		"monitored_folders", "watcher_settings", "scan_errors", "stats", "optimize"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, r := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(r)
	}

	for _, r := range []string{"completed", "cancelled", "failed"} {
		ScannerRunsTotal.WithLabelValues(r)
	}

	for _, kind := range []string{"normal", "warning", "error", "disabled"} {
		WatcherStatus.WithLabelValues(kind)
	}

	for _, typ := range []string{"created", "deleted", "modified", "moved"} {
		WatcherEventsTotal.WithLabelValues(typ)
	}

	for _, r := range []string{"unchanged", "changed", "error"} {
		PollerChecksTotal.WithLabelValues(r)
	}

	for _, o := range []string{"unchanged", "first_check", "new", "changed", "error"} {
		ReconcileFolders.WithLabelValues(o)
	}

	for _, typ := range []string{"added", "deleted", "modified"} {
		ReconcileFileChanges.WithLabelValues(typ)
	}

	for _, op := range []string{"stat", "readdir"} {
		for _, vol := range []string{"local", "network"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
			FilesystemTransientErrors.WithLabelValues(op, vol)
		}
	}
}

// SetWatcherStatus marks kind as the current aggregate watcher status.
func SetWatcherStatus(kind string) {
	for _, k := range []string{"normal", "warning", "error", "disabled"} {
		v := 0.0
		if k == kind {
			v = 1
		}
		WatcherStatus.WithLabelValues(k).Set(v)
	}
}
