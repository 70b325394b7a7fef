// Package main provides the entry point for the File Recorder service.
//
// File Recorder keeps a SQLite index of scanned folder trees and reconciles
// it with the filesystem. Folders registered for monitoring are watched for
// changes and rescanned into the index, and the service reports drift that
// accumulated while it was not running.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Configuration Loading: Reads environment variables and validates the database directory
//  2. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT and starts the memory monitor
//  3. Database Initialization: Opens the SQLite index and applies schema migrations
//  4. Seed File: Registers monitored folders from WATCH_SEED_FILE (optional)
//  5. Startup Reconciliation: Compares every enabled monitored folder with the index
//  6. Component Initialization:
//     - Rescan Queue: Serializes folder rescans into the index
//     - Watcher Manager: Local fsnotify watches and network mtime pollers
//     - Metrics Collector: Gathers Prometheus gauges from the index
//  7. HTTP Server Setup: Configures routes, middleware, and starts server
//  8. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # Background Services
//
//   - Local Watchers: Debounce filesystem events per monitored folder
//   - Network Pollers: Check folder mtimes on network mounts with backoff
//   - Rescan Queue: Runs one folder rescan at a time
//   - Memory Monitor: Pauses scans while the heap is near GOMEMLIMIT
//   - Metrics Collector: Updates Prometheus metrics every minute
//
// # HTTP Server
//
// A single server (default port 8080) exposes:
//
//   - Health endpoints (/health, /healthz, /livez, /readyz) and /version
//   - Watcher status, events, restart and settings under /api/watcher
//   - Monitored folder management under /api/monitored
//   - Folder index browsing, scan errors and rescans under /api/index
//   - Reconciliation reports and confirmations under /api/reconcile
//   - Prometheus metrics (/metrics) when METRICS_ENABLED is set
//
// # Environment Variables
//
// See [file-recorder/internal/startup] for the full list. The most common are:
//
//   - DATABASE_DIR: Directory for the SQLite index (default: ./data)
//   - PORT: HTTP server port (default: 8080)
//   - WATCH_SEED_FILE: YAML file with monitored folders to register at startup
//   - DEBOUNCE_INTERVAL: Quiet period before a local change triggers a rescan (default: 1s)
//   - RECONCILE_ON_START: Compare monitored folders with the index at startup (default: true)
//   - AUTO_RESCAN: Rescan folders found changed at startup without confirmation (default: false)
//   - NETWORK_MOUNTS: Comma-separated mount points treated as network volumes
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//   - MEMORY_LIMIT, MEMORY_RATIO: Container memory limit and heap share for GOMEMLIMIT
//
// # Graceful Shutdown
//
// The application handles SIGINT and SIGTERM signals gracefully:
//
//  1. Mark the service not ready
//  2. Stop the watcher manager (watches closed, pollers stopped)
//  3. Stop the rescan queue (the running scan is cancelled)
//  4. Stop the memory monitor
//  5. Stop the metrics collector
//  6. Shutdown the HTTP server (30s timeout)
//  7. Close database connections
//
// # Build Requirements
//
// The application requires CGO for SQLite:
//
//	go build -o file-recorder .
//
// # Related Packages
//
//   - [file-recorder/internal/database]: SQLite folder index and monitored folder store
//   - [file-recorder/internal/registry]: Monitored folder registry and settings
//   - [file-recorder/internal/watcher]: Local watchers, network pollers and the manager
//   - [file-recorder/internal/reconciler]: Startup comparison of folders with the index
//   - [file-recorder/internal/scanner]: Folder rescans and the rescan queue
//   - [file-recorder/internal/memory]: GOMEMLIMIT configuration and scan backpressure
//   - [file-recorder/internal/handlers]: HTTP request handlers
//   - [file-recorder/internal/middleware]: HTTP middleware (logging, metrics)
//   - [file-recorder/internal/startup]: Configuration and initialization
package main
