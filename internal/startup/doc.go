// Package startup handles configuration loading and the startup and
// shutdown log output of the file recorder daemon.
//
// # Configuration
//
// All process configuration is loaded from environment variables via
// [LoadConfig]:
//
//   - DATABASE_DIR: directory holding the SQLite index (default: ./data)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - WATCH_SEED_FILE: optional YAML file pre-registering monitored folders
//   - DEBOUNCE_INTERVAL: local change quiet window as a Go duration (default: 1s)
//   - RECONCILE_ON_START: compare monitored folders with the index at startup (default: true)
//   - AUTO_RESCAN: queue a rescan for every folder found changed at startup (default: false)
//   - NETWORK_MOUNTS: comma-separated mount points treated as network volumes
//   - SCAN_WORKERS: scanner worker count override
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_HEALTH_CHECKS: log health check requests (default: true)
//
// Watcher settings and the monitored folder list live in the database, not
// in the environment.
//
// # Build Information
//
// Version, Commit and BuildTime are injected at build time:
//
//	go build -ldflags "-X file-recorder/internal/startup.Version=1.2.0"
package startup
