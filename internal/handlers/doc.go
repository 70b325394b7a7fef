// Package handlers provides the HTTP API of the file recorder.
//
// It includes handlers for:
//   - Monitored folder registration and conflict lookup
//   - Watcher status, settings, recent change events and restart
//   - Browsing the folder index, scan sources and scan errors
//   - Rescan requests, which are executed by the single-writer rescan queue
//   - Startup-style reconciliation on demand and change confirmation
//   - Health checks, version and Prometheus metrics
package handlers
