package handlers

import (
	"net/http"
	"runtime"
	"time"

	"file-recorder/internal/startup"
	"file-recorder/internal/watcher"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Watcher summary
	WatcherStatus  string `json:"watcherStatus"`
	WatcherMessage string `json:"watcherMessage"`
	PendingRescans int    `json:"pendingRescans"`
	Rescanning     string `json:"rescanning,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Index summary
	TotalFiles   int64 `json:"totalFiles,omitempty"`
	TotalFolders int64 `json:"totalFolders,omitempty"`
}

// HealthCheck returns the health status of the service. A watcher in error
// state reports degraded but still answers 200.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()
	status := h.manager.Status()

	response := HealthResponse{
		Ready:          ready,
		Version:        startup.Version,
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		WatcherStatus:  status.Kind,
		WatcherMessage: status.Message,
		PendingRescans: len(h.queue.Pending()),
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
	}
	if cur := h.queue.Current(); cur != nil {
		response.Rescanning = cur.Path
	}

	switch {
	case !ready:
		response.Status = statusStarting
	case status.Kind == watcher.StatusError:
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	if stats, err := h.db.Stats(r.Context()); err == nil {
		response.TotalFiles = stats.TotalFiles
		response.TotalFolders = stats.TotalFolders
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready.Load() {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
