package handlers

import (
	"net/http"

	"file-recorder/internal/registry"
	"file-recorder/internal/scanner"
	"file-recorder/internal/watcher"
)

// WatcherStatusResponse is the detailed watcher state.
type WatcherStatusResponse struct {
	watcher.StatusInfo
	Rescanning     *scanner.Request  `json:"rescanning,omitempty"`
	PendingRescans []scanner.Request `json:"pendingRescans"`
}

// SettingsRequest updates any subset of the global watcher settings.
type SettingsRequest struct {
	Enabled                    *bool `json:"enabled"`
	SilentUpdate               *bool `json:"silentUpdate"`
	DefaultPollIntervalMinutes *int  `json:"defaultPollIntervalMinutes"`
}

func (h *Handlers) GetWatcherStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, WatcherStatusResponse{
		StatusInfo:     h.manager.StatusInfo(),
		Rescanning:     h.queue.Current(),
		PendingRescans: h.queue.Pending(),
	})
}

// GetWatcherEvents returns recent watcher notifications, newest first.
func (h *Handlers) GetWatcherEvents(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.events.recent(queryInt(r, "limit", 50)))
}

func (h *Handlers) RestartWatcher(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Restart(r.Context()); err != nil {
		log.Error("Watcher restart failed: %v", err)
		writeJSONError(w, "Failed to restart watcher", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.manager.StatusInfo())
}

func (h *Handlers) GetWatcherSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Settings(r.Context())
	if err != nil {
		writeJSONError(w, "Failed to load watcher settings", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, s)
}

// UpdateWatcherSettings stores the settings and starts or stops the watcher
// when the master switch changed.
func (h *Handlers) UpdateWatcherSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DefaultPollIntervalMinutes != nil && *req.DefaultPollIntervalMinutes <= 0 {
		writeJSONError(w, registry.ErrInvalidInterval.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	current, err := h.registry.Settings(ctx)
	if err != nil {
		writeJSONError(w, "Failed to load watcher settings", http.StatusInternalServerError)
		return
	}

	next := current
	if req.Enabled != nil {
		next.Enabled = *req.Enabled
	}
	if req.SilentUpdate != nil {
		next.SilentUpdate = *req.SilentUpdate
	}
	if req.DefaultPollIntervalMinutes != nil {
		next.DefaultPollIntervalMinutes = *req.DefaultPollIntervalMinutes
	}

	saved, err := h.registry.SetSettings(ctx, next)
	if err != nil {
		writeJSONError(w, "Failed to save watcher settings", http.StatusInternalServerError)
		return
	}

	if saved.Enabled != current.Enabled {
		if err := h.manager.OnGlobalToggle(ctx, saved.Enabled); err != nil {
			log.Error("Failed to apply watcher toggle: %v", err)
			writeJSONError(w, "Settings saved but the watcher could not be started", http.StatusInternalServerError)
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, saved)
}
