package handlers

import (
	"errors"
	"net/http"

	"file-recorder/internal/database"
	"file-recorder/internal/registry"
)

// AddMonitoredRequest registers a folder. Zero PollIntervalMinutes uses the
// default interval.
type AddMonitoredRequest struct {
	Path                string `json:"path"`
	PollIntervalMinutes int    `json:"pollIntervalMinutes"`
	MergeChildren       bool   `json:"mergeChildren"`
}

// UpdateMonitoredRequest changes any subset of a registration.
type UpdateMonitoredRequest struct {
	Enabled             *bool `json:"enabled"`
	PollIntervalMinutes *int  `json:"pollIntervalMinutes"`
}

// ConflictResponse is returned with 409 when a registration overlaps
// existing ones.
type ConflictResponse struct {
	Error    string                     `json:"error"`
	Parent   []database.MonitoredFolder `json:"parent"`
	Children []database.MonitoredFolder `json:"children"`
}

// AddMonitoredResponse is the new registration and the children merged into it.
type AddMonitoredResponse struct {
	Folder *database.MonitoredFolder  `json:"folder"`
	Merged []database.MonitoredFolder `json:"merged"`
}

// LookupResponse tells whether a path is covered by a registration.
type LookupResponse struct {
	Path      string                    `json:"path"`
	Monitored bool                      `json:"monitored"`
	Folder    *database.MonitoredFolder `json:"folder,omitempty"`
}

func (h *Handlers) ListMonitored(w http.ResponseWriter, r *http.Request) {
	folders, err := h.registry.Folders(r.Context())
	if err != nil {
		writeJSONError(w, "Failed to list monitored folders", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, folders)
}

// AddMonitored registers a folder, resolving overlaps parent-wins. An
// ancestor registration always conflicts; descendants conflict unless
// mergeChildren is set, in which case they are replaced.
func (h *Handlers) AddMonitored(w http.ResponseWriter, r *http.Request) {
	var req AddMonitoredRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PollIntervalMinutes < 0 {
		writeJSONError(w, registry.ErrInvalidInterval.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	folder, conflicts, err := h.registry.AddResolved(ctx, req.Path, req.PollIntervalMinutes, req.MergeChildren)
	switch {
	case errors.Is(err, registry.ErrEmptyPath):
		writeJSONError(w, errPathRequired.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, registry.ErrDuplicate):
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, registry.ErrRedundant), errors.Is(err, registry.ErrHasChildren):
		writeJSONResponse(w, http.StatusConflict, ConflictResponse{
			Error:    err.Error(),
			Parent:   conflicts.Parent,
			Children: conflicts.Children,
		})
		return
	case err != nil:
		log.Error("Failed to add monitored folder %q: %v", req.Path, err)
		writeJSONError(w, "Failed to add monitored folder", http.StatusInternalServerError)
		return
	}

	h.reconfigure(ctx)
	merged := conflicts.Children
	if merged == nil {
		merged = []database.MonitoredFolder{}
	}
	writeJSONResponse(w, http.StatusCreated, AddMonitoredResponse{Folder: folder, Merged: merged})
}

func (h *Handlers) UpdateMonitored(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, "Invalid folder id", http.StatusBadRequest)
		return
	}

	var req UpdateMonitoredRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	folder, err := h.registry.Update(ctx, id, registry.FolderUpdate{
		Enabled:             req.Enabled,
		PollIntervalMinutes: req.PollIntervalMinutes,
	})
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, registry.ErrInvalidInterval):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		log.Error("Failed to update monitored folder %d: %v", id, err)
		writeJSONError(w, "Failed to update monitored folder", http.StatusInternalServerError)
		return
	}

	h.reconfigure(ctx)
	writeJSONResponse(w, http.StatusOK, folder)
}

// RemoveMonitored deletes a registration. The indexed files stay.
func (h *Handlers) RemoveMonitored(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, "Invalid folder id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.registry.Remove(ctx, id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSONError(w, "Failed to remove monitored folder", http.StatusInternalServerError)
		return
	}

	h.reconfigure(ctx)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MonitoredConflicts(w http.ResponseWriter, r *http.Request) {
	path, err := queryPath(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	conflicts, err := h.registry.FindConflicts(r.Context(), path)
	if err != nil {
		writeJSONError(w, "Failed to check conflicts", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, conflicts)
}

// LookupMonitored reports the registration covering path, if any.
func (h *Handlers) LookupMonitored(w http.ResponseWriter, r *http.Request) {
	path, err := queryPath(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	folder, err := h.registry.IsPathMonitored(r.Context(), path)
	if err != nil {
		writeJSONError(w, "Failed to look up path", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, LookupResponse{
		Path:      path,
		Monitored: folder != nil,
		Folder:    folder,
	})
}
