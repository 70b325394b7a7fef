package handlers

import (
	"errors"
	"net/http"
	"time"

	"file-recorder/internal/reconciler"
	"file-recorder/internal/registry"
)

// ReconcileResponse is the report of one reconciliation pass.
type ReconcileResponse struct {
	Enabled  bool                      `json:"enabled"`
	Duration string                    `json:"duration"`
	Changed  []reconciler.FolderChange `json:"changed"`
	Failed   []reconciler.FolderChange `json:"failed"`
}

// ConfirmRequest accepts a reported change. Without Mtime the folder's
// current mtime is read. With Rescan the folder is rescanned first and the
// mtime recorded once the scan completed.
type ConfirmRequest struct {
	FolderID int64      `json:"folderId"`
	Mtime    *time.Time `json:"mtime"`
	Rescan   bool       `json:"rescan"`
}

// RunReconcile runs one reconciliation pass over the enabled monitored
// folders. Nothing is written; confirmation is a separate call.
func (h *Handlers) RunReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := ReconcileResponse{
		Enabled: h.registry.Enabled(ctx),
		Changed: []reconciler.FolderChange{},
		Failed:  []reconciler.FolderChange{},
	}
	if !resp.Enabled {
		writeJSONResponse(w, http.StatusOK, resp)
		return
	}

	start := time.Now()
	changed, failed, err := h.reconciler.CheckAll(ctx)
	if err != nil {
		log.Error("Reconciliation failed: %v", err)
		writeJSONError(w, "Failed to reconcile monitored folders", http.StatusInternalServerError)
		return
	}
	resp.Duration = time.Since(start).Round(time.Millisecond).String()
	resp.Changed = changed
	resp.Failed = failed
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) ConfirmReconcile(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	folder, err := h.registry.Folder(ctx, req.FolderID)
	if errors.Is(err, registry.ErrNotFound) {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "Failed to load monitored folder", http.StatusInternalServerError)
		return
	}

	if req.Rescan {
		id, queued := h.enqueueRescan(folder.Path, "reconcile")
		writeJSONResponse(w, http.StatusAccepted, RescanResponse{ID: id, Path: folder.Path, Queued: queued})
		return
	}

	if req.Mtime != nil {
		err = h.registry.UpdateFolderMtime(ctx, folder.ID, *req.Mtime)
	} else {
		err = h.registry.RefreshMtime(ctx, folder.Path)
	}
	if err != nil {
		log.Error("Failed to confirm %s: %v", folder.Path, err)
		writeJSONError(w, "Failed to record folder mtime", http.StatusInternalServerError)
		return
	}

	updated, err := h.registry.Folder(ctx, folder.ID)
	if err != nil {
		writeJSONError(w, "Failed to load monitored folder", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, updated)
}
