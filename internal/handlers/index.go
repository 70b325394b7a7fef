package handlers

import (
	"context"
	"net/http"

	"file-recorder/internal/database"
)

const defaultContentsLimit = 200

// RescanRequest asks for a clear-and-rescan of Path.
type RescanRequest struct {
	Path string `json:"path"`
}

// RescanResponse identifies a queued rescan. Queued is false when the path
// was already waiting and the existing request was reused.
type RescanResponse struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Queued bool   `json:"queued"`
}

// DeleteSourceResponse reports what was removed from the index.
type DeleteSourceResponse struct {
	Path         string `json:"path"`
	FilesRemoved int64  `json:"filesRemoved"`
}

// GetChildren lists the direct subfolders of a folder in the index.
func (h *Handlers) GetChildren(w http.ResponseWriter, r *http.Request) {
	path, err := queryPath(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	children, err := h.db.DirectChildren(r.Context(), path)
	if err != nil {
		writeJSONError(w, "Failed to list folders", http.StatusInternalServerError)
		return
	}
	if children == nil {
		children = []database.ChildFolder{}
	}
	writeJSONResponse(w, http.StatusOK, children)
}

// GetContents returns a page of a folder's subfolders and files.
func (h *Handlers) GetContents(w http.ResponseWriter, r *http.Request) {
	path, err := queryPath(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := queryInt(r, "limit", defaultContentsLimit)
	if limit == 0 {
		limit = defaultContentsLimit
	}
	contents, err := h.db.FolderContents(r.Context(), path, limit, queryInt(r, "offset", 0))
	if err != nil {
		writeJSONError(w, "Failed to load folder contents", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, contents)
}

func (h *Handlers) GetSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.db.ScanSources(r.Context())
	if err != nil {
		writeJSONError(w, "Failed to list scan sources", http.StatusInternalServerError)
		return
	}
	if sources == nil {
		sources = []database.ScanSource{}
	}
	writeJSONResponse(w, http.StatusOK, sources)
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.Stats(r.Context())
	if err != nil {
		writeJSONError(w, "Failed to load index statistics", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, stats)
}

// GetErrors lists scan errors, optionally for one source and including
// resolved ones.
func (h *Handlers) GetErrors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	errs, err := h.db.ScanErrors(r.Context(), q.Get("source"), queryBool(r, "includeResolved"))
	if err != nil {
		writeJSONError(w, "Failed to list scan errors", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, errs)
}

func (h *Handlers) ResolveError(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, "Invalid error id", http.StatusBadRequest)
		return
	}
	if err := h.db.MarkErrorResolved(r.Context(), id); err != nil {
		writeJSONError(w, "Failed to resolve scan error", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}

// DeleteSource removes a folder and everything below it from the index.
// A path covered by, or containing, a monitored folder is refused with 409
// unless force is set, since the watcher would re-add it on the next change.
func (h *Handlers) DeleteSource(w http.ResponseWriter, r *http.Request) {
	path, err := queryPath(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	if !queryBool(r, "force") {
		watched, err := h.watchedOverlap(ctx, path)
		if err != nil {
			writeJSONError(w, "Failed to check monitored folders", http.StatusInternalServerError)
			return
		}
		if len(watched) > 0 {
			writeJSONResponse(w, http.StatusConflict, ConflictResponse{
				Error:    "path overlaps a monitored folder; use force=true to remove it anyway",
				Parent:   watched,
				Children: []database.MonitoredFolder{},
			})
			return
		}
	}

	removed, err := h.db.ClearSource(ctx, path)
	if err != nil {
		log.Error("Failed to clear %s from the index: %v", path, err)
		writeJSONError(w, "Failed to remove source", http.StatusInternalServerError)
		return
	}
	if err := h.db.DeleteScanSource(ctx, path); err != nil {
		log.Warn("Failed to delete scan source row for %s: %v", path, err)
	}
	if err := h.db.ClearErrors(ctx, path); err != nil {
		log.Warn("Failed to clear scan errors for %s: %v", path, err)
	}

	writeJSONResponse(w, http.StatusOK, DeleteSourceResponse{
		Path:         database.NormalizePath(path),
		FilesRemoved: removed,
	})
}

// watchedOverlap returns the registrations at, above or below path.
func (h *Handlers) watchedOverlap(ctx context.Context, path string) ([]database.MonitoredFolder, error) {
	var out []database.MonitoredFolder

	covering, err := h.registry.IsPathMonitored(ctx, path)
	if err != nil {
		return nil, err
	}
	if covering != nil {
		out = append(out, *covering)
	}

	conflicts, err := h.registry.FindConflicts(ctx, path)
	if err != nil {
		return nil, err
	}
	return append(out, conflicts.Children...), nil
}

// TriggerRescan queues a clear-and-rescan of a path.
func (h *Handlers) TriggerRescan(w http.ResponseWriter, r *http.Request) {
	var req RescanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		writeJSONError(w, errPathRequired.Error(), http.StatusBadRequest)
		return
	}

	id, queued := h.enqueueRescan(req.Path, "manual")
	writeJSONResponse(w, http.StatusAccepted, RescanResponse{
		ID:     id,
		Path:   database.NormalizePath(req.Path),
		Queued: queued,
	})
}

// Optimize vacuums and analyzes the database.
func (h *Handlers) Optimize(w http.ResponseWriter, r *http.Request) {
	res, err := h.db.Optimize(r.Context())
	if err != nil {
		log.Error("Database optimize failed: %v", err)
		writeJSONError(w, "Failed to optimize database", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, res)
}
