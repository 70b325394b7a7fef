package reconciler

import (
	"context"
	"fmt"
	"os"
	"time"

	"file-recorder/internal/database"
	"file-recorder/internal/filesystem"
	"file-recorder/internal/ignore"
	"file-recorder/internal/logging"
	"file-recorder/internal/metrics"
)

var log = logging.For("reconciler")

// Registry is the part of the monitored folder registry a pass needs.
type Registry interface {
	EnabledFolders(ctx context.Context) ([]database.MonitoredFolder, error)
	UpdateFolderMtime(ctx context.Context, id int64, mtime time.Time) error
}

// Index is the part of the folder index a pass reads.
type Index interface {
	FolderIndexed(ctx context.Context, path string) (bool, error)
	FilesUnder(ctx context.Context, path string) ([]database.FileRecord, error)
}

// Reconciler runs startup reconciliation passes.
type Reconciler struct {
	registry Registry
	index    Index
	retry    filesystem.RetryConfig
}

// New creates a reconciler.
func New(registry Registry, index Index) *Reconciler {
	return &Reconciler{
		registry: registry,
		index:    index,
		retry:    filesystem.DefaultRetryConfig(),
	}
}

// CheckAll checks every enabled monitored folder in registry order. It
// returns the folders with actionable changes and the folders that could not
// be read. Per-folder failures never stop the pass; the error is only set
// when the registry itself cannot be read.
func (r *Reconciler) CheckAll(ctx context.Context) (changed, failed []FolderChange, err error) {
	start := time.Now()
	metrics.ReconcileRunsTotal.Inc()
	defer func() {
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}()

	folders, err := r.registry.EnabledFolders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load monitored folders: %w", err)
	}

	log.Info("Reconciling %d monitored folder(s)", len(folders))
	changed = []FolderChange{}
	failed = []FolderChange{}

	for _, folder := range folders {
		if ctx.Err() != nil {
			return changed, failed, ctx.Err()
		}

		result, outcome := r.checkFolderSafe(ctx, folder)
		metrics.ReconcileFolders.WithLabelValues(outcome).Inc()

		switch outcome {
		case "error":
			log.Warn("%s: inaccessible: %s", folder.Path, result.ErrorMessage)
			failed = append(failed, result)
		case "new":
			log.Info("%s: new folder (not indexed)", folder.Path)
			changed = append(changed, result)
		case "changed":
			log.Info("%s: %s", folder.Path, result.Summary())
			changed = append(changed, result)
		case "first_check":
			log.Info("%s: first check, recording mtime", folder.Path)
		default:
			log.Debug("%s: unchanged", folder.Path)
		}
	}

	log.Info("Reconciliation finished: %d changed, %d inaccessible", len(changed), len(failed))
	return changed, failed, nil
}

// checkFolderSafe turns a panic while checking one folder into an error entry.
func (r *Reconciler) checkFolderSafe(ctx context.Context, folder database.MonitoredFolder) (result FolderChange, outcome string) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("Panic while checking %s: %v", folder.Path, p)
			result = FolderChange{
				Folder:       folder,
				OldMtime:     folder.LastMtime,
				ErrorMessage: fmt.Sprintf("internal error: %v", p),
			}
			outcome = "error"
		}
	}()
	return r.checkFolder(ctx, folder)
}

// checkFolder classifies one folder. The outcome is one of error, new,
// first_check, unchanged or changed.
func (r *Reconciler) checkFolder(ctx context.Context, folder database.MonitoredFolder) (FolderChange, string) {
	result := FolderChange{Folder: folder, OldMtime: folder.LastMtime}

	info, err := filesystem.StatWithRetry(folder.Path, r.retry)
	if err != nil {
		result.ErrorMessage = inaccessibleMessage(err)
		return result, "error"
	}
	result.Accessible = true
	result.NewMtime = info.ModTime()

	indexed, err := r.index.FolderIndexed(ctx, folder.Path)
	if err != nil {
		result.Accessible = false
		result.ErrorMessage = fmt.Sprintf("index lookup failed: %v", err)
		return result, "error"
	}
	if !indexed {
		result.IsNewFolder = true
		return result, "new"
	}

	if folder.LastMtime == nil {
		if err := r.registry.UpdateFolderMtime(ctx, folder.ID, result.NewMtime); err != nil {
			log.Error("Failed to record mtime of %s: %v", folder.Path, err)
		}
		return result, "first_check"
	}

	if result.NewMtime.Equal(*folder.LastMtime) {
		// Same mtime; only the check time moves.
		if err := r.registry.UpdateFolderMtime(ctx, folder.ID, *folder.LastMtime); err != nil {
			log.Error("Failed to record check time of %s: %v", folder.Path, err)
		}
		return result, "unchanged"
	}

	if err := r.detectFileChanges(ctx, &result); err != nil {
		log.Warn("%s: file comparison failed: %v", folder.Path, err)
	}
	return result, "changed"
}

// detectFileChanges fills the file-level diff of result.
func (r *Reconciler) detectFileChanges(ctx context.Context, result *FolderChange) error {
	root := result.Folder.Path

	live := make(map[string]fileState)
	if err := r.walkFiles(root, ignore.NewScanMatcher(root), live); err != nil {
		return err
	}

	records, err := r.index.FilesUnder(ctx, root)
	if err != nil {
		return err
	}
	indexed := make(map[string]fileState, len(records))
	for _, rec := range records {
		full := rec.FullPath()
		indexed[database.PathKey(full)] = fileState{
			path:  full,
			name:  rec.Filename,
			size:  rec.Size,
			mtime: rec.Mtime,
		}
	}

	d := diffFiles(live, indexed)
	d.apply(result, live, indexed)

	metrics.ReconcileFileChanges.WithLabelValues(string(ChangeAdded)).Add(float64(result.AddedCount))
	metrics.ReconcileFileChanges.WithLabelValues(string(ChangeDeleted)).Add(float64(result.DeletedCount))
	metrics.ReconcileFileChanges.WithLabelValues(string(ChangeModified)).Add(float64(result.ModifiedCount))
	return nil
}

// walkFiles collects every non-ignored file below dir. Unreadable
// subdirectories and entries are skipped; only a failure to read the root
// is returned.
func (r *Reconciler) walkFiles(dir string, skip *ignore.Matcher, out map[string]fileState) error {
	entries, err := filesystem.ReadDirWithRetry(dir, r.retry)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path := database.JoinPath(dir, entry.Name())
		if skip.ShouldIgnore(path, entry.IsDir()) {
			continue
		}

		if entry.IsDir() {
			if err := r.walkFiles(path, skip, out); err != nil {
				log.Debug("Skipping %s: %v", path, err)
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		out[database.PathKey(path)] = fileState{
			path:  path,
			name:  entry.Name(),
			size:  info.Size(),
			mtime: info.ModTime(),
		}
	}
	return nil
}

// Confirm persists the mtime observed for change, so the folder is no
// longer reported as changed.
func (r *Reconciler) Confirm(ctx context.Context, change FolderChange) error {
	if !change.Accessible || change.NewMtime.IsZero() {
		return fmt.Errorf("cannot confirm %s: no mtime observed", change.Folder.Path)
	}
	return r.registry.UpdateFolderMtime(ctx, change.Folder.ID, change.NewMtime)
}

func inaccessibleMessage(err error) string {
	reason := filesystem.ClassifyError(err)
	if os.IsNotExist(err) {
		return reason
	}
	return fmt.Sprintf("%s: %v", reason, err)
}
