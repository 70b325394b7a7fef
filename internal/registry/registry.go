// Package registry manages the persisted list of monitored folders and the
// global watcher settings.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"file-recorder/internal/database"
	"file-recorder/internal/filesystem"
	"file-recorder/internal/logging"
)

var log = logging.For("watcher")

var (
	// ErrDuplicate is returned when the path is already monitored.
	ErrDuplicate = errors.New("folder is already monitored")
	// ErrNotFound is returned for an unknown monitored folder id or path.
	ErrNotFound = errors.New("monitored folder not found")
	// ErrRedundant is returned when an ancestor of the path is already monitored.
	ErrRedundant = errors.New("an ancestor folder is already monitored")
	// ErrHasChildren is returned when descendants are monitored and merging was not requested.
	ErrHasChildren = errors.New("descendant folders are already monitored")
	// ErrEmptyPath is returned when a blank path is registered.
	ErrEmptyPath = errors.New("empty path")
	// ErrInvalidInterval is returned for a poll interval below one minute.
	ErrInvalidInterval = errors.New("poll interval must be positive")
)

// Store is the persistence the registry needs. *database.Database implements it.
type Store interface {
	InsertMonitoredFolder(ctx context.Context, m database.MonitoredFolder) (*database.MonitoredFolder, error)
	MonitoredFolders(ctx context.Context) ([]database.MonitoredFolder, error)
	MonitoredFolder(ctx context.Context, id int64) (*database.MonitoredFolder, error)
	MonitoredFolderByPath(ctx context.Context, path string) (*database.MonitoredFolder, error)
	UpdateMonitoredFolder(ctx context.Context, m database.MonitoredFolder) error
	SetMonitoredMtime(ctx context.Context, id int64, mtime, checked time.Time) error
	DeleteMonitoredFolders(ctx context.Context, ids ...int64) (int64, error)
	ConfigValue(ctx context.Context, key string) (string, bool, error)
	SetConfigValue(ctx context.Context, key, value string) error
}

// Conflicts lists registrations related to a candidate path.
type Conflicts struct {
	// Parent holds monitored ancestors: the candidate is redundant.
	Parent []database.MonitoredFolder `json:"parent"`
	// Children holds monitored descendants: they become redundant.
	Children []database.MonitoredFolder `json:"children"`
}

// Empty reports whether there are no conflicts.
func (c Conflicts) Empty() bool {
	return len(c.Parent) == 0 && len(c.Children) == 0
}

// FolderUpdate carries optional changes to one registration.
type FolderUpdate struct {
	Enabled             *bool `json:"enabled,omitempty"`
	PollIntervalMinutes *int  `json:"pollIntervalMinutes,omitempty"`
}

// Registry is the monitored folder registry.
type Registry struct {
	store Store

	mu       sync.Mutex
	settings *Settings // cached; nil until first load
}

// New creates a registry backed by store.
func New(store Store) *Registry {
	return &Registry{store: store}
}

// Reload drops cached settings so the next read goes to the store.
func (r *Registry) Reload() {
	r.mu.Lock()
	r.settings = nil
	r.mu.Unlock()
}

// IsLocalPath classifies path by its shape: share paths are network,
// everything else is local. No network probe is made.
func IsLocalPath(path string) bool {
	return !filesystem.IsNetworkPath(path)
}

// Add registers path. pollInterval <= 0 uses the default poll interval.
// It returns ErrDuplicate when the path is already registered.
func (r *Registry) Add(ctx context.Context, path string, pollInterval int) (*database.MonitoredFolder, error) {
	path = database.NormalizePath(strings.TrimSpace(path))
	if path == "" {
		return nil, ErrEmptyPath
	}

	if pollInterval <= 0 {
		s, err := r.Settings(ctx)
		if err != nil {
			return nil, err
		}
		pollInterval = s.DefaultPollIntervalMinutes
	}

	isLocal := IsLocalPath(path)
	m, err := r.store.InsertMonitoredFolder(ctx, database.MonitoredFolder{
		Path:                path,
		IsLocal:             isLocal,
		PollIntervalMinutes: pollInterval,
		Enabled:             true,
	})
	if errors.Is(err, database.ErrMonitoredExists) {
		log.Warn("Not adding %s: already monitored", path)
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("add monitored folder %s: %w", path, err)
	}

	mode := "local"
	if !isLocal {
		mode = "network"
	}
	log.Info("Added monitored folder %s (%s)", path, mode)
	return m, nil
}

// AddResolved adds path after resolving conflicts parent-wins: it fails with
// ErrRedundant when an ancestor is monitored, and with ErrHasChildren when
// descendants are monitored and mergeChildren is false. With mergeChildren
// the descendants are removed first. The returned Conflicts are those found.
func (r *Registry) AddResolved(ctx context.Context, path string, pollInterval int, mergeChildren bool) (*database.MonitoredFolder, Conflicts, error) {
	if strings.TrimSpace(path) == "" {
		return nil, Conflicts{}, ErrEmptyPath
	}

	conflicts, err := r.FindConflicts(ctx, path)
	if err != nil {
		return nil, conflicts, err
	}

	if len(conflicts.Parent) > 0 {
		return nil, conflicts, fmt.Errorf("%s is covered by %s: %w", path, conflicts.Parent[0].Path, ErrRedundant)
	}
	if len(conflicts.Children) > 0 {
		if !mergeChildren {
			return nil, conflicts, ErrHasChildren
		}
		if err := r.MergeToParent(ctx, path, conflicts.Children); err != nil {
			return nil, conflicts, err
		}
	}

	m, err := r.Add(ctx, path, pollInterval)
	return m, conflicts, err
}

// FindConflicts returns registrations that are an ancestor (Parent) or a
// descendant (Children) of path. An exact match is neither.
func (r *Registry) FindConflicts(ctx context.Context, path string) (Conflicts, error) {
	conflicts := Conflicts{
		Parent:   []database.MonitoredFolder{},
		Children: []database.MonitoredFolder{},
	}

	folders, err := r.store.MonitoredFolders(ctx)
	if err != nil {
		return conflicts, err
	}

	key := database.PathKey(path)
	for _, f := range folders {
		fk := database.PathKey(f.Path)
		switch {
		case fk == key:
		case database.IsUnder(key, fk):
			conflicts.Parent = append(conflicts.Parent, f)
		case database.IsUnder(fk, key):
			conflicts.Children = append(conflicts.Children, f)
		}
	}
	return conflicts, nil
}

// MergeToParent removes the child registrations now covered by parentPath.
// The folder index is not touched.
func (r *Registry) MergeToParent(ctx context.Context, parentPath string, children []database.MonitoredFolder) error {
	ids := make([]int64, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	if _, err := r.store.DeleteMonitoredFolders(ctx, ids...); err != nil {
		return fmt.Errorf("merge into %s: %w", parentPath, err)
	}
	for _, c := range children {
		log.Info("Merged %s into %s", c.Path, parentPath)
	}
	return nil
}

// IsPathMonitored returns the registration equal to or above path, or nil.
func (r *Registry) IsPathMonitored(ctx context.Context, path string) (*database.MonitoredFolder, error) {
	folders, err := r.store.MonitoredFolders(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		if database.IsUnder(path, f.Path) {
			return &f, nil
		}
	}
	return nil, nil
}

// Exists reports whether exactly path is registered.
func (r *Registry) Exists(ctx context.Context, path string) (bool, error) {
	m, err := r.store.MonitoredFolderByPath(ctx, path)
	return m != nil, err
}

// Folders returns all registrations.
func (r *Registry) Folders(ctx context.Context) ([]database.MonitoredFolder, error) {
	return r.store.MonitoredFolders(ctx)
}

// EnabledFolders returns the enabled registrations in path order.
func (r *Registry) EnabledFolders(ctx context.Context) ([]database.MonitoredFolder, error) {
	all, err := r.store.MonitoredFolders(ctx)
	if err != nil {
		return nil, err
	}
	enabled := all[:0]
	for _, f := range all {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}
	return enabled, nil
}

// Folder returns the registration with id or ErrNotFound.
func (r *Registry) Folder(ctx context.Context, id int64) (*database.MonitoredFolder, error) {
	m, err := r.store.MonitoredFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

// Remove deletes the registration with id.
func (r *Registry) Remove(ctx context.Context, id int64) error {
	n, err := r.store.DeleteMonitoredFolders(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	log.Info("Removed monitored folder id %d", id)
	return nil
}

// RemoveByPath deletes the registration for an equivalent path.
func (r *Registry) RemoveByPath(ctx context.Context, path string) error {
	m, err := r.store.MonitoredFolderByPath(ctx, path)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNotFound
	}
	if _, err := r.store.DeleteMonitoredFolders(ctx, m.ID); err != nil {
		return err
	}
	log.Info("Removed monitored folder %s", m.Path)
	return nil
}

// Update applies u to the registration with id and returns the result.
func (r *Registry) Update(ctx context.Context, id int64, u FolderUpdate) (*database.MonitoredFolder, error) {
	m, err := r.Folder(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Enabled != nil {
		m.Enabled = *u.Enabled
	}
	if u.PollIntervalMinutes != nil {
		if *u.PollIntervalMinutes <= 0 {
			return nil, fmt.Errorf("%w, got %d", ErrInvalidInterval, *u.PollIntervalMinutes)
		}
		m.PollIntervalMinutes = *u.PollIntervalMinutes
	}

	if err := r.store.UpdateMonitoredFolder(ctx, *m); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateFolderMtime records mtime as the last known directory mtime of id,
// with the check time set to now.
func (r *Registry) UpdateFolderMtime(ctx context.Context, id int64, mtime time.Time) error {
	if err := r.store.SetMonitoredMtime(ctx, id, mtime, time.Now()); err != nil {
		return fmt.Errorf("update mtime of monitored folder %d: %w", id, err)
	}
	return nil
}

// RefreshMtime stats the monitored folder registered for path and records its
// current mtime. It is a no-op when path is not registered.
func (r *Registry) RefreshMtime(ctx context.Context, path string) error {
	m, err := r.store.MonitoredFolderByPath(ctx, path)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}

	info, err := filesystem.StatWithRetry(m.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		return fmt.Errorf("stat %s: %w", m.Path, err)
	}
	return r.UpdateFolderMtime(ctx, m.ID, info.ModTime())
}
