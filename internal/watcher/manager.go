package watcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"file-recorder/internal/database"
	"file-recorder/internal/filesystem"
	"file-recorder/internal/metrics"
)

// Registry is the monitored folder configuration the manager reads.
// *registry.Registry implements it.
type Registry interface {
	Enabled(ctx context.Context) bool
	EnabledFolders(ctx context.Context) ([]database.MonitoredFolder, error)
	Folders(ctx context.Context) ([]database.MonitoredFolder, error)
	UpdateFolderMtime(ctx context.Context, id int64, mtime time.Time) error
	Reload()
}

// Options configures a Manager.
type Options struct {
	// Backend is the OS watch backend for local folders.
	Backend Backend
	// DebounceInterval is the quiet period for local events.
	DebounceInterval time.Duration
	// Rescan is called with a folder path after a change was detected.
	Rescan func(path string)
}

// Manager dispatches monitored folders to the local watcher or the network
// poller and aggregates their state.
type Manager struct {
	registry Registry
	local    *LocalWatcher
	poller   *NetworkPoller
	rescan   func(string)

	mu         sync.Mutex
	running    bool
	enabled    bool
	folders    []database.MonitoredFolder // configuration last applied
	errorPaths map[string]string          // key -> path, polled paths in backoff
	failed     map[string]string          // key -> path, local watches that failed
	status     Status

	listenersMu sync.RWMutex
	listeners   []func(Notification)
}

// NewManager creates a stopped manager.
func NewManager(reg Registry, opts Options) *Manager {
	backend := opts.Backend
	if backend == nil {
		backend = NewFSNotifyBackend()
	}

	m := &Manager{
		registry:   reg,
		rescan:     opts.Rescan,
		errorPaths: make(map[string]string),
		failed:     make(map[string]string),
		status:     Status{Kind: StatusDisabled, Message: "Folder watching is stopped"},
	}
	m.local = NewLocalWatcher(backend, opts.DebounceInterval, m.onLocalChanges)
	m.poller = NewNetworkPoller(PollCallbacks{
		OnChange:   m.onNetworkChange,
		OnError:    m.onConnectionError,
		OnRestored: m.onConnectionRestored,
	})
	return m
}

// Subscribe registers fn for every notification. fn must not block.
func (m *Manager) Subscribe(fn func(Notification)) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

func (m *Manager) publish(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	for _, fn := range m.listeners {
		fn(n)
	}
}

// Start begins watching every enabled folder. It does nothing when the
// feature is disabled or the manager is already running.
func (m *Manager) Start(ctx context.Context) error {
	enabled := m.registry.Enabled(ctx)

	m.mu.Lock()
	m.enabled = enabled
	if !enabled {
		m.mu.Unlock()
		log.Info("Folder watching is disabled, not starting")
		m.updateStatus()
		return nil
	}
	if m.running {
		m.mu.Unlock()
		log.Debug("Watcher manager already running")
		return nil
	}
	m.mu.Unlock()

	folders, err := m.registry.EnabledFolders(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.running = true
	m.folders = folders
	m.mu.Unlock()

	log.Info("Starting folder watching for %d folder(s)", len(folders))
	for _, f := range folders {
		m.startFolder(f)
	}

	m.updateStatus()
	return nil
}

// Stop tears down all watches and polls.
func (m *Manager) Stop() {
	log.Info("Stopping folder watching")

	m.mu.Lock()
	m.running = false
	m.folders = nil
	m.errorPaths = make(map[string]string)
	m.failed = make(map[string]string)
	m.mu.Unlock()

	m.local.StopAll()
	m.poller.StopAll()
	m.updateStatus()
}

// Restart stops, reloads the registry and starts again.
func (m *Manager) Restart(ctx context.Context) error {
	m.Stop()
	m.registry.Reload()
	return m.Start(ctx)
}

// OnGlobalToggle starts or stops the manager after the master switch changed.
func (m *Manager) OnGlobalToggle(ctx context.Context, enabled bool) error {
	if enabled {
		return m.Start(ctx)
	}
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
	m.Stop()
	return nil
}

// Reconfigure reads the registry and applies the difference to the running
// configuration.
func (m *Manager) Reconfigure(ctx context.Context) error {
	m.mu.Lock()
	running := m.running
	old := m.folders
	m.mu.Unlock()

	if !running {
		return nil
	}

	folders, err := m.registry.Folders(ctx)
	if err != nil {
		return err
	}
	m.ApplyConfigChanges(old, folders)
	return nil
}

// ApplyConfigChanges applies only the differences between two registry
// snapshots: added and removed folders, enable toggles and poll interval
// changes. Unchanged folders keep their watches.
func (m *Manager) ApplyConfigChanges(oldFolders, newFolders []database.MonitoredFolder) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.folders = enabledOnly(newFolders)
	m.mu.Unlock()

	oldByKey := byKey(oldFolders)
	newByKey := byKey(newFolders)

	for _, key := range sortedKeys(newByKey) {
		nf := newByKey[key]
		of, existed := oldByKey[key]
		switch {
		case !existed:
			log.Info("Monitoring added: %s", nf.Path)
			m.startFolder(nf)
		case of.Enabled != nf.Enabled:
			if nf.Enabled {
				m.startFolder(nf)
			} else {
				m.stopFolder(nf.Path)
			}
		case nf.Enabled && of.IsLocal != nf.IsLocal:
			m.stopFolder(of.Path)
			m.startFolder(nf)
		case nf.Enabled && !nf.IsLocal && of.PollIntervalMinutes != nf.PollIntervalMinutes:
			m.poller.UpdateInterval(nf.Path, nf.PollIntervalMinutes)
		}
	}

	for _, key := range sortedKeys(oldByKey) {
		if _, ok := newByKey[key]; !ok {
			log.Info("Monitoring removed: %s", oldByKey[key].Path)
			m.stopFolder(oldByKey[key].Path)
		}
	}

	m.updateStatus()
}

func (m *Manager) startFolder(f database.MonitoredFolder) {
	if !f.Enabled {
		return
	}

	if !f.IsLocal {
		m.poller.AddPoll(f)
		return
	}

	err := m.local.AddWatch(f.Path)

	m.mu.Lock()
	if err != nil {
		m.failed[keyOf(f.Path)] = f.Path
	} else {
		delete(m.failed, keyOf(f.Path))
	}
	m.mu.Unlock()

	if err != nil {
		log.Error("Failed to watch %s (%s): %v", f.Path, filesystem.ClassifyError(err), err)
	}
}

func (m *Manager) stopFolder(path string) {
	m.local.RemoveWatch(path)
	m.poller.RemovePoll(path)

	m.mu.Lock()
	delete(m.errorPaths, keyOf(path))
	delete(m.failed, keyOf(path))
	m.mu.Unlock()
}

// folderFor finds the registration of path.
func (m *Manager) folderFor(ctx context.Context, path string) (*database.MonitoredFolder, error) {
	folders, err := m.registry.Folders(ctx)
	if err != nil {
		return nil, err
	}
	key := keyOf(path)
	for _, f := range folders {
		if keyOf(f.Path) == key {
			return &f, nil
		}
	}
	return nil, nil
}

func (m *Manager) onLocalChanges(path string, events []FileEvent) {
	ctx := context.Background()

	if info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
		log.Warn("Could not stat %s after change: %v", path, err)
	} else if f, err := m.folderFor(ctx, path); err != nil {
		log.Error("Failed to look up monitored folder %s: %v", path, err)
	} else if f != nil {
		if err := m.registry.UpdateFolderMtime(ctx, f.ID, info.ModTime()); err != nil {
			log.Error("%v", err)
		}
	}

	m.publish(Notification{Kind: NotifyChanges, Path: path, Events: events})
	m.requestRescan(path)
}

func (m *Manager) onNetworkChange(path string, mtime time.Time) {
	ctx := context.Background()

	if f, err := m.folderFor(ctx, path); err != nil {
		log.Error("Failed to look up monitored folder %s: %v", path, err)
	} else if f != nil {
		if err := m.registry.UpdateFolderMtime(ctx, f.ID, mtime); err != nil {
			log.Error("%v", err)
		}
	}

	m.publish(Notification{Kind: NotifyChanges, Path: path})
	m.requestRescan(path)
}

func (m *Manager) onConnectionError(path string, err error) {
	// The poller reports outside its lock; the folder may be gone by now.
	m.mu.Lock()
	if !m.running || !m.poller.IsPolling(path) {
		m.mu.Unlock()
		log.Debug("Ignoring connection error for %s: no longer polled", path)
		return
	}
	m.errorPaths[keyOf(path)] = path
	m.mu.Unlock()

	m.publish(Notification{
		Kind:    NotifyConnectionError,
		Path:    path,
		Message: filesystem.ClassifyError(err) + ": " + err.Error(),
	})
	m.updateStatus()
}

func (m *Manager) onConnectionRestored(path string) {
	m.mu.Lock()
	delete(m.errorPaths, keyOf(path))
	m.mu.Unlock()

	m.publish(Notification{Kind: NotifyConnectionRestored, Path: path})
	m.updateStatus()
}

func (m *Manager) requestRescan(path string) {
	if m.rescan != nil {
		m.rescan(path)
	}
}

// updateStatus recomputes and publishes the aggregate status.
func (m *Manager) updateStatus() {
	local := len(m.local.WatchedPaths())
	network := len(m.poller.PolledPaths())

	m.mu.Lock()
	st := deriveStatus(m.enabled, m.running, local, network, len(m.errorPaths), len(m.failed))
	m.status = st
	m.mu.Unlock()

	metrics.SetWatcherStatus(st.Kind)
	m.publish(Notification{Kind: NotifyStatus, Status: &st, Message: st.Message})
}

// Status returns the current aggregate status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsRunning reports whether the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// StatusInfo returns a detailed snapshot.
func (m *Manager) StatusInfo() StatusInfo {
	info := StatusInfo{
		LocalPaths:   m.local.WatchedPaths(),
		NetworkPaths: m.poller.PolledPaths(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info.Running = m.running
	info.Enabled = m.enabled
	info.ErrorPaths = mapValues(m.errorPaths)
	info.FailedPaths = mapValues(m.failed)
	info.Status = m.status
	return info
}

func enabledOnly(folders []database.MonitoredFolder) []database.MonitoredFolder {
	out := make([]database.MonitoredFolder, 0, len(folders))
	for _, f := range folders {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

func byKey(folders []database.MonitoredFolder) map[string]database.MonitoredFolder {
	out := make(map[string]database.MonitoredFolder, len(folders))
	for _, f := range folders {
		out[keyOf(f.Path)] = f
	}
	return out
}

func sortedKeys(m map[string]database.MonitoredFolder) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mapValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
