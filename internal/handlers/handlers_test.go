package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"file-recorder/internal/database"
	"file-recorder/internal/reconciler"
	"file-recorder/internal/registry"
	"file-recorder/internal/scanner"
	"file-recorder/internal/watcher"

	"github.com/gorilla/mux"
)

const waitTimeout = 5 * time.Second

type nopBackend struct{}

func (nopBackend) Watch(string, func(watcher.FileEvent)) (watcher.WatchHandle, error) {
	return nopHandle{}, nil
}

type nopHandle struct{}

func (nopHandle) Close() error { return nil }

type testEnv struct {
	h   *Handlers
	db  *database.Database
	reg *registry.Registry
	mgr *watcher.Manager
}

func setupHandlers(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg := registry.New(db)
	mgr := watcher.NewManager(reg, watcher.Options{Backend: nopBackend{}, DebounceInterval: 20 * time.Millisecond})
	t.Cleanup(mgr.Stop)

	queue := scanner.NewQueue(scanner.New(db, scanner.DefaultConfig()), nil)
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)

	h := New(db, reg, mgr, queue, reconciler.New(reg, db))
	return &testEnv{h: h, db: db, reg: reg, mgr: mgr}
}

// serve runs handler against a request with an optional JSON body and mux vars.
func serve(t *testing.T, handler http.HandlerFunc, method, target string, body interface{}, vars map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func idVars(id int64) map[string]string {
	return map[string]string{"id": strconv.FormatInt(id, 10)}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func enableWatching(t *testing.T, env *testEnv) {
	t.Helper()
	s := registry.DefaultSettings()
	s.Enabled = true
	if _, err := env.reg.SetSettings(context.Background(), s); err != nil {
		t.Fatalf("SetSettings failed: %v", err)
	}
}

// waitForMtime polls until the monitored folder has a recorded mtime.
func waitForMtime(t *testing.T, env *testEnv, id int64) *database.MonitoredFolder {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		f, err := env.reg.Folder(context.Background(), id)
		if err != nil {
			t.Fatalf("Folder(%d) failed: %v", id, err)
		}
		if f.LastMtime != nil {
			return f
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for mtime of folder %d", id)
	return nil
}

// =============================================================================
// Health
// =============================================================================

func TestHealthAndReadiness(t *testing.T) {
	env := setupHandlers(t)

	rec := serve(t, env.h.HealthCheck, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before ready, got %d", rec.Code)
	}
	var health HealthResponse
	decode(t, rec, &health)
	if health.Status != statusStarting || health.Ready {
		t.Errorf("Unexpected health before ready: %+v", health)
	}

	rec = serve(t, env.h.ReadinessCheck, http.MethodGet, "/readyz", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected readyz 503 before ready, got %d", rec.Code)
	}

	env.h.SetReady(true)

	rec = serve(t, env.h.HealthCheck, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 when ready, got %d", rec.Code)
	}
	decode(t, rec, &health)
	if health.Status != statusHealthy {
		t.Errorf("Expected healthy, got %s", health.Status)
	}
	if health.WatcherStatus != watcher.StatusDisabled {
		t.Errorf("Expected disabled watcher, got %s", health.WatcherStatus)
	}

	if rec := serve(t, env.h.ReadinessCheck, http.MethodGet, "/readyz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("Expected readyz 200, got %d", rec.Code)
	}
}

func TestLivenessCheck(t *testing.T) {
	env := setupHandlers(t)

	rec := serve(t, env.h.LivenessCheck, http.MethodGet, "/livez", nil, nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("alive")) {
		t.Errorf("Unexpected liveness response: %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, env.h.LivenessCheck, http.MethodHead, "/livez", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("Expected empty 200 for HEAD, got %d with %d bytes", rec.Code, rec.Body.Len())
	}
}

func TestGetVersion(t *testing.T) {
	env := setupHandlers(t)

	rec := serve(t, env.h.GetVersion, http.MethodGet, "/version", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Error("Expected Cache-Control: no-cache")
	}
	var info map[string]string
	decode(t, rec, &info)
	if info["version"] == "" || info["goVersion"] == "" {
		t.Errorf("Incomplete build info: %v", info)
	}
}

// =============================================================================
// Monitored folders
// =============================================================================

func TestMonitoredCRUD(t *testing.T) {
	env := setupHandlers(t)

	rec := serve(t, env.h.AddMonitored, http.MethodPost, "/api/monitored",
		AddMonitoredRequest{Path: "/data/media", PollIntervalMinutes: 5}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var added AddMonitoredResponse
	decode(t, rec, &added)
	if added.Folder == nil || added.Folder.PollIntervalMinutes != 5 || !added.Folder.IsLocal {
		t.Fatalf("Unexpected folder: %+v", added.Folder)
	}
	id := added.Folder.ID

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"duplicate", AddMonitoredRequest{Path: "/data/media/"}, http.StatusConflict},
		{"covered by ancestor", AddMonitoredRequest{Path: "/data/media/movies"}, http.StatusConflict},
		{"empty path", AddMonitoredRequest{Path: "  "}, http.StatusBadRequest},
		{"negative interval", AddMonitoredRequest{Path: "/other", PollIntervalMinutes: -1}, http.StatusBadRequest},
		{"unknown field", `{"path":"/other","recursive":true}`, http.StatusBadRequest},
		{"malformed", `{"path":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, env.h.AddMonitored, http.MethodPost, "/api/monitored", tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec = serve(t, env.h.ListMonitored, http.MethodGet, "/api/monitored", nil, nil)
	var list []database.MonitoredFolder
	decode(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("Expected 1 monitored folder, got %d", len(list))
	}

	interval := 30
	off := false
	rec = serve(t, env.h.UpdateMonitored, http.MethodPatch, "/api/monitored/x",
		UpdateMonitoredRequest{PollIntervalMinutes: &interval, Enabled: &off}, idVars(id))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated database.MonitoredFolder
	decode(t, rec, &updated)
	if updated.PollIntervalMinutes != 30 || updated.Enabled {
		t.Errorf("Unexpected update result: %+v", updated)
	}

	zero := 0
	rec = serve(t, env.h.UpdateMonitored, http.MethodPatch, "/", UpdateMonitoredRequest{PollIntervalMinutes: &zero}, idVars(id))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero interval, got %d", rec.Code)
	}
	rec = serve(t, env.h.UpdateMonitored, http.MethodPatch, "/", UpdateMonitoredRequest{Enabled: &off}, idVars(999))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown id, got %d", rec.Code)
	}
	rec = serve(t, env.h.UpdateMonitored, http.MethodPatch, "/", UpdateMonitoredRequest{}, map[string]string{"id": "abc"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad id, got %d", rec.Code)
	}

	if rec := serve(t, env.h.RemoveMonitored, http.MethodDelete, "/", nil, idVars(id)); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec := serve(t, env.h.RemoveMonitored, http.MethodDelete, "/", nil, idVars(id)); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", rec.Code)
	}
}

func TestAddMonitoredMergesChildren(t *testing.T) {
	env := setupHandlers(t)
	ctx := context.Background()

	for _, p := range []string{"/data/a", "/data/b", "/elsewhere"} {
		if _, err := env.reg.Add(ctx, p, 0); err != nil {
			t.Fatal(err)
		}
	}

	rec := serve(t, env.h.AddMonitored, http.MethodPost, "/", AddMonitoredRequest{Path: "/data"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 without merge, got %d", rec.Code)
	}
	var conflict ConflictResponse
	decode(t, rec, &conflict)
	if len(conflict.Children) != 2 || len(conflict.Parent) != 0 {
		t.Errorf("Unexpected conflicts: %+v", conflict)
	}

	rec = serve(t, env.h.AddMonitored, http.MethodPost, "/", AddMonitoredRequest{Path: "/data", MergeChildren: true}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 with merge, got %d: %s", rec.Code, rec.Body.String())
	}
	var added AddMonitoredResponse
	decode(t, rec, &added)
	if len(added.Merged) != 2 {
		t.Errorf("Expected 2 merged children, got %+v", added.Merged)
	}

	folders, err := env.reg.Folders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 2 {
		t.Errorf("Expected /data and /elsewhere to remain, got %+v", folders)
	}
}

func TestConflictsAndLookup(t *testing.T) {
	env := setupHandlers(t)
	if _, err := env.reg.Add(context.Background(), "/data/media", 0); err != nil {
		t.Fatal(err)
	}

	rec := serve(t, env.h.MonitoredConflicts, http.MethodGet, "/api/monitored/conflicts?path=/data", nil, nil)
	var conflicts registry.Conflicts
	decode(t, rec, &conflicts)
	if len(conflicts.Children) != 1 || len(conflicts.Parent) != 0 {
		t.Errorf("Unexpected conflicts for /data: %+v", conflicts)
	}

	rec = serve(t, env.h.LookupMonitored, http.MethodGet, "/api/monitored/lookup?path=/DATA/media/movies", nil, nil)
	var lookup LookupResponse
	decode(t, rec, &lookup)
	if !lookup.Monitored || lookup.Folder == nil || lookup.Folder.Path != "/data/media" {
		t.Errorf("Expected /data/media to cover the path, got %+v", lookup)
	}

	rec = serve(t, env.h.LookupMonitored, http.MethodGet, "/api/monitored/lookup?path=/datamedia", nil, nil)
	decode(t, rec, &lookup)
	if lookup.Monitored {
		t.Errorf("Expected sibling prefix not to be covered, got %+v", lookup)
	}

	if rec := serve(t, env.h.LookupMonitored, http.MethodGet, "/api/monitored/lookup", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without path, got %d", rec.Code)
	}
}

// =============================================================================
// Watcher
// =============================================================================

func TestWatcherSettingsToggle(t *testing.T) {
	env := setupHandlers(t)

	rec := serve(t, env.h.GetWatcherSettings, http.MethodGet, "/api/watcher/settings", nil, nil)
	var s registry.Settings
	decode(t, rec, &s)
	if s.Enabled || s.DefaultPollIntervalMinutes != registry.DefaultPollIntervalMinutes {
		t.Errorf("Unexpected default settings: %+v", s)
	}

	on := true
	rec = serve(t, env.h.UpdateWatcherSettings, http.MethodPut, "/", SettingsRequest{Enabled: &on}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !env.mgr.IsRunning() {
		t.Error("Expected manager to start when enabled")
	}

	interval := 45
	rec = serve(t, env.h.UpdateWatcherSettings, http.MethodPut, "/", SettingsRequest{DefaultPollIntervalMinutes: &interval}, nil)
	decode(t, rec, &s)
	if !s.Enabled || s.DefaultPollIntervalMinutes != 45 {
		t.Errorf("Expected partial update to keep enabled, got %+v", s)
	}

	off := false
	serve(t, env.h.UpdateWatcherSettings, http.MethodPut, "/", SettingsRequest{Enabled: &off}, nil)
	if env.mgr.IsRunning() {
		t.Error("Expected manager to stop when disabled")
	}

	zero := 0
	rec = serve(t, env.h.UpdateWatcherSettings, http.MethodPut, "/", SettingsRequest{DefaultPollIntervalMinutes: &zero}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero interval, got %d", rec.Code)
	}
}

func TestWatcherStatusAndRestart(t *testing.T) {
	env := setupHandlers(t)
	enableWatching(t, env)
	if _, err := env.reg.Add(context.Background(), t.TempDir(), 0); err != nil {
		t.Fatal(err)
	}

	rec := serve(t, env.h.RestartWatcher, http.MethodPost, "/api/watcher/restart", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, env.h.GetWatcherStatus, http.MethodGet, "/api/watcher/status", nil, nil)
	var status WatcherStatusResponse
	decode(t, rec, &status)
	if !status.Running || !status.Enabled || len(status.LocalPaths) != 1 {
		t.Errorf("Unexpected status: %+v", status)
	}
	if status.Status.Kind != watcher.StatusNormal {
		t.Errorf("Expected normal status, got %+v", status.Status)
	}
	if status.PendingRescans == nil {
		t.Error("Expected pendingRescans to be an empty list, not null")
	}

	rec = serve(t, env.h.GetWatcherEvents, http.MethodGet, "/api/watcher/events?limit=5", nil, nil)
	var events []watcher.Notification
	decode(t, rec, &events)
	if len(events) == 0 || events[0].Kind != watcher.NotifyStatus {
		t.Errorf("Expected recent status notifications, got %+v", events)
	}
}

func TestEventLogRing(t *testing.T) {
	l := newEventLog(3)
	if got := l.recent(0); len(got) != 0 {
		t.Fatalf("Expected empty log, got %d", len(got))
	}

	for i := 1; i <= 5; i++ {
		l.record(watcher.Notification{Kind: watcher.NotifyChanges, Path: strconv.Itoa(i)})
	}

	got := l.recent(0)
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	for i, want := range []string{"5", "4", "3"} {
		if got[i].Path != want {
			t.Errorf("entry %d = %s, want %s", i, got[i].Path, want)
		}
	}

	if got := l.recent(2); len(got) != 2 || got[0].Path != "5" {
		t.Errorf("recent(2) = %+v", got)
	}
}

// =============================================================================
// Index
// =============================================================================

func TestIndexEndpoints(t *testing.T) {
	env := setupHandlers(t)
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.mkv":           "aaaa",
		"movies/b.mkv":    "bb",
		"movies/hd/c.mkv": "c",
	})

	if _, err := scanner.New(env.db, scanner.DefaultConfig()).Scan(ctx, root); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	rec := serve(t, env.h.GetChildren, http.MethodGet, "/api/index/children?path="+root, nil, nil)
	var children []database.ChildFolder
	decode(t, rec, &children)
	if len(children) != 1 || children[0].Name != "movies" || !children[0].HasSubdirs {
		t.Errorf("Unexpected children: %+v", children)
	}

	rec = serve(t, env.h.GetContents, http.MethodGet, "/api/index/contents?limit=10&path="+filepath.Join(root, "movies"), nil, nil)
	var contents database.FolderContents
	decode(t, rec, &contents)
	if len(contents.Subdirs) != 1 || contents.Total == 0 {
		t.Errorf("Unexpected contents: %+v", contents)
	}

	rec = serve(t, env.h.GetSources, http.MethodGet, "/api/index/sources", nil, nil)
	var sources []database.ScanSource
	decode(t, rec, &sources)
	if len(sources) != 1 || sources[0].FileCount != 3 {
		t.Errorf("Unexpected sources: %+v", sources)
	}

	rec = serve(t, env.h.GetStats, http.MethodGet, "/api/index/stats", nil, nil)
	var stats database.IndexStats
	decode(t, rec, &stats)
	if stats.TotalFiles != 3 || stats.TotalSize != 7 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	rec = serve(t, env.h.GetErrors, http.MethodGet, "/api/index/errors", nil, nil)
	var errs []database.ScanError
	decode(t, rec, &errs)
	if len(errs) != 0 {
		t.Errorf("Expected no scan errors, got %+v", errs)
	}

	if rec := serve(t, env.h.GetChildren, http.MethodGet, "/api/index/children", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without path, got %d", rec.Code)
	}
}

func TestDeleteSourceGuardsWatchedPaths(t *testing.T) {
	env := setupHandlers(t)
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"movies/a.mkv": "a", "b.mkv": "b"})

	if _, err := scanner.New(env.db, scanner.DefaultConfig()).Scan(ctx, root); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if _, err := env.reg.Add(ctx, filepath.Join(root, "movies"), 0); err != nil {
		t.Fatal(err)
	}

	rec := serve(t, env.h.DeleteSource, http.MethodDelete, "/api/index/source?path="+root, nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for a watched subtree, got %d", rec.Code)
	}

	rec = serve(t, env.h.DeleteSource, http.MethodDelete, "/api/index/source?force=true&path="+root, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 with force, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp DeleteSourceResponse
	decode(t, rec, &resp)
	if resp.FilesRemoved == 0 {
		t.Errorf("Expected files to be removed, got %+v", resp)
	}

	indexed, err := env.db.FolderIndexed(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if indexed {
		t.Error("Expected root to be gone from the index")
	}
	sources, err := env.db.ScanSources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 0 {
		t.Errorf("Expected scan source row to be deleted, got %+v", sources)
	}
}

func TestTriggerRescanRefreshesMtime(t *testing.T) {
	env := setupHandlers(t)
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.mkv": "a"})

	m, err := env.reg.Add(ctx, root, 0)
	if err != nil {
		t.Fatal(err)
	}

	rec := serve(t, env.h.TriggerRescan, http.MethodPost, "/api/index/rescan", RescanRequest{Path: root}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp RescanResponse
	decode(t, rec, &resp)
	if resp.ID == "" {
		t.Error("Expected a request id")
	}

	waitForMtime(t, env, m.ID)

	indexed, err := env.db.FolderIndexed(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if !indexed {
		t.Error("Expected root to be indexed after the rescan")
	}

	if rec := serve(t, env.h.TriggerRescan, http.MethodPost, "/", RescanRequest{}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without path, got %d", rec.Code)
	}
}

// =============================================================================
// Reconcile
// =============================================================================

func TestReconcileDisabled(t *testing.T) {
	env := setupHandlers(t)

	rec := serve(t, env.h.RunReconcile, http.MethodGet, "/api/reconcile", nil, nil)
	var resp ReconcileResponse
	decode(t, rec, &resp)
	if resp.Enabled || len(resp.Changed) != 0 || resp.Changed == nil {
		t.Errorf("Unexpected response while disabled: %+v", resp)
	}
}

func TestReconcileAndConfirm(t *testing.T) {
	env := setupHandlers(t)
	enableWatching(t, env)
	ctx := context.Background()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.mkv": "a", "b.mkv": "b"})
	m, err := env.reg.Add(ctx, root, 0)
	if err != nil {
		t.Fatal(err)
	}
	missing, err := env.reg.Add(ctx, filepath.Join(t.TempDir(), "gone"), 0)
	if err != nil {
		t.Fatal(err)
	}

	rec := serve(t, env.h.RunReconcile, http.MethodGet, "/api/reconcile", nil, nil)
	var resp ReconcileResponse
	decode(t, rec, &resp)
	if len(resp.Changed) != 1 || !resp.Changed[0].IsNewFolder {
		t.Fatalf("Expected the unindexed folder to be reported new, got %+v", resp.Changed)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].Folder.ID != missing.ID {
		t.Fatalf("Expected the missing folder to fail, got %+v", resp.Failed)
	}

	rec = serve(t, env.h.ConfirmReconcile, http.MethodPost, "/", ConfirmRequest{FolderID: m.ID, Rescan: true}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	waitForMtime(t, env, m.ID)

	rec = serve(t, env.h.RunReconcile, http.MethodGet, "/api/reconcile", nil, nil)
	decode(t, rec, &resp)
	if len(resp.Changed) != 0 {
		t.Errorf("Expected no changes after confirmation, got %+v", resp.Changed)
	}

	stamp := time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC)
	rec = serve(t, env.h.ConfirmReconcile, http.MethodPost, "/", ConfirmRequest{FolderID: m.ID, Mtime: &stamp}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var folder database.MonitoredFolder
	decode(t, rec, &folder)
	if folder.LastMtime == nil || !folder.LastMtime.Equal(stamp) {
		t.Errorf("Expected explicit mtime to be stored, got %v", folder.LastMtime)
	}

	if rec := serve(t, env.h.ConfirmReconcile, http.MethodPost, "/", ConfirmRequest{FolderID: 999}, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown folder, got %d", rec.Code)
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 200},
		{"limit=10", 10},
		{"limit=0", 0},
		{"limit=-1", 200},
		{"limit=-500", 200},
		{"limit=abc", 200},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/index/contents?"+tt.query, nil)
		if got := queryInt(r, "limit", defaultContentsLimit); got != tt.want {
			t.Errorf("queryInt(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
