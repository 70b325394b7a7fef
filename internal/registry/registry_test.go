package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"file-recorder/internal/database"
)

func setupRegistry(t *testing.T) (*Registry, *database.Database) {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db
}

func mustAdd(t *testing.T, r *Registry, path string, interval int) *database.MonitoredFolder {
	t.Helper()
	m, err := r.Add(context.Background(), path, interval)
	if err != nil {
		t.Fatalf("Add(%q) error = %v", path, err)
	}
	return m
}

func TestAddDefaultsAndDuplicates(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	m := mustAdd(t, r, "/data/videos", 0)
	if !m.Enabled || !m.IsLocal {
		t.Errorf("Add() = %+v, want enabled local folder", m)
	}
	if m.PollIntervalMinutes != DefaultPollIntervalMinutes {
		t.Errorf("PollIntervalMinutes = %d, want %d", m.PollIntervalMinutes, DefaultPollIntervalMinutes)
	}

	if _, err := r.Add(ctx, "/DATA/videos/", 5); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Add(duplicate) error = %v, want ErrDuplicate", err)
	}

	exists, err := r.Exists(ctx, "/data/Videos")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v", exists, err)
	}
}

func TestAddClassifiesSharePaths(t *testing.T) {
	r, _ := setupRegistry(t)

	m := mustAdd(t, r, `\\server\share\videos`, 10)
	if m.IsLocal {
		t.Errorf("share path classified as local: %+v", m)
	}
	if m.PollIntervalMinutes != 10 {
		t.Errorf("PollIntervalMinutes = %d, want 10", m.PollIntervalMinutes)
	}
}

func TestFindConflictsIsSymmetric(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	mustAdd(t, r, "/data/videos", 0)
	mustAdd(t, r, "/data/music", 0)
	mustAdd(t, r, "/database", 0)

	// A new parent sees both children but not the sibling with a shared prefix.
	c, err := r.FindConflicts(ctx, "/data")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Parent) != 0 || len(c.Children) != 2 {
		t.Fatalf("FindConflicts(/data) = %+v", c)
	}

	// A new child sees its parent.
	c, err = r.FindConflicts(ctx, "/data/videos/2024")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Parent) != 1 || c.Parent[0].Path != database.NormalizePath("/data/videos") || len(c.Children) != 0 {
		t.Fatalf("FindConflicts(/data/videos/2024) = %+v", c)
	}

	c, err = r.FindConflicts(ctx, "/data/videos")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Empty() {
		t.Errorf("exact match reported as conflict: %+v", c)
	}
}

func TestAddResolved(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	mustAdd(t, r, "/data/videos", 0)
	mustAdd(t, r, "/data/music", 0)

	if _, _, err := r.AddResolved(ctx, "/data", 0, false); !errors.Is(err, ErrHasChildren) {
		t.Fatalf("AddResolved(no merge) error = %v, want ErrHasChildren", err)
	}

	m, conflicts, err := r.AddResolved(ctx, "/data", 0, true)
	if err != nil {
		t.Fatalf("AddResolved(merge) error = %v", err)
	}
	if len(conflicts.Children) != 2 {
		t.Errorf("conflicts = %+v", conflicts)
	}

	folders, err := r.Folders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || folders[0].ID != m.ID {
		t.Fatalf("Folders() after merge = %+v", folders)
	}

	if _, _, err := r.AddResolved(ctx, "/data/videos/2024", 0, true); !errors.Is(err, ErrRedundant) {
		t.Errorf("AddResolved(child) error = %v, want ErrRedundant", err)
	}
}

func TestIsPathMonitored(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	mustAdd(t, r, "/data", 0)

	tests := []struct {
		path string
		want bool
	}{
		{"/data", true},
		{"/data/videos/clip.mp4", true},
		{"/DATA/videos", true},
		{"/database", false},
		{"/other", false},
	}
	for _, tt := range tests {
		m, err := r.IsPathMonitored(ctx, tt.path)
		if err != nil {
			t.Fatal(err)
		}
		if (m != nil) != tt.want {
			t.Errorf("IsPathMonitored(%q) = %v, want %v", tt.path, m, tt.want)
		}
	}
}

func TestUpdateRemoveAndMtime(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	a := mustAdd(t, r, "/a", 0)
	b := mustAdd(t, r, "/b", 0)

	off := false
	interval := 30
	updated, err := r.Update(ctx, a.ID, FolderUpdate{Enabled: &off, PollIntervalMinutes: &interval})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Enabled || updated.PollIntervalMinutes != 30 {
		t.Errorf("Update() = %+v", updated)
	}

	zero := 0
	if _, err := r.Update(ctx, a.ID, FolderUpdate{PollIntervalMinutes: &zero}); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("Update(interval 0) error = %v, want ErrInvalidInterval", err)
	}
	if _, _, err := r.AddResolved(ctx, "  ", 0, false); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("AddResolved(blank) error = %v, want ErrEmptyPath", err)
	}
	if _, err := r.Update(ctx, 999, FolderUpdate{Enabled: &off}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	enabled, err := r.EnabledFolders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(enabled) != 1 || enabled[0].ID != b.ID {
		t.Errorf("EnabledFolders() = %+v", enabled)
	}

	mtime := time.Unix(1700000000, 500)
	if err := r.UpdateFolderMtime(ctx, b.ID, mtime); err != nil {
		t.Fatal(err)
	}
	got, err := r.Folder(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMtime == nil || !got.LastMtime.Equal(mtime) || got.LastCheckTime == nil {
		t.Errorf("after UpdateFolderMtime: %+v", got)
	}

	if err := r.Remove(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := r.Remove(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
	if err := r.RemoveByPath(ctx, "/B/"); err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveByPath(ctx, "/b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveByPath() error = %v, want ErrNotFound", err)
	}
}

func TestSettingsRoundTripAndLegacyFallback(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	s, err := r.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s != DefaultSettings() {
		t.Errorf("fresh Settings() = %+v, want defaults", s)
	}

	for k, v := range map[string]string{
		"feature_enabled":       "true",
		"silent_update":         "true",
		"default_poll_interval": "7",
	} {
		if err := db.SetConfigValue(ctx, k, v); err != nil {
			t.Fatal(err)
		}
	}
	r.Reload()

	s, err = r.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Settings{Enabled: true, SilentUpdate: true, DefaultPollIntervalMinutes: 7}
	if s != want {
		t.Errorf("legacy Settings() = %+v, want %+v", s, want)
	}

	saved, err := r.SetSettings(ctx, Settings{Enabled: false, DefaultPollIntervalMinutes: -1})
	if err != nil {
		t.Fatal(err)
	}
	if saved.DefaultPollIntervalMinutes != DefaultPollIntervalMinutes {
		t.Errorf("SetSettings() did not normalize interval: %+v", saved)
	}

	fresh := New(db)
	s, err = fresh.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s != saved {
		t.Errorf("reloaded Settings() = %+v, want %+v", s, saved)
	}
	if fresh.Enabled(ctx) {
		t.Error("Enabled() = true after disabling")
	}
}

func TestApplySeed(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	mustAdd(t, r, "/media/tv/kids", 0)
	mustAdd(t, r, "/archive", 0)

	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	content := `
enabled: true
defaultPollIntervalMinutes: 20
folders:
  - path: /media/tv
  - path: /archive/2020
  - path: /archive
  - path: //nas/share
    pollIntervalMinutes: 5
`
	if err := os.WriteFile(seedPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	seed, err := LoadSeed(seedPath)
	if err != nil {
		t.Fatal(err)
	}

	added, err := r.ApplySeed(ctx, seed)
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Errorf("ApplySeed() added %d, want 2", added)
	}

	s, err := r.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Enabled || s.DefaultPollIntervalMinutes != 20 {
		t.Errorf("Settings() after seed = %+v", s)
	}

	folders, err := r.Folders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]database.MonitoredFolder{}
	for _, f := range folders {
		got[database.PathKey(f.Path)] = f
	}
	if len(got) != 3 {
		t.Fatalf("Folders() after seed = %+v", folders)
	}
	if f, ok := got[database.PathKey("/media/tv")]; !ok || f.PollIntervalMinutes != 20 {
		t.Errorf("/media/tv = %+v, %v", f, ok)
	}
	if f, ok := got[database.PathKey("//nas/share")]; !ok || f.IsLocal || f.PollIntervalMinutes != 5 {
		t.Errorf("//nas/share = %+v, %v", f, ok)
	}
	if _, ok := got[database.PathKey("/media/tv/kids")]; ok {
		t.Error("child registration survived merge")
	}
}

func TestLoadSeedErrors(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadSeed(missing) succeeded")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("folders: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSeed(bad); err == nil {
		t.Error("LoadSeed(bad yaml) succeeded")
	}
}

func TestRefreshMtime(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	dir := t.TempDir()
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(dir, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	m := mustAdd(t, r, dir, 0)

	if err := r.RefreshMtime(ctx, dir); err != nil {
		t.Fatalf("RefreshMtime() error = %v", err)
	}
	got, err := r.Folder(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMtime == nil || !got.LastMtime.Equal(mtime) {
		t.Errorf("LastMtime = %v, want %v", got.LastMtime, mtime)
	}

	if err := r.RefreshMtime(ctx, filepath.Join(dir, "unregistered")); err != nil {
		t.Errorf("RefreshMtime(unregistered) error = %v, want nil", err)
	}

	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}
	if err := r.RefreshMtime(ctx, dir); err == nil {
		t.Error("RefreshMtime(missing dir) succeeded")
	}
}

func TestFoldersInRegistrationOrder(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	for _, p := range []string{"/media/tv", "/archive", "/media/movies"} {
		mustAdd(t, r, p, 0)
	}

	folders, err := r.Folders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, f := range folders {
		got = append(got, f.Path)
	}
	want := []string{"/media/tv", "/archive", "/media/movies"}
	if len(got) != len(want) {
		t.Fatalf("Folders() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Folders()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
