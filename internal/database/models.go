package database

import "time"

// Folder is one deduplicated directory path.
type Folder struct {
	ID           int64  `json:"id"`
	Path         string `json:"path"`
	ParentID     *int64 `json:"parentId,omitempty"`
	ScanSourceID *int64 `json:"scanSourceId,omitempty"`
	AICategory   string `json:"aiCategory,omitempty"`
	AITags       string `json:"aiTags,omitempty"`
}

// ChildFolder is one entry returned by DirectChildren.
type ChildFolder struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	HasSubdirs bool   `json:"hasChildren"`
	AICategory string `json:"aiCategory,omitempty"`
	AITags     string `json:"aiTags,omitempty"`
}

// FileRecord is one indexed file or directory entry.
type FileRecord struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Extension  string    `json:"extension"`
	FolderID   int64     `json:"folderId"`
	FolderPath string    `json:"folderPath"`
	Size       int64     `json:"size"`
	Ctime      time.Time `json:"ctime"`
	Mtime      time.Time `json:"mtime"`
	ScanTime   time.Time `json:"scanTime"`
	IsDir      bool      `json:"isDir"`
	AICategory string    `json:"aiCategory,omitempty"`
	AITags     string    `json:"aiTags,omitempty"`
}

// FullPath returns the record's path including its folder.
func (f FileRecord) FullPath() string {
	return JoinPath(f.FolderPath, f.Filename)
}

// FolderContents is a page of a folder's direct subfolders and files.
type FolderContents struct {
	Path    string        `json:"path"`
	Subdirs []SubdirEntry `json:"subdirs"`
	Files   []FileRecord  `json:"files"`
	Total   int           `json:"total"`
	HasMore bool          `json:"hasMore"`
}

// SubdirEntry is a direct subfolder with its direct file count.
type SubdirEntry struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	FileCount  int    `json:"fileCount"`
	AICategory string `json:"aiCategory,omitempty"`
	AITags     string `json:"aiTags,omitempty"`
}

// ScanSource is a root that has been scanned into the index.
type ScanSource struct {
	ID           int64     `json:"id"`
	Path         string    `json:"path"`
	LastScanTime time.Time `json:"lastScanTime"`
	FileCount    int64     `json:"fileCount"`
	TotalSize    int64     `json:"totalSize"`
	IsNetwork    bool      `json:"isNetwork"`
}

// ScanError is an entry the scanner failed to read.
type ScanError struct {
	ID           int64     `json:"id"`
	FilePath     string    `json:"filePath"`
	ErrorMessage string    `json:"errorMessage"`
	ErrorTime    time.Time `json:"errorTime"`
	ScanSource   string    `json:"scanSource"`
	Resolved     bool      `json:"resolved"`
}

// MonitoredFolder is a persisted watch registration.
type MonitoredFolder struct {
	ID                  int64      `json:"id"`
	Path                string     `json:"path"`
	LastMtime           *time.Time `json:"lastMtime,omitempty"`
	LastCheckTime       *time.Time `json:"lastCheckTime,omitempty"`
	IsLocal             bool       `json:"isLocal"`
	PollIntervalMinutes int        `json:"pollIntervalMinutes"`
	Enabled             bool       `json:"enabled"`
}

// IndexStats summarizes the index contents.
type IndexStats struct {
	TotalFiles       int64 `json:"totalFiles"`
	TotalFolders     int64 `json:"totalFolders"`
	TotalSize        int64 `json:"totalSize"`
	ExtensionCount   int64 `json:"extensionCount"`
	Categorized      int64 `json:"categorized"`
	UnresolvedErrors int64 `json:"unresolvedErrors"`
}

// OptimizeResult reports database file sizes around VACUUM.
type OptimizeResult struct {
	SizeBefore int64 `json:"sizeBefore"`
	SizeAfter  int64 `json:"sizeAfter"`
	Saved      int64 `json:"saved"`
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
