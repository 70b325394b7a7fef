package reconciler

import (
	"fmt"
	"strings"
	"time"

	"file-recorder/internal/database"
)

// ChangeType is the kind of a file-level difference.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeDeleted  ChangeType = "deleted"
	ChangeModified ChangeType = "modified"
)

const (
	// maxSamplesPerType caps added and deleted samples.
	maxSamplesPerType = 5
	// maxSamples caps the sample list as a whole.
	maxSamples = 10
)

// FileChange is one sampled file difference.
type FileChange struct {
	Path     string     `json:"path"`
	Filename string     `json:"filename"`
	Type     ChangeType `json:"type"`
	Size     int64      `json:"size"`
}

// FolderChange is the result of checking one monitored folder.
type FolderChange struct {
	Folder       database.MonitoredFolder `json:"folder"`
	OldMtime     *time.Time               `json:"oldMtime,omitempty"`
	NewMtime     time.Time                `json:"newMtime"`
	Accessible   bool                     `json:"accessible"`
	ErrorMessage string                   `json:"errorMessage,omitempty"`
	IsNewFolder  bool                     `json:"isNewFolder"`
	FileChanges  []FileChange             `json:"fileChanges"`

	AddedCount    int `json:"addedCount"`
	DeletedCount  int `json:"deletedCount"`
	ModifiedCount int `json:"modifiedCount"`
}

// TotalChanges is the number of differing files.
func (c FolderChange) TotalChanges() int {
	return c.AddedCount + c.DeletedCount + c.ModifiedCount
}

// Summary describes the change in a few characters.
func (c FolderChange) Summary() string {
	if c.IsNewFolder {
		return "new folder (not indexed)"
	}

	var parts []string
	if c.AddedCount > 0 {
		parts = append(parts, fmt.Sprintf("+%d", c.AddedCount))
	}
	if c.DeletedCount > 0 {
		parts = append(parts, fmt.Sprintf("-%d", c.DeletedCount))
	}
	if c.ModifiedCount > 0 {
		parts = append(parts, fmt.Sprintf("~%d", c.ModifiedCount))
	}
	if len(parts) == 0 {
		return "changed"
	}
	return strings.Join(parts, ", ")
}
