package watcher

import (
	"time"

	"file-recorder/internal/database"
)

// EventType is the kind of a filesystem event.
type EventType string

const (
	EventCreated  EventType = "created"
	EventDeleted  EventType = "deleted"
	EventModified EventType = "modified"
	EventMoved    EventType = "moved"
)

// FileEvent is one filesystem event below a watched folder.
type FileEvent struct {
	Type     EventType `json:"type"`
	Path     string    `json:"path"`
	DestPath string    `json:"destPath,omitempty"`
	IsDir    bool      `json:"isDir"`
}

// Kinds of manager notifications.
const (
	NotifyStatus             = "status"
	NotifyChanges            = "changes"
	NotifyConnectionError    = "connection_error"
	NotifyConnectionRestored = "connection_restored"
)

// Notification is published by the Manager to its listeners.
type Notification struct {
	Kind    string      `json:"kind"`
	Time    time.Time   `json:"time"`
	Path    string      `json:"path,omitempty"`
	Events  []FileEvent `json:"events,omitempty"`
	Status  *Status     `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`
}

func keyOf(path string) string {
	return database.PathKey(path)
}
