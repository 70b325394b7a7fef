package watcher

import "fmt"

// Status kinds.
const (
	StatusNormal   = "normal"
	StatusWarning  = "warning"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// Status is the aggregate watcher state.
type Status struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusInfo is a detailed snapshot of the manager.
type StatusInfo struct {
	Running      bool     `json:"running"`
	Enabled      bool     `json:"enabled"`
	LocalPaths   []string `json:"localPaths"`
	NetworkPaths []string `json:"networkPaths"`
	ErrorPaths   []string `json:"errorPaths"`
	FailedPaths  []string `json:"failedPaths"`
	Status       Status   `json:"status"`
}

// deriveStatus computes the aggregate status. Backoff outranks failed local
// watches.
func deriveStatus(enabled, running bool, local, network, errorCount, failedCount int) Status {
	if !enabled {
		return Status{Kind: StatusDisabled, Message: "Folder watching is disabled"}
	}
	if !running {
		return Status{Kind: StatusDisabled, Message: "Folder watching is stopped"}
	}

	total := local + network
	switch {
	case errorCount > 0:
		return Status{
			Kind:    StatusError,
			Message: fmt.Sprintf("Watching %d/%d folders (%d retrying)", total-errorCount, total, errorCount),
		}
	case failedCount > 0:
		return Status{
			Kind:    StatusWarning,
			Message: fmt.Sprintf("Watching %d folders (%d could not be watched)", total, failedCount),
		}
	case total > 0:
		return Status{Kind: StatusNormal, Message: fmt.Sprintf("Watching %d folders", total)}
	default:
		return Status{Kind: StatusNormal, Message: "Watching: no folders"}
	}
}
