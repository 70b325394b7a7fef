package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// Reasons returned by ClassifyError.
const (
	ReasonPermission = "permission denied"
	ReasonNotFound   = "not found"
	ReasonIO         = "network or I/O error"
)

// ClassifyError maps a filesystem error to a short human readable reason.
// It returns "" for a nil error.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermission
	case errors.Is(err, fs.ErrNotExist):
		return ReasonNotFound
	default:
		return ReasonIO
	}
}

// IsTransientError reports whether err is worth retrying: stale NFS handles,
// interrupted calls, timeouts and unreachable hosts.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ESTALE, syscall.EINTR, syscall.EAGAIN, syscall.ETIMEDOUT,
			syscall.EHOSTDOWN, syscall.EHOSTUNREACH, syscall.ENETUNREACH,
			syscall.ECONNRESET, syscall.ECONNABORTED:
			return true
		}
		return false
	}

	return os.IsTimeout(err)
}
