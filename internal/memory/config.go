package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"file-recorder/internal/logging"
	"file-recorder/internal/metrics"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest covers the SQLite page cache, mmap and cgo allocations.
const DefaultMemoryRatio = 0.80

// Limit describes how GOMEMLIMIT was configured.
type Limit struct {
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source string
	// ContainerLimit is MEMORY_LIMIT in bytes, 0 when unset.
	ContainerLimit int64
	// GoMemLimit is the effective GOMEMLIMIT in bytes, 0 when unset.
	GoMemLimit int64
	// Ratio is the share of ContainerLimit used, 0 when not derived.
	Ratio float64
}

// Configured reports whether a memory limit is in effect.
func (l Limit) Configured() bool {
	return l.GoMemLimit > 0
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit. Call it
// before the database is opened.
//
// Environment variables:
//   - GOMEMLIMIT: honoured as is when set
//   - MEMORY_LIMIT: container limit in bytes, e.g. from the Kubernetes Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the heap (default: 0.80)
func ConfigureFromEnv() Limit {
	l := configure(os.Getenv, debug.SetMemoryLimit)
	metrics.GoMemLimit.Set(float64(l.GoMemLimit))
	return l
}

// configure computes the limit from getenv and applies it with setLimit,
// which follows the debug.SetMemoryLimit contract.
func configure(getenv func(string) string, setLimit func(int64) int64) Limit {
	if env := getenv("GOMEMLIMIT"); env != "" {
		l := Limit{Source: "GOMEMLIMIT"}
		if current := setLimit(-1); current > 0 && current < math.MaxInt64 {
			l.GoMemLimit = current
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return l
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT left unconfigured")
		return Limit{Source: "none"}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return Limit{Source: "none"}
	}

	ratio := DefaultMemoryRatio
	if rawRatio := getenv("MEMORY_RATIO"); rawRatio != "" {
		parsed, err := strconv.ParseFloat(rawRatio, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", rawRatio, DefaultMemoryRatio)
		} else {
			ratio = parsed
		}
	}

	goMemLimit := int64(float64(containerLimit) * ratio)
	setLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(containerLimit))

	return Limit{
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
