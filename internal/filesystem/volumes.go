package filesystem

import (
	"sort"
	"strings"
	"sync"
)

// Volume kinds used as metric labels and for watch strategy selection.
const (
	VolumeLocal   = "local"
	VolumeNetwork = "network"
)

// VolumeResolver decides whether a path lives on a network share.
//
// UNC-shaped paths (\\server\share or //server/share) are always network.
// Additional mount points (for example an NFS or SMB mount under /mnt) can
// be registered so that paths below them are treated as network too.
// Drive-letter paths and everything else are local.
type VolumeResolver struct {
	// prefixes are lowercased, slash-normalized and sorted longest first
	prefixes []string
}

// NewVolumeResolver creates a resolver that treats the given mount points as
// network volumes.
func NewVolumeResolver(networkMounts []string) *VolumeResolver {
	prefixes := make([]string, 0, len(networkMounts))
	for _, m := range networkMounts {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		p := strings.TrimRight(normalizeSlashes(m), "/")
		if p == "" {
			p = "/"
		}
		prefixes = append(prefixes, strings.ToLower(p))
	}

	sort.Slice(prefixes, func(i, j int) bool {
		return len(prefixes[i]) > len(prefixes[j])
	})

	return &VolumeResolver{prefixes: prefixes}
}

// Resolve returns VolumeNetwork or VolumeLocal for path.
func (vr *VolumeResolver) Resolve(path string) string {
	if IsUNCPath(path) {
		return VolumeNetwork
	}
	if vr == nil {
		return VolumeLocal
	}

	p := strings.ToLower(normalizeSlashes(path))
	for _, prefix := range vr.prefixes {
		if p == prefix || prefix == "/" || strings.HasPrefix(p, prefix+"/") {
			return VolumeNetwork
		}
	}
	return VolumeLocal
}

var (
	resolverMu      sync.RWMutex
	defaultResolver *VolumeResolver
)

// SetDefaultVolumeResolver sets the package-level volume resolver.
// Call this once at startup after loading configuration.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	resolverMu.Lock()
	defaultResolver = vr
	resolverMu.Unlock()
}

// IsUNCPath reports whether path has the shape of a network share path.
func IsUNCPath(path string) bool {
	return strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//")
}

// IsNetworkPath reports whether path should be polled rather than watched.
func IsNetworkPath(path string) bool {
	return VolumeOf(path) == VolumeNetwork
}

// VolumeOf resolves path with the package-level resolver.
func VolumeOf(path string) string {
	resolverMu.RLock()
	vr := defaultResolver
	resolverMu.RUnlock()
	return vr.Resolve(path)
}

func normalizeSlashes(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
