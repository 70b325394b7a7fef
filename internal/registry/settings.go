package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	settingsKey = "settings"

	// DefaultPollIntervalMinutes applies when nothing else is configured.
	DefaultPollIntervalMinutes = 15
)

// Settings are the global watcher toggles.
type Settings struct {
	// Enabled is the master switch for watching and startup reconciliation.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// SilentUpdate logs automatic rescans at debug level instead of info.
	SilentUpdate bool `json:"silentUpdate" yaml:"silentUpdate"`
	// DefaultPollIntervalMinutes is used for folders added without an interval.
	DefaultPollIntervalMinutes int `json:"defaultPollIntervalMinutes" yaml:"defaultPollIntervalMinutes"`
}

// DefaultSettings returns the settings of a fresh installation.
func DefaultSettings() Settings {
	return Settings{DefaultPollIntervalMinutes: DefaultPollIntervalMinutes}
}

func (s *Settings) normalize() {
	if s.DefaultPollIntervalMinutes <= 0 {
		s.DefaultPollIntervalMinutes = DefaultPollIntervalMinutes
	}
}

// Settings returns the current settings, loading them once from the store.
func (r *Registry) Settings(ctx context.Context) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings != nil {
		return *r.settings, nil
	}

	s, err := r.loadSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	r.settings = &s
	return s, nil
}

// SetSettings persists s and returns the stored value.
func (r *Registry) SetSettings(ctx context.Context, s Settings) (Settings, error) {
	s.normalize()

	raw, err := json.Marshal(s)
	if err != nil {
		return Settings{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.SetConfigValue(ctx, settingsKey, string(raw)); err != nil {
		return Settings{}, fmt.Errorf("save watcher settings: %w", err)
	}
	r.settings = &s
	log.Info("Watcher settings: enabled=%v silentUpdate=%v defaultPollInterval=%dm",
		s.Enabled, s.SilentUpdate, s.DefaultPollIntervalMinutes)
	return s, nil
}

// Enabled reports the master switch. Errors read as disabled.
func (r *Registry) Enabled(ctx context.Context) bool {
	s, err := r.Settings(ctx)
	if err != nil {
		log.Error("Failed to read watcher settings: %v", err)
		return false
	}
	return s.Enabled
}

// loadSettings reads the settings blob, falling back to the legacy
// one-key-per-toggle string values written by older versions.
func (r *Registry) loadSettings(ctx context.Context) (Settings, error) {
	s := DefaultSettings()

	raw, ok, err := r.store.ConfigValue(ctx, settingsKey)
	if err != nil {
		return s, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return DefaultSettings(), fmt.Errorf("decode watcher settings: %w", err)
		}
		s.normalize()
		return s, nil
	}

	if v, ok, err := r.store.ConfigValue(ctx, "feature_enabled"); err != nil {
		return s, err
	} else if ok {
		s.Enabled = v == "true"
	}
	if v, ok, err := r.store.ConfigValue(ctx, "silent_update"); err != nil {
		return s, err
	} else if ok {
		s.SilentUpdate = v == "true"
	}
	if v, ok, err := r.store.ConfigValue(ctx, "default_poll_interval"); err != nil {
		return s, err
	} else if ok {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			s.DefaultPollIntervalMinutes = n
		}
	}
	s.normalize()
	return s, nil
}
