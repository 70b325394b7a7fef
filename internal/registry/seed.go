package registry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML file that pre-registers monitored folders.
type Seed struct {
	Enabled                    *bool        `yaml:"enabled"`
	SilentUpdate               *bool        `yaml:"silentUpdate"`
	DefaultPollIntervalMinutes *int         `yaml:"defaultPollIntervalMinutes"`
	Folders                    []SeedFolder `yaml:"folders"`
}

// SeedFolder is one folder entry of a Seed.
type SeedFolder struct {
	Path                string `yaml:"path"`
	PollIntervalMinutes int    `yaml:"pollIntervalMinutes"`
}

// LoadSeed parses the seed file at path.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed merges seed into the registry. Toggles present in the seed
// override stored settings. Folders already registered or covered by a
// monitored ancestor are skipped; monitored descendants are merged into the
// seeded folder. It returns the number of folders added.
func (r *Registry) ApplySeed(ctx context.Context, seed *Seed) (int, error) {
	if seed == nil {
		return 0, nil
	}

	if seed.Enabled != nil || seed.SilentUpdate != nil || seed.DefaultPollIntervalMinutes != nil {
		s, err := r.Settings(ctx)
		if err != nil {
			return 0, err
		}
		if seed.Enabled != nil {
			s.Enabled = *seed.Enabled
		}
		if seed.SilentUpdate != nil {
			s.SilentUpdate = *seed.SilentUpdate
		}
		if seed.DefaultPollIntervalMinutes != nil {
			s.DefaultPollIntervalMinutes = *seed.DefaultPollIntervalMinutes
		}
		if _, err := r.SetSettings(ctx, s); err != nil {
			return 0, err
		}
	}

	added := 0
	for _, f := range seed.Folders {
		if f.Path == "" {
			continue
		}

		exists, err := r.Exists(ctx, f.Path)
		if err != nil {
			return added, err
		}
		if exists {
			continue
		}

		_, _, err = r.AddResolved(ctx, f.Path, f.PollIntervalMinutes, true)
		switch {
		case errors.Is(err, ErrRedundant):
			log.Info("Seed folder %s skipped: %v", f.Path, err)
			continue
		case err != nil:
			return added, err
		}
		added++
	}

	return added, nil
}
