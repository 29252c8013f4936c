// Package config loads Recall's per-project settings. Settings live next to
// the derived knowledge artifacts in <projectRoot>/.codebase-memory/ and
// overlay compiled-in defaults; a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the settings file name inside the project memory folder.
const FileName = "config.yaml"

// Settings holds the tunable parameters of the knowledge layer.
type Settings struct {
	// Lock acquisition window for per-directory fact log writes, in
	// milliseconds.
	LockTimeoutMS int `yaml:"lock_timeout_ms"`

	// Poll interval while waiting for a directory lock, in milliseconds.
	LockRetryMS int `yaml:"lock_retry_ms"`

	// Maximum facts handed to the context-injection side per lookup.
	MaxContextFacts int `yaml:"max_context_facts"`

	// Quiet period after the last fact log change before the watcher
	// triggers a rebuild, in milliseconds.
	WatchDebounceMS int `yaml:"watch_debounce_ms"`
}

// Default returns the compiled-in settings.
func Default() *Settings {
	return &Settings{
		LockTimeoutMS:   5000,
		LockRetryMS:     50,
		MaxContextFacts: 10,
		WatchDebounceMS: 500,
	}
}

// Load returns the settings for a project root: defaults overlaid with the
// project's config file when one exists. A malformed file is an error; a
// missing one is not.
func Load(projectRoot string) (*Settings, error) {
	settings := Default()

	path := filepath.Join(projectRoot, ".codebase-memory", FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	settings.applyFloors()
	return settings, nil
}

// applyFloors backfills zero or negative values with defaults so a partial
// config file never disables locking or retrieval.
func (s *Settings) applyFloors() {
	d := Default()
	if s.LockTimeoutMS <= 0 {
		s.LockTimeoutMS = d.LockTimeoutMS
	}
	if s.LockRetryMS <= 0 {
		s.LockRetryMS = d.LockRetryMS
	}
	if s.MaxContextFacts <= 0 {
		s.MaxContextFacts = d.MaxContextFacts
	}
	if s.WatchDebounceMS <= 0 {
		s.WatchDebounceMS = d.WatchDebounceMS
	}
}

// LockTimeout returns the lock acquisition window as a duration.
func (s *Settings) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutMS) * time.Millisecond
}

// LockRetryDelay returns the lock poll interval as a duration.
func (s *Settings) LockRetryDelay() time.Duration {
	return time.Duration(s.LockRetryMS) * time.Millisecond
}

// WatchDebounce returns the watcher quiet period as a duration.
func (s *Settings) WatchDebounce() time.Duration {
	return time.Duration(s.WatchDebounceMS) * time.Millisecond
}
