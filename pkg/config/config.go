// Package config handles the persisted runtime configuration document
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/umbralabs/umbra/pkg/types"
)

// RuntimeConfig is the persisted key-value settings document. It is
// loaded once at the beginning of Start and owned exclusively by the
// supervisor; UI-driven settings flows rewrite the file on disk and the
// ReloadManager surfaces those changes to subscribers.
type RuntimeConfig struct {
	// LanguageOverride, when non-empty, wins over the host UI culture
	LanguageOverride types.LanguageTag `json:"languageOverride,omitempty"`

	// LogLevel is the session logging verbosity
	LogLevel types.LogLevel `json:"logLevel,omitempty"`

	// NotificationsEnabled controls desktop session notifications
	NotificationsEnabled bool `json:"notificationsEnabled"`

	// DevPluginPaths are extra directories scanned for local plugins
	DevPluginPaths []string `json:"devPluginPaths,omitempty"`

	// DisabledPlugins are catalog entries skipped at load time
	DisabledPlugins []string `json:"disabledPlugins,omitempty"`

	// LastSeenGameVersion is recorded after stale-plugin cleanup so
	// the next session can tell whether the host was updated
	LastSeenGameVersion string `json:"lastSeenGameVersion,omitempty"`
}

// Defaults returns a configuration with sane defaults for a first run
func Defaults() *RuntimeConfig {
	return &RuntimeConfig{
		LogLevel:             types.LogLevelInfo,
		NotificationsEnabled: true,
	}
}

// Load reads the configuration document from path. JSON is tried first,
// then YAML. A missing file yields defaults rather than an error; a
// present but malformed file is an error and is fatal to startup.
func Load(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()

	if err := json.Unmarshal(data, cfg); err == nil {
		return cfg, nil
	}

	// YAML fallback: round-trip through JSON so both formats share
	// the same struct tags.
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			if err := json.Unmarshal(jsonData, cfg); err == nil {
				return cfg, nil
			}
		}
	}

	return nil, fmt.Errorf("failed to parse config %s as JSON or YAML", path)
}

// Save writes the configuration as JSON, creating parent directories as
// needed. Writes go through a temp file plus rename so a crashed writer
// never leaves a truncated document.
func Save(path string, cfg *RuntimeConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}

	return nil
}
