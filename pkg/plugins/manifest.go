// Package plugins discovers, loads and unloads third-party extensions
// from the plugin directory.
package plugins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest describes one installed plugin
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Author      string `json:"author"`

	// Main is the entry script, relative to the plugin directory
	Main string `json:"main"`

	// ApplicableVersion pins the plugin to one host game version.
	// Empty means the plugin runs against any version.
	ApplicableVersion string `json:"applicableVersion"`

	path string
}

// LoadManifest reads and validates manifest.json from a plugin
// directory.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugins: failed to read manifest in %s: %w", dir, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("plugins: malformed manifest in %s: %w", dir, err)
	}
	m.path = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the required manifest fields
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugins: manifest in %s has no name", m.path)
	}
	if m.Main == "" {
		m.Main = "init.lua"
	}
	return nil
}

// Dir returns the plugin's directory
func (m *Manifest) Dir() string {
	return m.path
}

// MainPath returns the absolute path of the entry script
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}
