package plugins

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/umbralabs/umbra/pkg/logger"
)

// staleMarker is dropped into a plugin directory by the installer when
// the plugin is scheduled for removal.
const staleMarker = ".stale"

// Catalog is the installed-plugin repository: it scans the primary
// plugin directory plus the default/fallback one and removes leftovers
// from previous host versions. A plugin present in both directories is
// served from the primary.
type Catalog struct {
	logger     logger.Logger
	dirs       []string
	versionTag string
}

// NewCatalog binds the catalog to the primary and default plugin
// directories and the running host's version tag. An empty or
// duplicate default directory collapses to primary-only.
func NewCatalog(pluginDir, defaultPluginDir, versionTag string, log logger.Logger) *Catalog {
	dirs := []string{pluginDir}
	if defaultPluginDir != "" && defaultPluginDir != pluginDir {
		dirs = append(dirs, defaultPluginDir)
	}
	return &Catalog{
		logger:     log.WithSubsystem("plugin-catalog"),
		dirs:       dirs,
		versionTag: versionTag,
	}
}

// Scan returns the manifest of every installed plugin across both
// directories, primary first. A directory with a broken manifest is
// logged and skipped rather than failing the scan.
func (c *Catalog) Scan() ([]*Manifest, error) {
	var manifests []*Manifest
	seen := make(map[string]bool)

	for _, base := range c.dirs {
		entries, err := os.ReadDir(base)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("plugins: failed to scan %s: %w", base, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			m, err := LoadManifest(filepath.Join(base, entry.Name()))
			if err != nil {
				c.logger.Warn("Skipping plugin with broken manifest",
					logger.WithField("dir", entry.Name()),
					logger.WithError(err))
				continue
			}
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			manifests = append(manifests, m)
		}
	}
	return manifests, nil
}

// CleanupStalePlugins removes plugin directories that are marked for
// removal or pinned to a different host version, in both the primary
// and default directories. Returns how many directories were removed.
func (c *Catalog) CleanupStalePlugins() (int, error) {
	removed := 0
	for _, base := range c.dirs {
		entries, err := os.ReadDir(base)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("plugins: failed to scan %s: %w", base, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(base, entry.Name())
			if !c.isStale(dir) {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				c.logger.Warn("Failed to remove stale plugin",
					logger.WithField("dir", entry.Name()),
					logger.WithError(err))
				continue
			}
			removed++
			c.logger.Info("Removed stale plugin",
				logger.WithField("dir", entry.Name()))
		}
	}
	return removed, nil
}

func (c *Catalog) isStale(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, staleMarker)); err == nil {
		return true
	}
	m, err := LoadManifest(dir)
	if err != nil {
		// broken manifests are skipped, not removed
		return false
	}
	return m.ApplicableVersion != "" && m.ApplicableVersion != c.versionTag
}
