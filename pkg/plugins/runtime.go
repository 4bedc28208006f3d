package plugins

import (
	"context"
	"sort"
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
)

// loadConcurrency caps how many plugin entry scripts run at once
const loadConcurrency = 4

// Runtime loads and owns the third-party plugin instances. A plugin
// that fails to load is logged and skipped; it never fails the
// session.
type Runtime struct {
	logger   logger.Logger
	catalog  *Catalog
	api      HostAPI
	disabled map[string]bool

	mu       sync.Mutex
	loaded   []*LoadedPlugin
	watcher  *DevWatcher
	pending  []string
	disposed bool
}

// NewRuntime constructs the runtime over an already-cleaned catalog.
// Plugins named in disabled stay in the catalog but are never loaded.
func NewRuntime(catalog *Catalog, api HostAPI, disabled []string, log logger.Logger) *Runtime {
	set := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		set[name] = true
	}
	return &Runtime{
		logger:   log.WithSubsystem("plugin-runtime"),
		catalog:  catalog,
		api:      api,
		disabled: set,
	}
}

// LoadAll scans the catalog and loads every installed plugin.
// Individual failures are contained and logged. Returns how many
// plugins loaded.
func (r *Runtime) LoadAll(ctx context.Context) (int, error) {
	manifests, err := r.catalog.Scan()
	if err != nil {
		return 0, err
	}

	sg, _ := NewSafeGroup(ctx, r.logger)
	sg.SetLimit(loadConcurrency)

	for _, m := range manifests {
		m := m
		if r.disabled[m.Name] {
			r.logger.Info("Plugin disabled by configuration",
				logger.WithField("plugin", m.Name))
			continue
		}
		sg.Go(func() error {
			p, err := loadPlugin(m, r.api, r.logger)
			if err != nil {
				r.logger.Warn("Plugin failed to load",
					logger.WithField("plugin", m.Name),
					logger.WithError(err))
				return nil
			}
			r.mu.Lock()
			r.loaded = append(r.loaded, p)
			r.mu.Unlock()
			r.logger.Info("Plugin loaded",
				logger.WithField("plugin", m.Name),
				logger.WithField("version", m.Version))
			return nil
		})
	}

	if err := sg.Wait(); err != nil {
		// only panics surface here; the session carries on
		r.logger.Error("Plugin load pool error", logger.WithError(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loaded), nil
}

// LoadedPlugins returns the names of all running plugins, sorted
func (r *Runtime) LoadedPlugins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.loaded))
	for _, p := range r.loaded {
		names = append(names, p.Manifest.Name)
	}
	sort.Strings(names)
	return names
}

// WatchDevPaths begins watching developer plugin directories. Changes
// are recorded as pending catalog refreshes for the next session;
// nothing is loaded or reloaded mid-session. Empty paths are skipped;
// no paths at all is a no-op.
func (r *Runtime) WatchDevPaths(paths []string) error {
	var dirs []string
	for _, p := range paths {
		if p != "" {
			dirs = append(dirs, p)
		}
	}
	if len(dirs) == 0 {
		return nil
	}

	w, err := NewDevWatcher(dirs, r.recordPendingRefresh, r.logger)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.disposed || r.watcher != nil {
		r.mu.Unlock()
		w.Stop()
		return nil
	}
	r.watcher = w
	r.mu.Unlock()

	w.Start()
	r.logger.Info("Watching dev plugin paths",
		logger.WithField("count", len(dirs)))
	return nil
}

func (r *Runtime) recordPendingRefresh(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, dir)
}

// PendingRefreshes returns the dev paths that changed this session
func (r *Runtime) PendingRefreshes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.pending))
	copy(out, r.pending)
	return out
}

// UnloadAll unloads every plugin in reverse load order. Each unload is
// independent; one failing plugin does not stop the rest.
func (r *Runtime) UnloadAll() {
	r.mu.Lock()
	loaded := r.loaded
	r.loaded = nil
	r.mu.Unlock()

	for i := len(loaded) - 1; i >= 0; i-- {
		loaded[i].Unload()
		r.logger.Info("Plugin unloaded",
			logger.WithField("plugin", loaded[i].Manifest.Name))
	}
}

// Dispose stops the dev watcher, unloads everything and marks the
// runtime dead. Idempotent.
func (r *Runtime) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	watcher := r.watcher
	r.watcher = nil
	r.mu.Unlock()

	if watcher != nil {
		watcher.Stop()
	}
	r.UnloadAll()
	r.logger.Debug("Plugin runtime disposed")
}
