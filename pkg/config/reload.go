package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/umbralabs/umbra/pkg/logger"
)

// ReloadManager watches the configuration file for rewrites performed
// by UI-driven settings flows and surfaces the freshly parsed document
// to subscribers. The supervisor itself never consumes reloads; it
// reads the configuration exactly once at Start.
type ReloadManager struct {
	configPath     string
	logger         logger.Logger
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isWatching     bool
}

// ReloadCallback is called when the configuration document changes
type ReloadCallback func(*RuntimeConfig, error)

// NewReloadManager creates a new configuration reload manager
func NewReloadManager(configPath string, log logger.Logger) *ReloadManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &ReloadManager{
		configPath:     configPath,
		logger:         log.WithSubsystem("config-reload"),
		debouncePeriod: 500 * time.Millisecond,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// AddCallback adds a reload callback
func (rm *ReloadManager) AddCallback(callback ReloadCallback) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.callbacks = append(rm.callbacks, callback)
}

// StartWatching begins watching the configuration file for changes
func (rm *ReloadManager) StartWatching() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isWatching {
		return fmt.Errorf("already watching configuration file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	rm.watcher = watcher

	// Watch the directory, not the file: editors and settings flows
	// replace the file via rename, which drops a direct file watch.
	configDir := filepath.Dir(rm.configPath)
	if err := rm.watcher.Add(configDir); err != nil {
		rm.watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	rm.isWatching = true

	go rm.watchLoop()

	rm.logger.Debug("Started watching configuration file",
		logger.WithField("path", rm.configPath))

	return nil
}

// StopWatching stops watching the configuration file
func (rm *ReloadManager) StopWatching() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.isWatching {
		return nil
	}

	rm.cancel()

	if rm.debounceTimer != nil {
		rm.debounceTimer.Stop()
		rm.debounceTimer = nil
	}

	if rm.watcher != nil {
		if err := rm.watcher.Close(); err != nil {
			rm.logger.Warn("Error closing file watcher", logger.WithError(err))
		}
		rm.watcher = nil
	}

	rm.isWatching = false
	return nil
}

// IsWatching returns whether the manager is currently watching
func (rm *ReloadManager) IsWatching() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.isWatching
}

// TriggerReload manually re-reads the document and notifies callbacks
func (rm *ReloadManager) TriggerReload() {
	rm.handleConfigChange()
}

func (rm *ReloadManager) watchLoop() {
	defer func() {
		if r := recover(); r != nil {
			rm.logger.Error("Configuration watcher panic recovered",
				logger.WithField("panic", r))
		}
	}()

	for {
		select {
		case <-rm.ctx.Done():
			return

		case event, ok := <-rm.watcher.Events:
			if !ok {
				return
			}

			if !rm.isConfigFileEvent(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			rm.debounceReload()

		case err, ok := <-rm.watcher.Errors:
			if !ok {
				return
			}

			rm.logger.Error("Configuration file watcher error", logger.WithError(err))
			rm.notifyCallbacks(nil, err)
		}
	}
}

func (rm *ReloadManager) isConfigFileEvent(eventPath string) bool {
	configFileName := filepath.Base(rm.configPath)
	eventFileName := filepath.Base(eventPath)

	if eventFileName == configFileName {
		return true
	}

	// Settings flows write through a temp file next to the document
	return strings.HasPrefix(eventFileName, configFileName)
}

func (rm *ReloadManager) debounceReload() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.debounceTimer != nil {
		rm.debounceTimer.Stop()
	}

	rm.debounceTimer = time.AfterFunc(rm.debouncePeriod, rm.handleConfigChange)
}

func (rm *ReloadManager) handleConfigChange() {
	if _, err := os.Stat(rm.configPath); err != nil {
		rm.logger.Debug("Configuration file missing after change event",
			logger.WithError(err))
		return
	}

	cfg, err := Load(rm.configPath)
	if err != nil {
		rm.logger.Warn("Configuration reload failed", logger.WithError(err))
		rm.notifyCallbacks(nil, err)
		return
	}

	rm.logger.Debug("Configuration reloaded")
	rm.notifyCallbacks(cfg, nil)
}

func (rm *ReloadManager) notifyCallbacks(cfg *RuntimeConfig, err error) {
	rm.mu.RLock()
	callbacks := make([]ReloadCallback, len(rm.callbacks))
	copy(callbacks, rm.callbacks)
	rm.mu.RUnlock()

	for _, cb := range callbacks {
		cb(cfg, err)
	}
}
