package plugins

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/umbralabs/umbra/pkg/logger"
)

// devDebounce coalesces editor write bursts into one reload event
const devDebounce = 500 * time.Millisecond

// DevReloadFunc is notified with the dev plugin directory that changed
type DevReloadFunc func(dir string)

// DevWatcher watches developer plugin directories and fires a reload
// callback when their contents change. Only used for plugins loaded
// from dev paths, never for the installed catalog.
type DevWatcher struct {
	logger   logger.Logger
	watcher  *fsnotify.Watcher
	onReload DevReloadFunc

	mu       sync.Mutex
	watching bool
	timers   map[string]*time.Timer
	done     chan struct{}
}

// NewDevWatcher creates a watcher over the given dev plugin paths
func NewDevWatcher(paths []string, onReload DevReloadFunc, log logger.Logger) (*DevWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("plugins: failed to create dev watcher: %w", err)
	}

	for _, path := range paths {
		if err := w.Add(path); err != nil {
			w.Close()
			return nil, fmt.Errorf("plugins: failed to watch %s: %w", path, err)
		}
	}

	return &DevWatcher{
		logger:   log.WithSubsystem("dev-watcher"),
		watcher:  w,
		onReload: onReload,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Start begins delivering reload events
func (dw *DevWatcher) Start() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.watching {
		return
	}
	dw.watching = true
	go dw.watchLoop()
}

func (dw *DevWatcher) watchLoop() {
	defer func() {
		if r := recover(); r != nil {
			dw.logger.Error("Dev watcher loop panicked",
				logger.WithField("panic", r))
		}
	}()

	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				dw.scheduleReload(event.Name)
			}
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.logger.Warn("Dev watcher error", logger.WithError(err))
		case <-dw.done:
			return
		}
	}
}

// scheduleReload debounces per changed path
func (dw *DevWatcher) scheduleReload(path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if timer, ok := dw.timers[path]; ok {
		timer.Stop()
	}
	dw.timers[path] = time.AfterFunc(devDebounce, func() {
		dw.logger.Info("Dev plugin changed", logger.WithField("path", path))
		dw.onReload(path)
	})
}

// Stop shuts the watcher down. Idempotent.
func (dw *DevWatcher) Stop() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.watching {
		return
	}
	dw.watching = false
	close(dw.done)
	for _, timer := range dw.timers {
		timer.Stop()
	}
	dw.watcher.Close()
}
