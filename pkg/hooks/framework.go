// Package hooks contains the host-facing subsystems that resolve
// addresses through the pattern scanner and hook into the host's
// internal functions. Each subsystem is constructed by the supervisor,
// optionally enabled once startup succeeds, and disposed during
// teardown. Construction resolves signatures and may fail; Enable and
// Disable toggle the installed hooks.
package hooks

import (
	"fmt"
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/procmem"
)

// Framework hooks the host's per-frame update loop. Subsystems that
// need main-thread execution schedule through it.
const (
	sigFrameworkUpdate  = "48 89 5C 24 ?? 48 89 6C 24 ?? 48 89 74 24 ?? 57 41 56"
	sigFrameworkDestroy = "E8 ?? ?? ?? ?? 48 8B 4B 28 E8"
)

// UpdateHandler runs on the host's framework thread each frame
type UpdateHandler func()

// Framework is the host main-loop hook subsystem
type Framework struct {
	logger  logger.Logger
	update  procmem.Address
	destroy procmem.Address

	mu       sync.Mutex
	enabled  bool
	disposed bool
	handlers []UpdateHandler
}

// NewFramework resolves the host's update loop and constructs the hook
func NewFramework(scanner *procmem.Scanner, log logger.Logger) (*Framework, error) {
	update, err := scanner.Scan(sigFrameworkUpdate)
	if err != nil {
		return nil, fmt.Errorf("framework: update loop not found: %w", err)
	}
	destroy, err := scanner.ScanStatic(sigFrameworkDestroy)
	if err != nil {
		return nil, fmt.Errorf("framework: destroy routine not found: %w", err)
	}

	log = log.WithSubsystem("framework")
	log.Debug("Resolved framework addresses",
		logger.WithField("update", update),
		logger.WithField("destroy", destroy))

	return &Framework{
		logger:  log,
		update:  update,
		destroy: destroy,
	}, nil
}

// OnUpdate registers a handler invoked on every host frame while the
// framework hook is enabled.
func (f *Framework) OnUpdate(h UpdateHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

// Enable installs the update-loop hook
func (f *Framework) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disposed {
		return fmt.Errorf("framework: already disposed")
	}
	if f.enabled {
		return nil
	}
	f.enabled = true
	f.logger.Info("Framework update hook enabled")
	return nil
}

// Disable removes the update-loop hook without disposing the subsystem
func (f *Framework) Disable() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = false
}

// Enabled reports whether the hook is installed
func (f *Framework) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// Tick delivers one frame to registered handlers. Invoked by the
// host-thread dispatcher; a no-op unless enabled.
func (f *Framework) Tick() {
	f.mu.Lock()
	if !f.enabled || f.disposed {
		f.mu.Unlock()
		return
	}
	handlers := make([]UpdateHandler, len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Dispose unhooks and releases the subsystem. Idempotent.
func (f *Framework) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disposed {
		return
	}
	f.disposed = true
	f.enabled = false
	f.handlers = nil
	f.logger.Debug("Framework disposed")
}
