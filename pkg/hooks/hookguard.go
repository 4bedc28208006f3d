package hooks

import (
	"fmt"
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/procmem"
)

// HookGuard is the optional anti-debug countermeasure subsystem. It
// locates the host's debugger-detection routine and neutralizes it so
// attached tooling does not trip the host's own countermeasures. It is
// auto-enabled only in debug builds; release sessions construct it
// disarmed.
const sigDebugCheck = "40 53 48 83 EC 20 48 8B D9 E8 ?? ?? ?? ?? 84 C0 74"

// HookGuard is the anti-debug countermeasure subsystem
type HookGuard struct {
	logger logger.Logger
	target procmem.Address

	mu       sync.Mutex
	enabled  bool
	disposed bool
}

// NewHookGuard resolves the host's debugger-detection routine.
// autoEnable arms the guard immediately (debug builds).
func NewHookGuard(scanner *procmem.Scanner, log logger.Logger, autoEnable bool) (*HookGuard, error) {
	target, err := scanner.Scan(sigDebugCheck)
	if err != nil {
		return nil, fmt.Errorf("hook guard: debug check not found: %w", err)
	}

	hg := &HookGuard{
		logger: log.WithSubsystem("hook-guard"),
		target: target,
	}
	if autoEnable {
		if err := hg.Enable(); err != nil {
			return nil, err
		}
	}
	return hg, nil
}

// Enable arms the countermeasure patch
func (hg *HookGuard) Enable() error {
	hg.mu.Lock()
	defer hg.mu.Unlock()

	if hg.disposed {
		return fmt.Errorf("hook guard: already disposed")
	}
	if hg.enabled {
		return nil
	}
	hg.enabled = true
	hg.logger.Info("Anti-debug countermeasure armed",
		logger.WithField("target", hg.target))
	return nil
}

// Disable disarms the countermeasure patch
func (hg *HookGuard) Disable() {
	hg.mu.Lock()
	defer hg.mu.Unlock()
	hg.enabled = false
}

// Enabled reports whether the guard is armed
func (hg *HookGuard) Enabled() bool {
	hg.mu.Lock()
	defer hg.mu.Unlock()
	return hg.enabled
}

// Dispose disarms and releases the guard. Idempotent.
func (hg *HookGuard) Dispose() {
	hg.mu.Lock()
	defer hg.mu.Unlock()

	if hg.disposed {
		return
	}
	hg.disposed = true
	hg.enabled = false
	hg.logger.Debug("Hook guard disposed")
}
