// Package notifier surfaces session lifecycle events as desktop
// notifications.
package notifier

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/umbralabs/umbra/pkg/logger"
)

const notifyTitle = "Umbra"

// SessionNotifier posts desktop notifications for session milestones.
// Construction with enabled=false (the NoTelemetry toggle) yields a
// silent notifier; callers never need to branch. The persisted
// configuration can further silence it via SetEnabled once loaded.
type SessionNotifier struct {
	mu      sync.Mutex
	enabled bool
	logger  logger.Logger

	// send is swappable for tests
	send func(title, message string) error
}

// New creates a session notifier
func New(enabled bool, log logger.Logger) *SessionNotifier {
	return &SessionNotifier{
		enabled: enabled,
		logger:  log.WithSubsystem("notifier"),
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// SetEnabled turns delivery on or off. The NoTelemetry opt-out is
// applied at construction; the configuration document's notification
// setting is applied here once the supervisor has loaded it.
func (n *SessionNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// NotifyReady announces that startup reached Ready
func (n *SessionNotifier) NotifyReady(gameVersion string) {
	n.deliver(fmt.Sprintf("Runtime ready (game %s)", gameVersion))
}

// NotifyStartupFailed announces a fatal startup failure
func (n *SessionNotifier) NotifyStartupFailed(err error) {
	n.deliver(fmt.Sprintf("Startup failed: %v", err))
}

// NotifyUnloaded announces that teardown completed
func (n *SessionNotifier) NotifyUnloaded() {
	n.deliver("Runtime unloaded")
}

func (n *SessionNotifier) deliver(message string) {
	n.mu.Lock()
	enabled := n.enabled
	n.mu.Unlock()
	if !enabled {
		return
	}
	if err := n.send(notifyTitle, message); err != nil {
		n.logger.Debug("Notification delivery failed",
			logger.WithError(err))
	}
}
