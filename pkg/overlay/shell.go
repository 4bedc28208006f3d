package overlay

import (
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
)

// Shell is the interface shell drawn on top of the host: the settings
// window, the plugin installer and the console. It draws through a
// runtime subscription made by the caller.
type Shell struct {
	logger logger.Logger

	mu           sync.Mutex
	frames       uint64
	settingsOpen bool
	consoleOpen  bool
	disposed     bool
}

// NewShell constructs the interface shell with every window closed
func NewShell(log logger.Logger) *Shell {
	return &Shell{logger: log.WithSubsystem("ui-shell")}
}

// Draw renders the shell for one frame. Subscribed to the overlay draw
// event by the caller.
func (s *Shell) Draw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.frames++
}

// FrameCount reports how many frames the shell has drawn
func (s *Shell) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// ToggleSettings flips the settings window and reports its new state
func (s *Shell) ToggleSettings() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsOpen = !s.settingsOpen
	return s.settingsOpen
}

// ToggleConsole flips the console window and reports its new state
func (s *Shell) ToggleConsole() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consoleOpen = !s.consoleOpen
	return s.consoleOpen
}

// Dispose closes all windows and stops drawing. Idempotent.
func (s *Shell) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.disposed = true
	s.settingsOpen = false
	s.consoleOpen = false
	s.logger.Debug("Interface shell disposed")
}
