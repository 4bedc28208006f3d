package hooks

import (
	"fmt"
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/procmem"
)

// ClientState tracks the host's login/zone state by hooking its state
// setter. Other subsystems read the published state; only the hook
// writes it.
const (
	sigClientStateSet   = "88 91 ?? ?? ?? ?? 48 8B 01 FF 50 18"
	sigLocalPlayerTable = "48 8B 0D ?? ?? ?? ?? E8 ?? ?? ?? ?? 48 85 C0 74 0A"
)

// SessionState is the host's coarse login state
type SessionState int

const (
	SessionLoggedOut SessionState = iota
	SessionLoggingIn
	SessionLoggedIn
)

// ClientState is the host session-state hook subsystem
type ClientState struct {
	logger      logger.Logger
	setterAddr  procmem.Address
	playerTable procmem.Address

	mu       sync.Mutex
	enabled  bool
	disposed bool
	state    SessionState
	onLogin  []func()
	onLogout []func()
}

// NewClientState resolves the host's state machinery
func NewClientState(scanner *procmem.Scanner, log logger.Logger) (*ClientState, error) {
	setter, err := scanner.Scan(sigClientStateSet)
	if err != nil {
		return nil, fmt.Errorf("client state: setter not found: %w", err)
	}
	table, err := scanner.Scan(sigLocalPlayerTable)
	if err != nil {
		return nil, fmt.Errorf("client state: player table not found: %w", err)
	}

	return &ClientState{
		logger:      log.WithSubsystem("client-state"),
		setterAddr:  setter,
		playerTable: table,
	}, nil
}

// Enable installs the state-setter hook
func (cs *ClientState) Enable() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.disposed {
		return fmt.Errorf("client state: already disposed")
	}
	if cs.enabled {
		return nil
	}
	cs.enabled = true
	cs.logger.Info("Client state hook enabled")
	return nil
}

// Disable removes the hook
func (cs *ClientState) Disable() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.enabled = false
}

// Enabled reports whether the hook is installed
func (cs *ClientState) Enabled() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.enabled
}

// State returns the last observed session state
func (cs *ClientState) State() SessionState {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state
}

// OnLogin registers a callback fired when the session reaches logged-in
func (cs *ClientState) OnLogin(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.onLogin = append(cs.onLogin, fn)
}

// OnLogout registers a callback fired when the session logs out
func (cs *ClientState) OnLogout(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.onLogout = append(cs.onLogout, fn)
}

// Observe feeds a state transition from the installed hook
func (cs *ClientState) Observe(state SessionState) {
	cs.mu.Lock()
	if !cs.enabled || cs.disposed || cs.state == state {
		cs.mu.Unlock()
		return
	}
	prev := cs.state
	cs.state = state

	var fire []func()
	if state == SessionLoggedIn {
		fire = append(fire, cs.onLogin...)
	} else if prev == SessionLoggedIn && state == SessionLoggedOut {
		fire = append(fire, cs.onLogout...)
	}
	cs.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// Dispose unhooks and releases the subsystem. Idempotent.
func (cs *ClientState) Dispose() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.disposed {
		return
	}
	cs.disposed = true
	cs.enabled = false
	cs.onLogin = nil
	cs.onLogout = nil
	cs.logger.Debug("Client state disposed")
}
