package hooks

import (
	"fmt"
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/procmem"
)

// NetworkHandlers hooks the host's inbound packet dispatcher so higher
// layers can observe traffic. Packet parsing itself lives outside this
// module; handlers receive opaque opcode/payload pairs.
const sigPacketDispatch = "40 53 56 48 81 EC ?? ?? ?? ?? 48 8B 05"

// PacketHandler observes one inbound packet
type PacketHandler func(opcode uint16, payload []byte)

// NetworkHandlers is the packet-dispatch hook subsystem
type NetworkHandlers struct {
	logger   logger.Logger
	dispatch procmem.Address

	mu       sync.Mutex
	enabled  bool
	disposed bool
	handlers []PacketHandler
}

// NewNetworkHandlers resolves the host's packet dispatcher
func NewNetworkHandlers(scanner *procmem.Scanner, log logger.Logger) (*NetworkHandlers, error) {
	dispatch, err := scanner.Scan(sigPacketDispatch)
	if err != nil {
		return nil, fmt.Errorf("network handlers: dispatcher not found: %w", err)
	}

	return &NetworkHandlers{
		logger:   log.WithSubsystem("network-handlers"),
		dispatch: dispatch,
	}, nil
}

// Enable installs the dispatch hook
func (nh *NetworkHandlers) Enable() error {
	nh.mu.Lock()
	defer nh.mu.Unlock()

	if nh.disposed {
		return fmt.Errorf("network handlers: already disposed")
	}
	nh.enabled = true
	return nil
}

// Disable removes the dispatch hook
func (nh *NetworkHandlers) Disable() {
	nh.mu.Lock()
	defer nh.mu.Unlock()
	nh.enabled = false
}

// OnPacket registers an inbound packet observer
func (nh *NetworkHandlers) OnPacket(h PacketHandler) {
	nh.mu.Lock()
	defer nh.mu.Unlock()
	nh.handlers = append(nh.handlers, h)
}

// Deliver feeds one packet from the installed hook to observers
func (nh *NetworkHandlers) Deliver(opcode uint16, payload []byte) {
	nh.mu.Lock()
	if !nh.enabled || nh.disposed {
		nh.mu.Unlock()
		return
	}
	handlers := make([]PacketHandler, len(nh.handlers))
	copy(handlers, nh.handlers)
	nh.mu.Unlock()

	for _, h := range handlers {
		h(opcode, payload)
	}
}

// Dispose unhooks and releases the subsystem. Idempotent.
func (nh *NetworkHandlers) Dispose() {
	nh.mu.Lock()
	defer nh.mu.Unlock()

	if nh.disposed {
		return
	}
	nh.disposed = true
	nh.enabled = false
	nh.handlers = nil
	nh.logger.Debug("Network handlers disposed")
}
