// Package procmem provides read access to the host process's main
// executable module and byte-signature scanning over its image. It is
// the foundation every host-hooking subsystem resolves addresses
// through; nothing in this package depends on those subsystems.
package procmem

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// Address is a location inside the host process's address space
type Address uint64

// String formats the address the way debuggers print it
func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// Module is a loaded executable image: a base address plus the mapped
// bytes. Reads are safe from any goroutine; writes (patching) are
// serialized internally.
type Module struct {
	Name string
	Base Address

	mu   sync.RWMutex
	data []byte
}

// NewModule wraps an already-mapped image
func NewModule(name string, base Address, data []byte) *Module {
	return &Module{Name: name, Base: base, data: data}
}

// Size returns the mapped image size in bytes
func (m *Module) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// End returns the first address past the module
func (m *Module) End() Address {
	return m.Base + Address(m.Size())
}

// Contains reports whether addr falls inside the module
func (m *Module) Contains(addr Address) bool {
	return addr >= m.Base && addr < m.End()
}

// BytesAt copies n bytes starting at addr
func (m *Module) BytesAt(addr Address, n int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	off, err := m.offset(addr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.data[off:off+n])
	return out, nil
}

// Uint64At reads a little-endian 64-bit value at addr
func (m *Module) Uint64At(addr Address) (uint64, error) {
	b, err := m.BytesAt(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Int32At reads a little-endian signed 32-bit value at addr
func (m *Module) Int32At(addr Address) (int32, error) {
	b, err := m.BytesAt(addr, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// WriteUint64At patches a little-endian 64-bit value at addr
func (m *Module) WriteUint64At(addr Address, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	off, err := m.offset(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[off:off+8], v)
	return nil
}

// offset translates an address to an image offset, bounds-checked for
// an n-byte access. Caller holds the lock.
func (m *Module) offset(addr Address, n int) (int, error) {
	if addr < m.Base {
		return 0, fmt.Errorf("address %s below module base %s", addr, m.Base)
	}
	off := int(addr - m.Base)
	if off+n > len(m.data) {
		return 0, fmt.Errorf("address %s +%d bytes past module end %s", addr, n, m.End())
	}
	return off, nil
}

// snapshot returns the raw image for scanning. Caller must not mutate.
func (m *Module) snapshot() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}

// ProcessContext is the read-only handle to the host process's main
// module. It is acquired once during startup step 2 and released during
// teardown step 7.
type ProcessContext struct {
	mainModule *Module
	released   bool
	mu         sync.Mutex
}

// defaultImageBase mirrors the conventional 64-bit executable base
const defaultImageBase Address = 0x140000000

// AcquireProcessContext maps the current process's main executable
// image. The injected runtime shares the host's address space, so the
// running executable is the host's main module.
func AcquireProcessContext() (*ProcessContext, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve host executable: %w", err)
	}

	data, err := os.ReadFile(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to map host module %s: %w", exe, err)
	}

	return &ProcessContext{
		mainModule: NewModule(exe, defaultImageBase, data),
	}, nil
}

// NewProcessContextFromModule wraps a pre-built module, used by tests
// and by hosts that supply their own image mapping.
func NewProcessContextFromModule(m *Module) *ProcessContext {
	return &ProcessContext{mainModule: m}
}

// MainModule returns the host's main executable module
func (pc *ProcessContext) MainModule() *Module {
	return pc.mainModule
}

// Release drops the mapped image. Idempotent.
func (pc *ProcessContext) Release() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.released {
		return
	}
	pc.released = true
	pc.mainModule = nil
}

// Released reports whether the context has been released
func (pc *ProcessContext) Released() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.released
}
