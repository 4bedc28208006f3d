package procmem

import (
	"fmt"
	"sync"
)

// ExceptionFilterSignature locates the host's top-level
// unhandled-exception filter slot: a lea/mov pair whose trailing 8
// bytes hold the installed handler pointer.
const ExceptionFilterSignature = "48 8D 05 ?? ?? ?? ?? 48 89 05"

// exceptionFilterSlotOffset is where the handler pointer lives relative
// to the matched pattern.
const exceptionFilterSlotOffset = 11

// ExceptionFilterPatcher swaps the host's top-level unhandled-exception
// filter for a debug-hook-compatible one and can restore the original.
// This is an on-demand diagnostics utility, not part of the lifecycle
// state machine.
type ExceptionFilterPatcher struct {
	scanner *Scanner

	mu   sync.Mutex
	slot Address
}

// NewExceptionFilterPatcher creates a patcher over the given scanner
func NewExceptionFilterPatcher(scanner *Scanner) *ExceptionFilterPatcher {
	return &ExceptionFilterPatcher{scanner: scanner}
}

// Replace installs the handler at newFilter into the host's filter slot
// and returns the previous handler for later restoration. The slot is
// located by signature on first use; the swap itself is atomic with
// respect to other Replace callers.
func (p *ExceptionFilterPatcher) Replace(newFilter Address) (Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.slot == 0 {
		matched, err := p.scanner.Scan(ExceptionFilterSignature)
		if err != nil {
			return 0, fmt.Errorf("exception filter slot not found: %w", err)
		}
		p.slot = matched + exceptionFilterSlotOffset
	}

	previous, err := p.scanner.Module().Uint64At(p.slot)
	if err != nil {
		return 0, fmt.Errorf("failed to read exception filter slot: %w", err)
	}

	if err := p.scanner.Module().WriteUint64At(p.slot, uint64(newFilter)); err != nil {
		return 0, fmt.Errorf("failed to patch exception filter slot: %w", err)
	}

	return Address(previous), nil
}

// Current returns the handler currently installed in the slot. Returns
// an error if Replace has never located the slot.
func (p *ExceptionFilterPatcher) Current() (Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.slot == 0 {
		return 0, fmt.Errorf("exception filter slot not yet located")
	}
	v, err := p.scanner.Module().Uint64At(p.slot)
	if err != nil {
		return 0, err
	}
	return Address(v), nil
}
