package procmem

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Signature is a parsed byte pattern with wildcards. The text form is
// space-separated hex bytes where "?" or "??" match any byte:
//
//	"48 89 5C 24 ?? 57 48 83 EC 20"
type Signature struct {
	text  string
	bytes []int16 // -1 is a wildcard
}

// ParseSignature parses the text form of a byte pattern
func ParseSignature(text string) (*Signature, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty signature")
	}

	pattern := make([]int16, 0, len(fields))
	for _, f := range fields {
		if f == "?" || f == "??" {
			pattern = append(pattern, -1)
			continue
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad signature byte %q in %q", f, text)
		}
		pattern = append(pattern, int16(v))
	}

	if pattern[0] == -1 {
		return nil, fmt.Errorf("signature %q must not start with a wildcard", text)
	}

	return &Signature{text: text, bytes: pattern}, nil
}

// String returns the original text form
func (s *Signature) String() string { return s.text }

// Len returns the pattern length in bytes
func (s *Signature) Len() int { return len(s.bytes) }

// matchAt reports whether the pattern matches data at off
func (s *Signature) matchAt(data []byte, off int) bool {
	for i, b := range s.bytes {
		if b >= 0 && data[off+i] != byte(b) {
			return false
		}
	}
	return true
}

// Scanner performs wildcard byte-pattern lookups over the host's main
// module. It caches resolved signatures so repeated lookups during
// startup stay cheap.
type Scanner struct {
	module *Module

	mu    sync.RWMutex
	cache map[string]Address
}

// NewScanner creates a scanner over the context's main module
func NewScanner(pc *ProcessContext) (*Scanner, error) {
	if pc == nil || pc.MainModule() == nil {
		return nil, fmt.Errorf("scanner requires an acquired process context")
	}
	return &Scanner{
		module: pc.MainModule(),
		cache:  make(map[string]Address),
	}, nil
}

// Module returns the module this scanner searches
func (sc *Scanner) Module() *Module { return sc.module }

// Scan finds the first occurrence of the text-form signature and
// returns its address inside the host module.
func (sc *Scanner) Scan(signature string) (Address, error) {
	sc.mu.RLock()
	if addr, ok := sc.cache[signature]; ok {
		sc.mu.RUnlock()
		return addr, nil
	}
	sc.mu.RUnlock()

	sig, err := ParseSignature(signature)
	if err != nil {
		return 0, err
	}

	data := sc.module.snapshot()
	first := byte(sig.bytes[0])
	limit := len(data) - sig.Len()

	for off := 0; off <= limit; off++ {
		if data[off] != first {
			continue
		}
		if sig.matchAt(data, off) {
			addr := sc.module.Base + Address(off)
			sc.mu.Lock()
			sc.cache[signature] = addr
			sc.mu.Unlock()
			return addr, nil
		}
	}

	return 0, fmt.Errorf("signature not found in %s: %s", sc.module.Name, signature)
}

// ScanAll finds every occurrence of the signature
func (sc *Scanner) ScanAll(signature string) ([]Address, error) {
	sig, err := ParseSignature(signature)
	if err != nil {
		return nil, err
	}

	data := sc.module.snapshot()
	limit := len(data) - sig.Len()

	var out []Address
	for off := 0; off <= limit; off++ {
		if sig.matchAt(data, off) {
			out = append(out, sc.module.Base+Address(off))
		}
	}
	if out == nil {
		return nil, fmt.Errorf("signature not found in %s: %s", sc.module.Name, signature)
	}
	return out, nil
}

// ResolveRelativeCall follows the rel32 displacement of a call or jump
// instruction at addr: the 4 bytes at addr+offset are a signed
// displacement relative to the end of the instruction.
func (sc *Scanner) ResolveRelativeCall(addr Address, offset, instructionLen int) (Address, error) {
	disp, err := sc.module.Int32At(addr + Address(offset))
	if err != nil {
		return 0, fmt.Errorf("failed to read displacement at %s: %w", addr, err)
	}

	target := int64(addr) + int64(instructionLen) + int64(disp)
	resolved := Address(target)
	if !sc.module.Contains(resolved) {
		return 0, fmt.Errorf("relative target %s escapes module %s", resolved, sc.module.Name)
	}
	return resolved, nil
}

// ScanStatic resolves a signature that points at an E8-style relative
// call and returns the call's target, the common way static functions
// are located from call sites.
func (sc *Scanner) ScanStatic(signature string) (Address, error) {
	addr, err := sc.Scan(signature)
	if err != nil {
		return 0, err
	}
	// E8 rel32: displacement at +1, instruction length 5
	return sc.ResolveRelativeCall(addr, 1, 5)
}
