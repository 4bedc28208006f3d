// Package signals provides one-shot cross-goroutine notification
// primitives for the unload handshake. A OneShot is monotonic: once set
// it stays set, so waiters that arrive late observe completion
// immediately and there is no lost-wakeup hazard.
package signals

import "sync"

// OneShot is a set-once, never-reset binary signal with single-writer,
// multiple-reader semantics. The zero value is not usable; call New.
type OneShot struct {
	once sync.Once
	ch   chan struct{}
}

// New creates an unset OneShot
func New() *OneShot {
	return &OneShot{ch: make(chan struct{})}
}

// Set marks the signal. Setting an already-set signal is a no-op.
func (s *OneShot) Set() {
	s.once.Do(func() { close(s.ch) })
}

// IsSet reports whether the signal has been set
func (s *OneShot) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Wait blocks the calling goroutine until the signal is set
func (s *OneShot) Wait() {
	<-s.ch
}

// Done returns a channel closed when the signal is set, for use in
// select statements alongside other channels.
func (s *OneShot) Done() <-chan struct{} {
	return s.ch
}

// Pair bundles the two unload signals. UnloadRequested is owned and set
// by the supervisor (via Unload); UnloadFinished is owned and set by the
// injecting caller after it has run Dispose. The two directions are
// deliberately separate primitives and must never be collapsed into one.
type Pair struct {
	UnloadRequested *OneShot
	UnloadFinished  *OneShot
}

// NewPair creates a signal pair. finished may be supplied by the caller
// when it owns the completion side; pass nil to allocate one.
func NewPair(finished *OneShot) *Pair {
	if finished == nil {
		finished = New()
	}
	return &Pair{
		UnloadRequested: New(),
		UnloadFinished:  finished,
	}
}
