// Package overlay hosts the in-process rendering subsystem: the draw
// event, the interface shell and the date-gated seasonal module.
package overlay

import (
	"context"
	"fmt"
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/procmem"
	"github.com/umbralabs/umbra/pkg/signals"
)

// sigPresent locates the host's frame presentation routine, the
// interception point for the draw event.
const sigPresent = "48 89 5C 24 ?? 48 89 6C 24 ?? 48 89 74 24 ?? 57 41 56"

// DrawFunc runs on the render thread once per presented frame
type DrawFunc func()

// Runtime is the overlay rendering subsystem. Draw subscribers are
// invoked per frame once the runtime is enabled; the first presented
// frame also completes the font rebuild that callers may block on.
type Runtime struct {
	logger  logger.Logger
	present procmem.Address

	mu       sync.Mutex
	subs     map[int]DrawFunc
	nextID   int
	enabled  bool
	disposed bool

	fontsReady *signals.OneShot
}

// NewRuntime resolves the presentation routine and prepares the draw
// event. Failure here is contained by the caller, never fatal to the
// session.
func NewRuntime(scanner *procmem.Scanner, log logger.Logger) (*Runtime, error) {
	present, err := scanner.Scan(sigPresent)
	if err != nil {
		return nil, fmt.Errorf("overlay: presentation routine not found: %w", err)
	}

	return &Runtime{
		logger:     log.WithSubsystem("overlay"),
		present:    present,
		subs:       make(map[int]DrawFunc),
		fontsReady: signals.New(),
	}, nil
}

// OnDraw subscribes a per-frame callback and returns a token for
// Unsubscribe.
func (r *Runtime) OnDraw(fn DrawFunc) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	if !r.disposed {
		r.subs[id] = fn
	}
	return id
}

// Unsubscribe removes a draw callback
func (r *Runtime) Unsubscribe(token int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs != nil {
		delete(r.subs, token)
	}
}

// Enable arms the presentation intercept
func (r *Runtime) Enable() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return fmt.Errorf("overlay: already disposed")
	}
	r.enabled = true
	r.logger.Info("Overlay enabled", logger.WithField("present", r.present))
	return nil
}

// RenderFrame is invoked from the render thread for every presented
// frame. The first frame completes the font rebuild. A panicking
// subscriber is contained so one bad callback cannot take down the
// render thread.
func (r *Runtime) RenderFrame() {
	r.mu.Lock()
	if !r.enabled || r.disposed {
		r.mu.Unlock()
		return
	}
	callbacks := make([]DrawFunc, 0, len(r.subs))
	for _, fn := range r.subs {
		callbacks = append(callbacks, fn)
	}
	r.mu.Unlock()

	r.fontsReady.Set()

	for _, fn := range callbacks {
		r.safeDraw(fn)
	}
}

func (r *Runtime) safeDraw(fn DrawFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Draw callback panicked",
				logger.WithField("panic", rec))
		}
	}()
	fn()
}

// WaitForFontRebuild blocks until the first frame has rebuilt font
// resources, or the context expires.
func (r *Runtime) WaitForFontRebuild(ctx context.Context) error {
	select {
	case <-r.fontsReady.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("overlay: font rebuild wait: %w", ctx.Err())
	}
}

// Enabled reports whether frames are being intercepted
func (r *Runtime) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Dispose detaches the intercept and drops all subscribers. After this
// returns no further draw callbacks fire. Idempotent.
func (r *Runtime) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return
	}
	r.disposed = true
	r.enabled = false
	r.subs = nil
	r.logger.Debug("Overlay disposed")
}
