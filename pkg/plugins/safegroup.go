package plugins

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/umbralabs/umbra/pkg/logger"
)

// SafeGroup wraps errgroup.Group with panic recovery so a crashing
// plugin load cannot take down the loader goroutine pool.
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a SafeGroup bound to ctx
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{group: g, logger: log}, ctx
}

// Go runs fn in a new goroutine. A panic is converted to an error and
// logged with its stack trace.
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("goroutine panic: %v", r)
			}
		}()
		return fn()
	})
}

// SetLimit caps the number of concurrent goroutines
func (sg *SafeGroup) SetLimit(n int) {
	sg.group.SetLimit(n)
}

// Wait blocks until all goroutines complete and returns the first
// error.
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}
