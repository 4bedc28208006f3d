// Package commands routes slash commands entered in chat to their
// registered handlers and provides the built-in command set.
package commands

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/umbralabs/umbra/pkg/localization"
	"github.com/umbralabs/umbra/pkg/logger"
)

// HandlerFunc receives the invoked command and the raw argument string
type HandlerFunc func(command, args string) error

// CommandInfo describes one registered command
type CommandInfo struct {
	Handler    HandlerFunc
	HelpKey    string
	ShowInHelp bool
}

// Router is the slash-command dispatcher. Help text is localized
// through the localization service.
type Router struct {
	logger logger.Logger
	loc    *localization.Service

	mu       sync.RWMutex
	handlers map[string]CommandInfo
	disposed bool
}

// NewRouter constructs an empty command router
func NewRouter(loc *localization.Service, log logger.Logger) *Router {
	return &Router{
		logger:   log.WithSubsystem("commands"),
		loc:      loc,
		handlers: make(map[string]CommandInfo),
	}
}

// AddHandler registers a command. Names must start with a slash and be
// unique.
func (r *Router) AddHandler(name string, info CommandInfo) error {
	if !strings.HasPrefix(name, "/") {
		return fmt.Errorf("commands: %q does not start with a slash", name)
	}
	if info.Handler == nil {
		return fmt.Errorf("commands: %q has no handler", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return fmt.Errorf("commands: router disposed")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("commands: %q already registered", name)
	}
	r.handlers[name] = info
	r.logger.Debug("Command registered", logger.WithField("command", name))
	return nil
}

// RemoveHandler unregisters a command. Returns whether it existed.
func (r *Router) RemoveHandler(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; !exists {
		return false
	}
	delete(r.handlers, name)
	return true
}

// Dispatch parses an input line and invokes the matching handler. A
// panicking handler is contained and reported as an error.
func (r *Router) Dispatch(input string) (err error) {
	input = strings.TrimSpace(input)
	name, args, _ := strings.Cut(input, " ")

	r.mu.RLock()
	info, ok := r.handlers[name]
	disposed := r.disposed
	r.mu.RUnlock()

	if disposed {
		return fmt.Errorf("commands: router disposed")
	}
	if !ok {
		return fmt.Errorf("commands: unknown command %q", name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("commands: handler for %q panicked: %v", name, rec)
			r.logger.Error("Command handler panicked",
				logger.WithField("command", name),
				logger.WithField("panic", rec))
		}
	}()

	return info.Handler(name, strings.TrimSpace(args))
}

// Commands returns the registered command names in sorted order
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HelpText returns the localized help line for a command, or empty when
// the command is hidden or unknown.
func (r *Router) HelpText(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.handlers[name]
	if !ok || !info.ShowInHelp || info.HelpKey == "" {
		return ""
	}
	return r.loc.Tr(info.HelpKey)
}

// Dispose clears all registrations. Idempotent.
func (r *Router) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return
	}
	r.disposed = true
	r.handlers = nil
	r.logger.Debug("Command router disposed")
}
