// Package chat hosts the chat feature set: message interception,
// slash-command routing and the in-memory chat log.
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/umbralabs/umbra/pkg/logger"
)

// Dispatcher is the slash-command capability the feature set uses
type Dispatcher interface {
	Dispatch(input string) error
}

// Translator is the localization capability the feature set uses
type Translator interface {
	Tr(key string) string
}

// Message is one entry in the chat log
type Message struct {
	Sender    string
	Text      string
	Timestamp time.Time
}

// FeatureSet intercepts chat input, routes slash commands to the
// dispatcher and records everything else in the chat log. It holds only
// the capabilities it needs, never the component that built it.
type FeatureSet struct {
	logger   logger.Logger
	dispatch Dispatcher
	tr       Translator

	mu       sync.Mutex
	enabled  bool
	disposed bool
	history  []Message
}

// New constructs the feature set, disabled
func New(dispatch Dispatcher, tr Translator, log logger.Logger) *FeatureSet {
	return &FeatureSet{
		logger:   log.WithSubsystem("chat"),
		dispatch: dispatch,
		tr:       tr,
	}
}

// Enable begins intercepting chat input
func (f *FeatureSet) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.disposed {
		f.enabled = true
	}
	return nil
}

// HandleInput processes one line typed into chat. Slash commands go to
// the dispatcher; a routing failure is echoed back into the chat log
// rather than propagated. Plain text is recorded as a message.
func (f *FeatureSet) HandleInput(sender, text string) {
	f.mu.Lock()
	if !f.enabled || f.disposed {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	if strings.HasPrefix(text, "/") {
		if err := f.dispatch.Dispatch(text); err != nil {
			f.logger.Warn("Command routing failed",
				logger.WithField("input", text),
				logger.WithError(err))
			f.Print(f.tr.Tr("chat.command.failed") + ": " + err.Error())
		}
		return
	}

	f.append(Message{Sender: sender, Text: text, Timestamp: time.Now()})
}

// Print records a system-originated line in the chat log
func (f *FeatureSet) Print(text string) {
	f.append(Message{Sender: "system", Text: text, Timestamp: time.Now()})
}

func (f *FeatureSet) append(msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return
	}
	f.history = append(f.history, msg)
}

// History returns a copy of the chat log
func (f *FeatureSet) History() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.history))
	copy(out, f.history)
	return out
}

// Dispose stops interception and drops the chat log. Idempotent.
func (f *FeatureSet) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disposed {
		return
	}
	f.disposed = true
	f.enabled = false
	f.history = nil
	f.logger.Debug("Chat feature set disposed")
}
