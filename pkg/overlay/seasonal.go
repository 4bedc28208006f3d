package overlay

import (
	"sync"
	"time"

	"github.com/umbralabs/umbra/pkg/logger"
)

// The seasonal module only runs on its anniversary date
const (
	seasonalYear  = 2026
	seasonalMonth = time.September
	seasonalDay   = 16
)

// DrawSource is the draw event a seasonal module attaches to
type DrawSource interface {
	OnDraw(fn DrawFunc) int
	Unsubscribe(token int)
}

// Seasonal is the date-gated celebration module. It is purely
// additive: it attaches to the overlay draw event when the overlay is
// available and does nothing at all when it is not.
type Seasonal struct {
	logger logger.Logger

	mu       sync.Mutex
	source   DrawSource
	token    int
	attached bool
	frames   uint64
}

// SeasonalActive reports whether the gate date matches now
func SeasonalActive(now time.Time) bool {
	return now.Year() == seasonalYear &&
		now.Month() == seasonalMonth &&
		now.Day() == seasonalDay
}

// NewSeasonal constructs the module, detached
func NewSeasonal(log logger.Logger) *Seasonal {
	return &Seasonal{logger: log.WithSubsystem("seasonal")}
}

// Attach subscribes the module to the overlay draw event. A nil
// source means the overlay never constructed; the module stays inert
// and reports false.
func (s *Seasonal) Attach(source DrawSource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if source == nil {
		s.logger.Info("Overlay absent, seasonal module staying inert")
		return false
	}
	if s.attached {
		return true
	}

	s.source = source
	s.token = source.OnDraw(s.draw)
	s.attached = true
	s.logger.Info("Seasonal module attached")
	return true
}

func (s *Seasonal) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
}

// Attached reports whether the module is subscribed to the draw event
func (s *Seasonal) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// FrameCount reports how many frames the module has drawn
func (s *Seasonal) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Dispose detaches the module from the draw event. Safe to call
// whether or not Attach ever succeeded. Idempotent.
func (s *Seasonal) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return
	}
	s.attached = false
	s.source.Unsubscribe(s.token)
	s.source = nil
	s.logger.Debug("Seasonal module disposed")
}
