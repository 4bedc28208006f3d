// Package diagnostics records what happened during startup and
// teardown and persists a per-session state file for postmortems.
package diagnostics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/umbralabs/umbra/pkg/types"
)

// StepStatus classifies the outcome of one startup or teardown step
type StepStatus string

const (
	StepReady    StepStatus = "ready"
	StepFailed   StepStatus = "failed"
	StepSkipped  StepStatus = "skipped"
	StepDisposed StepStatus = "disposed"
)

// StepRecord is the outcome of one step
type StepRecord struct {
	Subsystem types.SubsystemName `json:"subsystem"`
	Status    StepStatus          `json:"status"`
	Error     string              `json:"error,omitempty"`
	Duration  time.Duration       `json:"duration"`
}

// Snapshot is a point-in-time view of the session
type Snapshot struct {
	SessionID   string            `json:"sessionId"`
	GameVersion string            `json:"gameVersion"`
	Language    types.LanguageTag `json:"language"`
	State       string            `json:"state"`
	StartedAt   time.Time         `json:"startedAt"`
	ReadyAt     time.Time         `json:"readyAt,omitempty"`
	Steps       []StepRecord      `json:"steps"`
}

// Collector accumulates step outcomes for the running session. Each
// session gets a fresh random identifier.
type Collector struct {
	mu       sync.Mutex
	snapshot Snapshot
}

// NewCollector starts a session record
func NewCollector(gameVersion string, language types.LanguageTag) *Collector {
	return &Collector{
		snapshot: Snapshot{
			SessionID:   uuid.NewString(),
			GameVersion: gameVersion,
			Language:    language,
			State:       types.StateNotStarted.String(),
			StartedAt:   time.Now(),
		},
	}
}

// SessionID returns the session's identifier
func (c *Collector) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.SessionID
}

// RecordStep appends one step outcome
func (c *Collector) RecordStep(subsystem types.SubsystemName, status StepStatus, err error, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := StepRecord{
		Subsystem: subsystem,
		Status:    status,
		Duration:  duration,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	c.snapshot.Steps = append(c.snapshot.Steps, rec)
}

// SetState records the current lifecycle state
func (c *Collector) SetState(state types.LifecycleState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot.State = state.String()
	if state == types.StateReady {
		c.snapshot.ReadyAt = time.Now()
	}
}

// Snapshot returns a deep copy of the session record
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.snapshot
	out.Steps = make([]StepRecord, len(c.snapshot.Steps))
	copy(out.Steps, c.snapshot.Steps)
	return out
}
