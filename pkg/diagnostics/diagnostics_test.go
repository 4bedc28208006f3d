package diagnostics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/umbralabs/umbra/pkg/diagnostics"
	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/types"
)

func testLog() logger.Logger {
	return logger.CreateLoggerWithOutput("error", nil)
}

func TestCollectorRecordsSteps(t *testing.T) {
	c := diagnostics.NewCollector("2026.08.01.0000", types.LanguageEnglish)

	if c.SessionID() == "" {
		t.Fatal("session must get an identifier")
	}

	c.SetState(types.StateStarting)
	c.RecordStep(types.SubsystemScanner, diagnostics.StepReady, nil, 5*time.Millisecond)
	c.RecordStep(types.SubsystemOverlay, diagnostics.StepFailed,
		errors.New("presentation routine not found"), time.Millisecond)
	c.RecordStep(types.SubsystemPlugins, diagnostics.StepSkipped, nil, 0)
	c.SetState(types.StateReady)

	snap := c.Snapshot()
	if snap.State != types.StateReady.String() {
		t.Errorf("state = %s", snap.State)
	}
	if snap.ReadyAt.IsZero() {
		t.Error("ReadyAt should be stamped on Ready")
	}
	if len(snap.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(snap.Steps))
	}
	if snap.Steps[1].Error == "" {
		t.Error("failed step should carry its error text")
	}

	// snapshot is a copy, later records must not leak in
	c.RecordStep(types.SubsystemChat, diagnostics.StepReady, nil, 0)
	if len(snap.Steps) != 3 {
		t.Error("snapshot must be isolated from later records")
	}
}

func TestDistinctSessionIDs(t *testing.T) {
	a := diagnostics.NewCollector("v", types.LanguageEnglish)
	b := diagnostics.NewCollector("v", types.LanguageEnglish)
	if a.SessionID() == b.SessionID() {
		t.Error("sessions must get distinct identifiers")
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store, err := diagnostics.NewSessionStore(t.TempDir(), testLog())
	if err != nil {
		t.Fatalf("store construction failed: %v", err)
	}

	if snap, err := store.Load(); err != nil || snap != nil {
		t.Fatalf("empty store should load nil, got %v, %v", snap, err)
	}

	c := diagnostics.NewCollector("2026.08.01.0000", types.LanguageGerman)
	c.RecordStep(types.SubsystemDataAssets, diagnostics.StepReady, nil, time.Millisecond)
	if err := store.Save(c.Snapshot()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.SessionID != c.SessionID() {
		t.Errorf("round-tripped session = %s, want %s", loaded.SessionID, c.SessionID())
	}
	if loaded.Language != types.LanguageGerman {
		t.Errorf("language = %s", loaded.Language)
	}
	if len(loaded.Steps) != 1 {
		t.Errorf("steps = %v", loaded.Steps)
	}
}
