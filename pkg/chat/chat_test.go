package chat_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/umbralabs/umbra/pkg/chat"
	"github.com/umbralabs/umbra/pkg/logger"
)

type fakeDispatcher struct {
	inputs []string
	err    error
}

func (f *fakeDispatcher) Dispatch(input string) error {
	f.inputs = append(f.inputs, input)
	return f.err
}

type passthroughTr struct{}

func (passthroughTr) Tr(key string) string { return key }

func testLog() logger.Logger {
	return logger.CreateLoggerWithOutput("error", nil)
}

func TestSlashInputGoesToDispatcher(t *testing.T) {
	d := &fakeDispatcher{}
	fs := chat.New(d, passthroughTr{}, testLog())
	fs.Enable()

	fs.HandleInput("player", "/xlhelp")
	fs.HandleInput("player", "just talking")

	if len(d.inputs) != 1 || d.inputs[0] != "/xlhelp" {
		t.Errorf("dispatched = %v", d.inputs)
	}

	hist := fs.History()
	if len(hist) != 1 || hist[0].Text != "just talking" {
		t.Errorf("history = %v", hist)
	}
}

func TestDispatchFailureEchoedNotPropagated(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("unknown command")}
	fs := chat.New(d, passthroughTr{}, testLog())
	fs.Enable()

	fs.HandleInput("player", "/nope")

	hist := fs.History()
	if len(hist) != 1 {
		t.Fatalf("expected 1 echo message, got %d", len(hist))
	}
	if hist[0].Sender != "system" || !strings.Contains(hist[0].Text, "unknown command") {
		t.Errorf("echo message = %+v", hist[0])
	}
}

func TestInputDroppedWhileDisabled(t *testing.T) {
	d := &fakeDispatcher{}
	fs := chat.New(d, passthroughTr{}, testLog())

	fs.HandleInput("player", "/xlhelp")
	fs.HandleInput("player", "hello")

	if len(d.inputs) != 0 || len(fs.History()) != 0 {
		t.Error("input should be dropped before enable")
	}
}

func TestDisposeDropsLogAndStopsIntake(t *testing.T) {
	fs := chat.New(&fakeDispatcher{}, passthroughTr{}, testLog())
	fs.Enable()
	fs.HandleInput("player", "hello")

	fs.Dispose()
	fs.Dispose() // idempotent
	fs.HandleInput("player", "late")
	fs.Print("late system line")

	if len(fs.History()) != 0 {
		t.Error("history should be empty after dispose")
	}
	if err := fs.Enable(); err != nil {
		t.Fatalf("enable returned error: %v", err)
	}
	fs.HandleInput("player", "still late")
	if len(fs.History()) != 0 {
		t.Error("disposed feature set must stay inert")
	}
}
