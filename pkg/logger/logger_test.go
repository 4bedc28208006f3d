package logger_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/umbralabs/umbra/pkg/logger"
)

func TestLoggerWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("debug", &buf)

	log.Info("session starting")

	if !strings.Contains(buf.String(), "session starting") {
		t.Errorf("expected message in output, got: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "INFO") {
		t.Errorf("expected INFO level in output, got: %q", buf.String())
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("warn", &buf)

	log.Debug("hidden")
	log.Info("also hidden")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info output should be suppressed at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn output missing: %q", out)
	}
}

func TestWithSubsystemPrefix(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.WithSubsystem("overlay").Info("first frame ready")

	if !strings.Contains(buf.String(), "[overlay]") {
		t.Errorf("expected subsystem prefix, got: %q", buf.String())
	}
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Error("load failed", logger.WithError(errors.New("bad table")), logger.WithField("step", 10))

	out := buf.String()
	if !strings.Contains(out, "bad table") {
		t.Errorf("expected error field in output: %q", out)
	}
	if !strings.Contains(out, "step=10") {
		t.Errorf("expected step field in output: %q", out)
	}
}

func TestSetLevelAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Debug("before")
	log.SetLevel("debug")
	log.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Errorf("debug output should be suppressed before SetLevel: %q", out)
	}
	if !strings.Contains(out, "after") {
		t.Errorf("debug output missing after SetLevel: %q", out)
	}
}
