// Package logger provides structured logging with per-subsystem scoping
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	WithSubsystem(name string) Logger
	SetLevel(level string)
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// WithError creates an error field
func WithError(err error) Field {
	return Field{Key: "error", Value: err}
}

// SubsystemLogger implements Logger with subsystem awareness
type SubsystemLogger struct {
	logger    *logrus.Logger
	subsystem string
	mu        sync.RWMutex
}

// moonFormatter formats console entries with a level color and an
// optional [subsystem] prefix.
type moonFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

// Format implements logrus.Formatter
func (f *moonFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)

	var levelColor *color.Color
	var levelText string

	switch entry.Level {
	case logrus.ErrorLevel:
		levelColor = color.New(color.FgRed, color.Bold)
		levelText = "ERROR"
	case logrus.WarnLevel:
		levelColor = color.New(color.FgYellow, color.Bold)
		levelText = "WARN"
	case logrus.InfoLevel:
		levelColor = color.New(color.FgCyan)
		levelText = "INFO"
	case logrus.DebugLevel:
		levelColor = color.New(color.FgWhite, color.Faint)
		levelText = "DEBUG"
	default:
		levelColor = color.New(color.FgGreen)
		levelText = "TRACE"
	}

	prefix := ""
	if sub, ok := entry.Data["subsystem"]; ok {
		prefix = fmt.Sprintf("[%s] ", color.New(color.FgMagenta).Sprint(sub))
		delete(entry.Data, "subsystem")
	}

	var output string
	if f.DisableColors {
		output = fmt.Sprintf("[%s] %s: %s%s", timestamp, levelText, prefix, entry.Message)
	} else {
		output = fmt.Sprintf("[%s] %s: %s%s",
			timestamp,
			levelColor.Sprint(levelText),
			prefix,
			entry.Message,
		)
	}

	if len(entry.Data) > 0 {
		fields := " {"
		first := true
		for k, v := range entry.Data {
			if !first {
				fields += ", "
			}
			fields += fmt.Sprintf("%s=%v", k, v)
			first = false
		}
		fields += "}"
		output += color.New(color.FgWhite, color.Faint).Sprint(fields)
	}

	return []byte(output + "\n"), nil
}

// CreateLogger creates a new logger instance writing to stderr and,
// when logFile is non-empty, a session log file as well.
func CreateLogger(logFile string, logLevel string) Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&moonFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   false,
	})

	log.SetOutput(os.Stderr)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(io.MultiWriter(os.Stderr, file))
		}
	}

	return &SubsystemLogger{logger: log}
}

// CreateLoggerWithOutput creates a logger with custom output (for testing)
func CreateLoggerWithOutput(logLevel string, output io.Writer) Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&moonFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   true,
	})

	if output == nil {
		output = io.Discard
	}
	log.SetOutput(output)

	return &SubsystemLogger{logger: log}
}

// WithSubsystem creates a child logger scoped to a subsystem name
func (l *SubsystemLogger) WithSubsystem(name string) Logger {
	return &SubsystemLogger{
		logger:    l.logger,
		subsystem: name,
	}
}

// SetLevel changes the logger verbosity at runtime. Unknown levels are
// ignored, leaving the current level in place.
func (l *SubsystemLogger) SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	l.logger.SetLevel(parsed)
}

// convertFields converts Field slice to logrus.Fields
func (l *SubsystemLogger) convertFields(fields []Field) logrus.Fields {
	result := make(logrus.Fields)
	if l.subsystem != "" {
		result["subsystem"] = l.subsystem
	}
	for _, f := range fields {
		result[f.Key] = f.Value
	}
	return result
}

// Info logs an info message
func (l *SubsystemLogger) Info(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info(message)
}

// Error logs an error message
func (l *SubsystemLogger) Error(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Error(message)
}

// Warn logs a warning message
func (l *SubsystemLogger) Warn(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Warn(message)
}

// Debug logs a debug message
func (l *SubsystemLogger) Debug(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Debug(message)
}
