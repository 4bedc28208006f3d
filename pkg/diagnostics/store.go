package diagnostics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/umbralabs/umbra/pkg/logger"
)

const sessionFile = "session.json"

// SessionStore persists session snapshots under the working
// directory, one file per store, overwritten each save.
type SessionStore struct {
	dir    string
	logger logger.Logger
}

// NewSessionStore creates the state directory under workingDir
func NewSessionStore(workingDir string, log logger.Logger) (*SessionStore, error) {
	dir := filepath.Join(workingDir, ".umbra", "state")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("diagnostics: failed to create state directory: %w", err)
	}
	return &SessionStore{
		dir:    dir,
		logger: log.WithSubsystem("diagnostics"),
	}, nil
}

// Save writes the snapshot atomically
func (s *SessionStore) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("diagnostics: failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(s.dir, sessionFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("diagnostics: failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("diagnostics: failed to persist snapshot: %w", err)
	}

	s.logger.Debug("Session snapshot persisted",
		logger.WithField("session", snap.SessionID))
	return nil
}

// Load reads the last persisted snapshot. Returns nil when no session
// has been persisted yet.
func (s *SessionStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, sessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("diagnostics: failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("diagnostics: malformed snapshot file: %w", err)
	}
	return &snap, nil
}
