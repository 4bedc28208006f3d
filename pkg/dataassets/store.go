// Package dataassets loads the game data tables shipped in the asset
// directory and decodes the host's payload-encoded strings against them.
package dataassets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/types"
)

// Store holds the loaded data tables for one language. Loading happens
// once at construction and is fatal to the session when it fails.
type Store struct {
	logger   logger.Logger
	language types.LanguageTag

	mu       sync.RWMutex
	sheets   map[string]map[uint32]string
	disposed bool
}

// Load reads every table under <assetDir>/data/<language>/ into
// memory. An unreadable directory or a malformed table fails the load.
func Load(assetDir string, language types.LanguageTag, log logger.Logger) (*Store, error) {
	s := &Store{
		logger:   log.WithSubsystem("data-assets"),
		language: language,
		sheets:   make(map[string]map[uint32]string),
	}

	dir := filepath.Join(assetDir, "data", string(language))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("data assets: failed to read table directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		sheet, err := s.loadSheet(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		s.sheets[name] = sheet
	}

	if len(s.sheets) == 0 {
		return nil, fmt.Errorf("data assets: no tables found in %s", dir)
	}

	s.logger.Info("Data tables loaded",
		logger.WithField("language", language),
		logger.WithField("sheets", len(s.sheets)))
	return s, nil
}

func (s *Store) loadSheet(path string) (map[uint32]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("data assets: failed to read table %s: %w", path, err)
	}

	raw := make(map[string]string)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("data assets: malformed table %s: %w", path, err)
	}

	sheet := make(map[uint32]string, len(raw))
	for key, value := range raw {
		row, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("data assets: non-numeric row key %q in %s", key, path)
		}
		sheet[uint32(row)] = value
	}
	return sheet, nil
}

// Language returns the language the tables were loaded for
func (s *Store) Language() types.LanguageTag {
	return s.language
}

// Lookup returns the text of a row in a named sheet
func (s *Store) Lookup(sheet string, row uint32) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disposed {
		return "", false
	}
	rows, ok := s.sheets[sheet]
	if !ok {
		return "", false
	}
	text, ok := rows[row]
	return text, ok
}

// SheetCount reports how many tables are resident
func (s *Store) SheetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sheets)
}

// Dispose releases the resident tables. Idempotent.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.disposed = true
	s.sheets = nil
	s.logger.Debug("Data tables released")
}
