// Package localization resolves the session language and serves
// translated UI strings from the asset directory.
package localization

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/types"
)

// HostCultureFunc reports the host UI culture, consulted only when no
// configuration override is present.
type HostCultureFunc func() types.LanguageTag

// Service is the localization subsystem. The effective language is
// fixed at construction: a configuration override wins, otherwise the
// host UI culture decides.
type Service struct {
	logger       logger.Logger
	language     types.LanguageTag
	usedOverride bool

	mu      sync.RWMutex
	strings map[string]string
}

// New constructs the service. override comes from the persisted
// configuration; pass empty to derive the language from hostCulture.
func New(assetDir string, override types.LanguageTag, hostCulture HostCultureFunc, log logger.Logger) (*Service, error) {
	s := &Service{
		logger:  log.WithSubsystem("localization"),
		strings: make(map[string]string),
	}

	if override != "" {
		s.language = override
		s.usedOverride = true
		s.logger.Info("Language set from configuration override",
			logger.WithField("language", override))
	} else {
		s.language = hostCulture()
		s.logger.Info("Language derived from host UI culture",
			logger.WithField("language", s.language))
	}

	if err := s.loadLocale(assetDir); err != nil {
		return nil, err
	}
	return s, nil
}

// loadLocale reads the locale table for the effective language. A
// missing table falls back to key passthrough; a malformed table is a
// construction failure.
func (s *Service) loadLocale(assetDir string) error {
	path := filepath.Join(assetDir, "loc", fmt.Sprintf("%s.json", s.language))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Locale table missing, falling back to keys",
				logger.WithField("path", path))
			return nil
		}
		return fmt.Errorf("localization: failed to read locale table: %w", err)
	}

	table := make(map[string]string)
	if err := json.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("localization: malformed locale table %s: %w", path, err)
	}

	s.mu.Lock()
	s.strings = table
	s.mu.Unlock()

	s.logger.Debug("Locale table loaded",
		logger.WithField("entries", len(table)))
	return nil
}

// Language returns the effective session language
func (s *Service) Language() types.LanguageTag {
	return s.language
}

// UsedOverride reports whether the language came from the
// configuration override rather than the host UI culture.
func (s *Service) UsedOverride() bool {
	return s.usedOverride
}

// Tr returns the translation for key, or the key itself when no
// translation exists.
func (s *Service) Tr(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.strings[key]; ok {
		return v
	}
	return key
}
