package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/umbralabs/umbra/pkg/config"
	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/types"
)

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "umbra.json")

	doc := map[string]interface{}{
		"languageOverride":     "de",
		"logLevel":             "debug",
		"notificationsEnabled": true,
		"disabledPlugins":      []string{"broken-plugin"},
	}
	data, _ := json.Marshal(doc)
	os.WriteFile(configPath, data, 0644)

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.LanguageOverride != types.LanguageGerman {
		t.Errorf("expected language override de, got %s", cfg.LanguageOverride)
	}
	if cfg.LogLevel != types.LogLevelDebug {
		t.Errorf("expected debug log level, got %s", cfg.LogLevel)
	}
	if len(cfg.DisabledPlugins) != 1 || cfg.DisabledPlugins[0] != "broken-plugin" {
		t.Errorf("unexpected disabled plugins: %v", cfg.DisabledPlugins)
	}
}

func TestLoadYAMLFallback(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "umbra.yaml")

	yaml := "languageOverride: fr\nlogLevel: warn\nnotificationsEnabled: false\n"
	os.WriteFile(configPath, []byte(yaml), 0644)

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("failed to load yaml config: %v", err)
	}

	if cfg.LanguageOverride != types.LanguageFrench {
		t.Errorf("expected fr override, got %s", cfg.LanguageOverride)
	}
	if cfg.NotificationsEnabled {
		t.Error("expected notifications disabled")
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.LanguageOverride != "" {
		t.Errorf("defaults should have no override, got %s", cfg.LanguageOverride)
	}
	if cfg.LogLevel != types.LogLevelInfo {
		t.Errorf("defaults should be info level, got %s", cfg.LogLevel)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "umbra.json")
	os.WriteFile(configPath, []byte("{not json: [nor yaml"), 0644)

	if _, err := config.Load(configPath); err == nil {
		t.Fatal("malformed config should fail to load")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "umbra.json")

	want := config.Defaults()
	want.LanguageOverride = types.LanguageJapanese
	want.DevPluginPaths = []string{"/dev/plugins"}

	if err := config.Save(configPath, want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got.LanguageOverride != want.LanguageOverride {
		t.Errorf("language round trip mismatch: %s", got.LanguageOverride)
	}
	if len(got.DevPluginPaths) != 1 {
		t.Errorf("dev plugin paths lost: %v", got.DevPluginPaths)
	}
}

func TestReloadManagerNotifiesOnRewrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "umbra.json")
	if err := config.Save(configPath, config.Defaults()); err != nil {
		t.Fatalf("initial save failed: %v", err)
	}

	log := logger.CreateLoggerWithOutput("error", nil)
	rm := config.NewReloadManager(configPath, log)

	reloaded := make(chan *config.RuntimeConfig, 1)
	rm.AddCallback(func(cfg *config.RuntimeConfig, err error) {
		if err == nil {
			select {
			case reloaded <- cfg:
			default:
			}
		}
	})

	if err := rm.StartWatching(); err != nil {
		t.Fatalf("start watching failed: %v", err)
	}
	defer rm.StopWatching()

	updated := config.Defaults()
	updated.LanguageOverride = types.LanguageGerman
	if err := config.Save(configPath, updated); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.LanguageOverride != types.LanguageGerman {
			t.Errorf("reloaded config missing override: %s", cfg.LanguageOverride)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestReloadManagerTriggerReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "umbra.json")
	config.Save(configPath, config.Defaults())

	log := logger.CreateLoggerWithOutput("error", nil)
	rm := config.NewReloadManager(configPath, log)

	called := make(chan struct{}, 1)
	rm.AddCallback(func(cfg *config.RuntimeConfig, err error) {
		if err == nil && cfg != nil {
			select {
			case called <- struct{}{}:
			default:
			}
		}
	})

	rm.TriggerReload()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("manual trigger did not notify callbacks")
	}
}
