// Package types provides core types and configuration records for Umbra
package types

import (
	"fmt"
	"path/filepath"
)

// LanguageTag identifies a localization language
type LanguageTag string

const (
	LanguageEnglish  LanguageTag = "en"
	LanguageGerman   LanguageTag = "de"
	LanguageFrench   LanguageTag = "fr"
	LanguageJapanese LanguageTag = "ja"
)

// LifecycleState represents the supervisor's position in its state machine
type LifecycleState int32

const (
	StateNotStarted LifecycleState = iota
	StateStarting
	StateReady
	StateFailedDuringStart
	StateUnloading
	StateDisposed
)

// String returns a human-readable state name
func (s LifecycleState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailedDuringStart:
		return "failed-during-start"
	case StateUnloading:
		return "unloading"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// StartInfo is the externally supplied, immutable bootstrap record.
// It is handed to the supervisor once, at construction, by the injecting
// caller and never mutated afterwards. Paths are not validated up front;
// a bad path surfaces as the owning subsystem's construction error.
type StartInfo struct {
	// WorkingDirectory is where session state and logs are written
	WorkingDirectory string `json:"workingDirectory"`

	// AssetDirectory holds game data tables and locale files
	AssetDirectory string `json:"assetDirectory"`

	// PluginDirectory is the primary third-party extension directory
	PluginDirectory string `json:"pluginDirectory"`

	// DefaultPluginDirectory is the fallback extension directory
	DefaultPluginDirectory string `json:"defaultPluginDirectory"`

	// ConfigurationPath is the persisted key-value settings document
	ConfigurationPath string `json:"configurationPath"`

	// Language is the target language tag for localization
	Language LanguageTag `json:"language"`

	// GameVersion is the host game's version tag, used for stale
	// plugin cleanup
	GameVersion string `json:"gameVersion"`

	// NoTelemetry suppresses outbound notifications and analytics
	NoTelemetry bool `json:"noTelemetry"`
}

// Validate performs the minimal sanity checks the supervisor relies on.
// Deeper path validation is deliberately left to the owning subsystems.
func (si *StartInfo) Validate() error {
	if si.WorkingDirectory == "" {
		return fmt.Errorf("start info: working directory is required")
	}
	if si.ConfigurationPath == "" {
		return fmt.Errorf("start info: configuration path is required")
	}
	if !filepath.IsAbs(si.WorkingDirectory) {
		return fmt.Errorf("start info: working directory must be absolute: %s", si.WorkingDirectory)
	}
	return nil
}

// Toggles are the boolean startup switches resolved once by the caller
// and passed into Start, replacing ad hoc environment variable reads.
type Toggles struct {
	// NoOverlay suppresses overlay runtime construction (startup step 8)
	NoOverlay bool `json:"noOverlay"`

	// NoPlugins suppresses catalog cleanup and plugin loading (step 14)
	NoPlugins bool `json:"noPlugins"`
}

// SubsystemName identifies a supervised subsystem in logs, the disposal
// schedule, and the diagnostic snapshot.
type SubsystemName string

const (
	SubsystemConfig        SubsystemName = "configuration"
	SubsystemScanner       SubsystemName = "pattern-scanner"
	SubsystemHookGuard     SubsystemName = "hook-guard"
	SubsystemFramework     SubsystemName = "framework"
	SubsystemNetOptimizer  SubsystemName = "network-optimizer"
	SubsystemNetHandlers   SubsystemName = "network-handlers"
	SubsystemClientState   SubsystemName = "client-state"
	SubsystemLocalization  SubsystemName = "localization"
	SubsystemPluginCatalog SubsystemName = "plugin-catalog"
	SubsystemUIShell       SubsystemName = "ui-shell"
	SubsystemOverlay       SubsystemName = "overlay"
	SubsystemSeasonal      SubsystemName = "seasonal"
	SubsystemDataAssets    SubsystemName = "data-assets"
	SubsystemStringDecoder SubsystemName = "string-decoder"
	SubsystemCommands      SubsystemName = "command-router"
	SubsystemChat          SubsystemName = "chat-features"
	SubsystemPlugins       SubsystemName = "plugin-runtime"
	SubsystemHostHooks     SubsystemName = "host-hooks"
	SubsystemUnloadSignal  SubsystemName = "unload-signal"
)
