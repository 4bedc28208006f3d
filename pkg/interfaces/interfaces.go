// Package interfaces defines the contracts between the supervisor and
// the subsystems it constructs, plus the injectable dependency set.
package interfaces

import (
	"context"
	"time"

	"github.com/umbralabs/umbra/pkg/config"
	"github.com/umbralabs/umbra/pkg/overlay"
	"github.com/umbralabs/umbra/pkg/procmem"
	"github.com/umbralabs/umbra/pkg/signals"
	"github.com/umbralabs/umbra/pkg/types"
)

// ProcessContext owns the host module view acquired at startup
type ProcessContext interface {
	Release()
	Released() bool
}

// Framework drives the host's per-frame update pump
type Framework interface {
	Enable() error
	Disable()
	Dispose()
}

// ClientState tracks the player session
type ClientState interface {
	Enable() error
	Disable()
	Dispose()
}

// NetworkHandlers intercepts game packet dispatch
type NetworkHandlers interface {
	Enable() error
	Disable()
	Dispose()
}

// NetworkOptimizer tunes host socket behavior
type NetworkOptimizer interface {
	Enable() error
	Disable()
	Dispose()
}

// HookGuard neutralizes the host's debugger detection
type HookGuard interface {
	Enable() error
	Disable()
	Dispose()
}

// Localization serves translated strings for the session language
type Localization interface {
	Language() types.LanguageTag
	UsedOverride() bool
	Tr(key string) string
}

// PluginCatalog is the installed-plugin repository
type PluginCatalog interface {
	CleanupStalePlugins() (int, error)
}

// UIShell is the interface shell drawn over the host
type UIShell interface {
	Draw()
	Dispose()
}

// Overlay is the rendering subsystem and its draw event
type Overlay interface {
	OnDraw(fn overlay.DrawFunc) int
	Unsubscribe(token int)
	Enable() error
	WaitForFontRebuild(ctx context.Context) error
	Dispose()
}

// Seasonal is the date-gated celebration module
type Seasonal interface {
	Attach(source overlay.DrawSource) bool
	Dispose()
}

// DataAssets serves the loaded game data tables
type DataAssets interface {
	Lookup(sheet string, row uint32) (string, bool)
	Dispose()
}

// StringDecoder decodes payload-encoded strings
type StringDecoder interface {
	Decode(encoded []byte) string
}

// CommandRouter dispatches slash commands
type CommandRouter interface {
	Dispatch(input string) error
	Dispose()
}

// ChatFeatures is the chat interception feature set
type ChatFeatures interface {
	Enable() error
	HandleInput(sender, text string)
	Print(text string)
	Dispose()
}

// PluginRuntime loads and owns third-party extensions
type PluginRuntime interface {
	LoadAll(ctx context.Context) (int, error)
	LoadedPlugins() []string
	WatchDevPaths(paths []string) error
	Dispose()
}

// ExceptionFilterPatcher swaps the host's native exception filter
type ExceptionFilterPatcher interface {
	Replace(newFilter procmem.Address) (procmem.Address, error)
	Current() (procmem.Address, error)
}

// SessionNotifier posts desktop notifications for session milestones
type SessionNotifier interface {
	SetEnabled(enabled bool)
	NotifyReady(gameVersion string)
	NotifyStartupFailed(err error)
	NotifyUnloaded()
}

// SubsystemFactory constructs the supervised subsystems in startup
// order. Implementations may be stateful: later products may depend on
// earlier ones the factory retains internally.
type SubsystemFactory interface {
	LoadConfig(path string) (*config.RuntimeConfig, error)
	AcquireProcessContext() (ProcessContext, error)
	NewHookGuard() (HookGuard, error)
	NewFramework() (Framework, error)
	NewNetworkOptimizer() (NetworkOptimizer, error)
	NewNetworkHandlers() (NetworkHandlers, error)
	NewClientState() (ClientState, error)
	NewLocalization(override types.LanguageTag) (Localization, error)
	NewPluginCatalog() (PluginCatalog, error)
	NewUIShell() (UIShell, error)
	NewOverlay() (Overlay, error)
	NewSeasonal() Seasonal
	NewDataAssets(language types.LanguageTag) (DataAssets, error)
	NewStringDecoder() (StringDecoder, error)
	NewCommandRouter() (CommandRouter, error)
	NewChatFeatures(router CommandRouter) (ChatFeatures, error)
	NewPluginRuntime() (PluginRuntime, error)
	NewExceptionFilterPatcher() ExceptionFilterPatcher
}

// UmbraDependencies contains all injectable collaborators of the
// supervisor.
type UmbraDependencies struct {
	Factory  SubsystemFactory
	Notifier SessionNotifier

	// Clock feeds the date gate and step timings. Nil means wall time.
	Clock func() time.Time

	// UnloadFinished is the caller-owned completion signal. Nil lets
	// the supervisor allocate its own.
	UnloadFinished *signals.OneShot
}
