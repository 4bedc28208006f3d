// Package mocks provides hand-written fakes for the supervisor's
// collaborators, with failure injection and a shared call log for
// ordering assertions.
package mocks

import (
	"context"
	"sync"

	"github.com/umbralabs/umbra/pkg/config"
	"github.com/umbralabs/umbra/pkg/interfaces"
	"github.com/umbralabs/umbra/pkg/overlay"
	"github.com/umbralabs/umbra/pkg/procmem"
	"github.com/umbralabs/umbra/pkg/types"
)

// CallLog records lifecycle events in the order they happened
type CallLog struct {
	mu     sync.Mutex
	events []string
}

// Record appends one event
func (l *CallLog) Record(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of everything recorded so far
func (l *CallLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

// Index returns the position of the first matching event, or -1
func (l *CallLog) Index(event string) int {
	for i, e := range l.Events() {
		if e == event {
			return i
		}
	}
	return -1
}

// MockSubsystem is a generic enable/disable/dispose handle
type MockSubsystem struct {
	Name      string
	Log       *CallLog
	EnableErr error
}

func (m *MockSubsystem) Enable() error {
	if m.EnableErr != nil {
		return m.EnableErr
	}
	m.Log.Record("enable:" + m.Name)
	return nil
}

func (m *MockSubsystem) Disable() {
	m.Log.Record("disable:" + m.Name)
}

func (m *MockSubsystem) Dispose() {
	m.Log.Record("dispose:" + m.Name)
}

// MockProcessContext fakes the host module handle
type MockProcessContext struct {
	Log      *CallLog
	released bool
}

func (m *MockProcessContext) Release() {
	m.released = true
	m.Log.Record("release:process-context")
}

func (m *MockProcessContext) Released() bool { return m.released }

// MockLocalization records which language branch was taken
type MockLocalization struct {
	Lang         types.LanguageTag
	OverrideUsed bool
}

func (m *MockLocalization) Language() types.LanguageTag { return m.Lang }
func (m *MockLocalization) UsedOverride() bool          { return m.OverrideUsed }
func (m *MockLocalization) Tr(key string) string        { return key }

// MockCatalog counts cleanup invocations
type MockCatalog struct {
	Log        *CallLog
	CleanupErr error
	Cleanups   int
}

func (m *MockCatalog) CleanupStalePlugins() (int, error) {
	m.Cleanups++
	m.Log.Record("cleanup:plugin-catalog")
	return 0, m.CleanupErr
}

// MockShell counts draws
type MockShell struct {
	Log   *CallLog
	Draws int
}

func (m *MockShell) Draw()    { m.Draws++ }
func (m *MockShell) Dispose() { m.Log.Record("dispose:ui-shell") }

// MockOverlay fakes the rendering runtime; font rebuild completes
// immediately.
type MockOverlay struct {
	Log          *CallLog
	EnableErr    error
	DisposePanic bool

	mu     sync.Mutex
	nextID int
	subs   map[int]overlay.DrawFunc
}

func (m *MockOverlay) OnDraw(fn overlay.DrawFunc) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[int]overlay.DrawFunc)
	}
	m.nextID++
	m.subs[m.nextID] = fn
	m.Log.Record("subscribe:overlay")
	return m.nextID
}

func (m *MockOverlay) Unsubscribe(token int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, token)
}

func (m *MockOverlay) Enable() error {
	if m.EnableErr != nil {
		return m.EnableErr
	}
	m.Log.Record("enable:overlay")
	return nil
}

func (m *MockOverlay) WaitForFontRebuild(ctx context.Context) error { return nil }

func (m *MockOverlay) Dispose() {
	if m.DisposePanic {
		panic("overlay dispose blew up")
	}
	m.Log.Record("dispose:overlay")
}

// MockSeasonal attaches only when a draw source is present
type MockSeasonal struct {
	Log      *CallLog
	attached bool
}

func (m *MockSeasonal) Attach(source overlay.DrawSource) bool {
	if source == nil {
		return false
	}
	m.attached = true
	m.Log.Record("attach:seasonal")
	return true
}

func (m *MockSeasonal) Attached() bool { return m.attached }

func (m *MockSeasonal) Dispose() { m.Log.Record("dispose:seasonal") }

// MockDataAssets fakes the data tables
type MockDataAssets struct {
	Log *CallLog
}

func (m *MockDataAssets) Lookup(sheet string, row uint32) (string, bool) { return "", false }
func (m *MockDataAssets) Dispose()                                       { m.Log.Record("dispose:data-assets") }

// MockDecoder passes bytes through
type MockDecoder struct{}

func (MockDecoder) Decode(encoded []byte) string { return string(encoded) }

// MockRouter records dispatches
type MockRouter struct {
	Log        *CallLog
	Dispatched []string
}

func (m *MockRouter) Dispatch(input string) error {
	m.Dispatched = append(m.Dispatched, input)
	return nil
}

func (m *MockRouter) Dispose() { m.Log.Record("dispose:command-router") }

// MockChat is an inert chat feature set
type MockChat struct {
	Log *CallLog
}

func (m *MockChat) Enable() error                  { m.Log.Record("enable:chat-features"); return nil }
func (m *MockChat) HandleInput(sender, text string) {}
func (m *MockChat) Print(text string)               {}
func (m *MockChat) Dispose()                        { m.Log.Record("dispose:chat-features") }

// MockPluginRuntime fakes extension loading
type MockPluginRuntime struct {
	Log          *CallLog
	LoadErr      error
	Names        []string
	WatchedPaths []string
}

func (m *MockPluginRuntime) LoadAll(ctx context.Context) (int, error) {
	if m.LoadErr != nil {
		return 0, m.LoadErr
	}
	m.Log.Record("load:plugin-runtime")
	return len(m.Names), nil
}

func (m *MockPluginRuntime) LoadedPlugins() []string { return m.Names }

func (m *MockPluginRuntime) WatchDevPaths(paths []string) error {
	m.WatchedPaths = append(m.WatchedPaths, paths...)
	m.Log.Record("watch:plugin-runtime")
	return nil
}

func (m *MockPluginRuntime) Dispose() { m.Log.Record("dispose:plugin-runtime") }

// MockPatcher fakes exception filter replacement
type MockPatcher struct {
	Previous procmem.Address
	Current_ procmem.Address
}

func (m *MockPatcher) Replace(newFilter procmem.Address) (procmem.Address, error) {
	prev := m.Previous
	m.Previous = newFilter
	m.Current_ = newFilter
	return prev, nil
}

func (m *MockPatcher) Current() (procmem.Address, error) { return m.Current_, nil }

// MockNotifier records session notifications. Disabled mirrors the
// real notifier: once set, deliveries are dropped.
type MockNotifier struct {
	mu       sync.Mutex
	Disabled bool
	Ready    []string
	Failed   []error
	Unloaded int
}

func (m *MockNotifier) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disabled = !enabled
}

func (m *MockNotifier) NotifyReady(gameVersion string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disabled {
		return
	}
	m.Ready = append(m.Ready, gameVersion)
}

func (m *MockNotifier) NotifyStartupFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disabled {
		return
	}
	m.Failed = append(m.Failed, err)
}

func (m *MockNotifier) NotifyUnloaded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disabled {
		return
	}
	m.Unloaded++
}

// MockFactory builds mock subsystems and records every construction.
// Any Fail* field short-circuits that product with the given error.
type MockFactory struct {
	Log *CallLog

	Config     *config.RuntimeConfig
	FailConfig error

	FailScanner      error
	FailHookGuard    error
	FailFramework    error
	FailNetOptimizer error
	FailNetHandlers  error
	FailClientState  error
	FailLocalization error
	FailCatalog      error
	FailShell        error
	FailOverlay      error
	FailDataAssets   error
	FailDecoder      error
	FailRouter       error
	FailChat         error
	FailPlugins      error

	FrameworkEnableErr error
	PluginNames        []string

	// LocalizationOverride captures what override the supervisor
	// resolved.
	LocalizationOverride types.LanguageTag

	Built []string

	Catalog  *MockCatalog
	Overlay  *MockOverlay
	Seasonal *MockSeasonal
	Plugins  *MockPluginRuntime
}

// NewMockFactory creates a factory whose products all succeed
func NewMockFactory() *MockFactory {
	return &MockFactory{
		Log:    &CallLog{},
		Config: config.Defaults(),
	}
}

func (f *MockFactory) built(name string) {
	f.Built = append(f.Built, name)
	f.Log.Record("new:" + name)
}

func (f *MockFactory) LoadConfig(path string) (*config.RuntimeConfig, error) {
	if f.FailConfig != nil {
		return nil, f.FailConfig
	}
	f.built("configuration")
	return f.Config, nil
}

func (f *MockFactory) AcquireProcessContext() (interfaces.ProcessContext, error) {
	if f.FailScanner != nil {
		return nil, f.FailScanner
	}
	f.built("pattern-scanner")
	return &MockProcessContext{Log: f.Log}, nil
}

func (f *MockFactory) NewHookGuard() (interfaces.HookGuard, error) {
	if f.FailHookGuard != nil {
		return nil, f.FailHookGuard
	}
	f.built("hook-guard")
	return &MockSubsystem{Name: "hook-guard", Log: f.Log}, nil
}

func (f *MockFactory) NewFramework() (interfaces.Framework, error) {
	if f.FailFramework != nil {
		return nil, f.FailFramework
	}
	f.built("framework")
	return &MockSubsystem{Name: "framework", Log: f.Log, EnableErr: f.FrameworkEnableErr}, nil
}

func (f *MockFactory) NewNetworkOptimizer() (interfaces.NetworkOptimizer, error) {
	if f.FailNetOptimizer != nil {
		return nil, f.FailNetOptimizer
	}
	f.built("network-optimizer")
	return &MockSubsystem{Name: "network-optimizer", Log: f.Log}, nil
}

func (f *MockFactory) NewNetworkHandlers() (interfaces.NetworkHandlers, error) {
	if f.FailNetHandlers != nil {
		return nil, f.FailNetHandlers
	}
	f.built("network-handlers")
	return &MockSubsystem{Name: "network-handlers", Log: f.Log}, nil
}

func (f *MockFactory) NewClientState() (interfaces.ClientState, error) {
	if f.FailClientState != nil {
		return nil, f.FailClientState
	}
	f.built("client-state")
	return &MockSubsystem{Name: "client-state", Log: f.Log}, nil
}

func (f *MockFactory) NewLocalization(override types.LanguageTag) (interfaces.Localization, error) {
	if f.FailLocalization != nil {
		return nil, f.FailLocalization
	}
	f.built("localization")
	f.LocalizationOverride = override
	lang := override
	used := override != ""
	if lang == "" {
		lang = types.LanguageEnglish
	}
	return &MockLocalization{Lang: lang, OverrideUsed: used}, nil
}

func (f *MockFactory) NewPluginCatalog() (interfaces.PluginCatalog, error) {
	if f.FailCatalog != nil {
		return nil, f.FailCatalog
	}
	f.built("plugin-catalog")
	f.Catalog = &MockCatalog{Log: f.Log}
	return f.Catalog, nil
}

func (f *MockFactory) NewUIShell() (interfaces.UIShell, error) {
	if f.FailShell != nil {
		return nil, f.FailShell
	}
	f.built("ui-shell")
	return &MockShell{Log: f.Log}, nil
}

func (f *MockFactory) NewOverlay() (interfaces.Overlay, error) {
	if f.FailOverlay != nil {
		return nil, f.FailOverlay
	}
	f.built("overlay")
	f.Overlay = &MockOverlay{Log: f.Log}
	return f.Overlay, nil
}

func (f *MockFactory) NewSeasonal() interfaces.Seasonal {
	f.built("seasonal")
	f.Seasonal = &MockSeasonal{Log: f.Log}
	return f.Seasonal
}

func (f *MockFactory) NewDataAssets(language types.LanguageTag) (interfaces.DataAssets, error) {
	if f.FailDataAssets != nil {
		return nil, f.FailDataAssets
	}
	f.built("data-assets")
	return &MockDataAssets{Log: f.Log}, nil
}

func (f *MockFactory) NewStringDecoder() (interfaces.StringDecoder, error) {
	if f.FailDecoder != nil {
		return nil, f.FailDecoder
	}
	f.built("string-decoder")
	return MockDecoder{}, nil
}

func (f *MockFactory) NewCommandRouter() (interfaces.CommandRouter, error) {
	if f.FailRouter != nil {
		return nil, f.FailRouter
	}
	f.built("command-router")
	return &MockRouter{Log: f.Log}, nil
}

func (f *MockFactory) NewChatFeatures(router interfaces.CommandRouter) (interfaces.ChatFeatures, error) {
	if f.FailChat != nil {
		return nil, f.FailChat
	}
	f.built("chat-features")
	return &MockChat{Log: f.Log}, nil
}

func (f *MockFactory) NewPluginRuntime() (interfaces.PluginRuntime, error) {
	if f.FailPlugins != nil {
		return nil, f.FailPlugins
	}
	f.built("plugin-runtime")
	f.Plugins = &MockPluginRuntime{Log: f.Log, Names: f.PluginNames}
	return f.Plugins, nil
}

func (f *MockFactory) NewExceptionFilterPatcher() interfaces.ExceptionFilterPatcher {
	f.built("exception-filter")
	return &MockPatcher{Previous: 0x140001000}
}
