package supervisor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/umbralabs/umbra/internal/supervisor"
	"github.com/umbralabs/umbra/pkg/config"
	"github.com/umbralabs/umbra/pkg/interfaces"
	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/mocks"
	"github.com/umbralabs/umbra/pkg/types"
)

func testLog() logger.Logger {
	return logger.CreateLoggerWithOutput("error", nil)
}

func testStartInfo(t *testing.T) types.StartInfo {
	t.Helper()
	dir := t.TempDir()
	return types.StartInfo{
		WorkingDirectory:  dir,
		AssetDirectory:    dir,
		PluginDirectory:   dir,
		ConfigurationPath: dir + "/umbra.json",
		Language:          types.LanguageEnglish,
		GameVersion:       "2026.08.01.0000",
	}
}

// gateDate is the seasonal module's active day
var gateDate = time.Date(2026, time.September, 16, 12, 0, 0, 0, time.UTC)

func newSupervisor(t *testing.T, f *mocks.MockFactory, deps interfaces.UmbraDependencies) *supervisor.Supervisor {
	t.Helper()
	deps.Factory = f
	s, err := supervisor.New(testStartInfo(t), deps, testLog())
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	return s
}

func TestStartReachesReady(t *testing.T) {
	f := mocks.NewMockFactory()
	notifier := &mocks.MockNotifier{}
	s := newSupervisor(t, f, interfaces.UmbraDependencies{Notifier: notifier})

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if !s.IsReady() {
		t.Error("supervisor should be ready")
	}
	if s.State() != types.StateReady {
		t.Errorf("state = %s", s.State())
	}
	if len(notifier.Ready) != 1 {
		t.Errorf("ready notifications = %v", notifier.Ready)
	}

	// host hooks enabled, framework before client state
	fw := f.Log.Index("enable:framework")
	cs := f.Log.Index("enable:client-state")
	if fw == -1 || cs == -1 || fw > cs {
		t.Errorf("hook enable order wrong: framework=%d client-state=%d", fw, cs)
	}

	if err := s.Start(context.Background(), types.Toggles{}); err == nil {
		t.Error("second Start must fail")
	}
}

func TestStartSnapshotRecordsEverySubsystem(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.SessionID == "" {
		t.Error("snapshot needs a session id")
	}
	recorded := make(map[types.SubsystemName]bool)
	for _, step := range snap.Steps {
		recorded[step.Subsystem] = true
	}
	for _, want := range []types.SubsystemName{
		types.SubsystemConfig, types.SubsystemScanner, types.SubsystemDataAssets,
		types.SubsystemOverlay, types.SubsystemPlugins, types.SubsystemHostHooks,
	} {
		if !recorded[want] {
			t.Errorf("snapshot missing step for %s", want)
		}
	}
}

func TestDataAssetFailureShortCircuits(t *testing.T) {
	f := mocks.NewMockFactory()
	f.FailDataAssets = errors.New("tables unreadable")
	notifier := &mocks.MockNotifier{}
	s := newSupervisor(t, f, interfaces.UmbraDependencies{Notifier: notifier})

	if err := s.Start(context.Background(), types.Toggles{}); err == nil {
		t.Fatal("start should report the fatal failure")
	}

	if s.IsReady() {
		t.Error("supervisor must not be ready")
	}
	if s.State() != types.StateFailedDuringStart {
		t.Errorf("state = %s", s.State())
	}

	// no later step may have run
	for _, name := range f.Built {
		switch name {
		case "string-decoder", "command-router", "chat-features", "plugin-runtime":
			t.Errorf("step %s ran after the fatal failure", name)
		}
	}

	// unload must have been triggered
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.WaitForUnload(ctx); err != nil {
		t.Error("unload signal should be set after a fatal failure")
	}
	if len(notifier.Failed) != 1 {
		t.Errorf("failure notifications = %v", notifier.Failed)
	}
}

func TestConfigFailureIsFatal(t *testing.T) {
	f := mocks.NewMockFactory()
	f.FailConfig = errors.New("malformed document")
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})

	if err := s.Start(context.Background(), types.Toggles{}); err == nil {
		t.Fatal("malformed configuration must abort startup")
	}
	if len(f.Built) != 0 {
		t.Errorf("nothing should construct after config failure, built %v", f.Built)
	}
}

func TestOverlayFailureIsSoft(t *testing.T) {
	f := mocks.NewMockFactory()
	f.FailOverlay = errors.New("present routine missing")
	s := newSupervisor(t, f, interfaces.UmbraDependencies{
		Clock: func() time.Time { return gateDate },
	})

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatalf("overlay failure must not abort startup: %v", err)
	}
	if !s.IsReady() {
		t.Error("supervisor should still reach ready")
	}

	// the seasonal module saw no draw source and stayed inert
	if f.Seasonal == nil {
		t.Fatal("seasonal module should still have been constructed on its date")
	}
	if f.Seasonal.Attached() {
		t.Error("seasonal module must not attach without an overlay")
	}

	// later subsystems still constructed
	if f.Log.Index("new:plugin-runtime") == -1 {
		t.Error("plugin runtime should still construct after overlay failure")
	}
}

func TestSeasonalAttachesOnGateDate(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{
		Clock: func() time.Time { return gateDate },
	})

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}
	if f.Log.Index("attach:seasonal") == -1 {
		t.Error("seasonal module should attach on its date")
	}
}

func TestSeasonalSkippedOffDate(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{
		Clock: func() time.Time { return gateDate.AddDate(0, 0, 1) },
	})

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}
	if f.Seasonal != nil {
		t.Error("seasonal module must not construct off its date")
	}
}

func TestLanguageOverrideBranch(t *testing.T) {
	f := mocks.NewMockFactory()
	deps := interfaces.UmbraDependencies{Factory: f}
	si := testStartInfo(t)
	si.Language = types.LanguageGerman

	s, err := supervisor.New(si, deps, testLog())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}

	if f.LocalizationOverride != types.LanguageGerman {
		t.Errorf("localization should take the override path, got %q", f.LocalizationOverride)
	}
}

func TestConfigOverrideWinsOverStartInfo(t *testing.T) {
	f := mocks.NewMockFactory()
	f.Config.LanguageOverride = "fr"
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}
	if f.LocalizationOverride != types.LanguageFrench {
		t.Errorf("persisted override should win, got %q", f.LocalizationOverride)
	}
}

func TestConfigDisablesNotifications(t *testing.T) {
	f := mocks.NewMockFactory()
	f.Config.NotificationsEnabled = false
	notifier := &mocks.MockNotifier{}
	s := newSupervisor(t, f, interfaces.UmbraDependencies{Notifier: notifier})

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}
	if len(notifier.Ready) != 0 {
		t.Errorf("persisted setting should silence notifications, got %v", notifier.Ready)
	}
}

func TestDevPluginPathsAreWatched(t *testing.T) {
	f := mocks.NewMockFactory()
	f.Config.DevPluginPaths = []string{"/src/my-plugin"}
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}
	if f.Plugins == nil {
		t.Fatal("plugin runtime never constructed")
	}
	if len(f.Plugins.WatchedPaths) != 1 || f.Plugins.WatchedPaths[0] != "/src/my-plugin" {
		t.Errorf("watched paths = %v", f.Plugins.WatchedPaths)
	}
}

func TestNoDevPluginPathsNoWatch(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}
	if f.Log.Index("watch:plugin-runtime") != -1 {
		t.Error("no dev paths configured, nothing should be watched")
	}
}

func TestStartRecordsHostVersion(t *testing.T) {
	f := mocks.NewMockFactory()
	deps := interfaces.UmbraDependencies{Factory: f}
	si := testStartInfo(t)

	s, err := supervisor.New(si, deps, testLog())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(si.ConfigurationPath)
	if err != nil {
		t.Fatalf("persisted config unreadable: %v", err)
	}
	if cfg.LastSeenGameVersion != si.GameVersion {
		t.Errorf("last seen version = %q, want %q", cfg.LastSeenGameVersion, si.GameVersion)
	}
}

func TestNoPluginsToggleSkipsCleanupAndLoad(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})

	if err := s.Start(context.Background(), types.Toggles{NoPlugins: true}); err != nil {
		t.Fatal(err)
	}

	if !s.IsReady() {
		t.Error("supervisor should reach ready with plugins suppressed")
	}
	if f.Catalog != nil && f.Catalog.Cleanups != 0 {
		t.Error("catalog cleanup must not run")
	}
	if f.Log.Index("new:plugin-runtime") != -1 {
		t.Error("plugin runtime must not construct")
	}
}

func TestNoOverlayToggleSkipsOverlay(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})

	if err := s.Start(context.Background(), types.Toggles{NoOverlay: true}); err != nil {
		t.Fatal(err)
	}
	if f.Log.Index("new:overlay") != -1 {
		t.Error("overlay must not construct when suppressed")
	}
	if !s.IsReady() {
		t.Error("supervisor should still reach ready")
	}
}

func TestUnloadIsIdempotentAndNonBlocking(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})
	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}

	s.Unload()
	s.Unload()
	s.Unload()

	if s.State() != types.StateUnloading {
		t.Errorf("state = %s", s.State())
	}
	if err := s.WaitForUnload(context.Background()); err != nil {
		t.Errorf("wait after unload should return immediately: %v", err)
	}
}

func TestWaitForUnloadBlocksUntilRequested(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.WaitForUnload(ctx); err == nil {
		t.Error("wait should block until unload is requested")
	}

	done := make(chan error, 1)
	go func() {
		done <- s.WaitForUnload(context.Background())
	}()
	s.Unload()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("waiter returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestWaitForUnloadFinishObservesCallerSignal(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})
	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.WaitForUnloadFinish(context.Background())
	}()

	// the host protocol: unload, dispose, then the caller marks finish
	s.Unload()
	s.Dispose()
	s.UnloadFinished().Set()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("finish waiter returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("finish waiter never woke up")
	}
}

func TestDisposalOrderOverlayBeforePlugins(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{
		Clock: func() time.Time { return gateDate },
	})
	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}

	s.Unload()
	s.Dispose()
	s.Dispose() // extra calls are no-ops

	if s.State() != types.StateDisposed {
		t.Errorf("state = %s", s.State())
	}

	seasonal := f.Log.Index("dispose:seasonal")
	overlay := f.Log.Index("dispose:overlay")
	plugins := f.Log.Index("dispose:plugin-runtime")
	scanner := f.Log.Index("release:process-context")
	assets := f.Log.Index("dispose:data-assets")
	guard := f.Log.Index("dispose:hook-guard")

	for name, idx := range map[string]int{
		"seasonal": seasonal, "overlay": overlay, "plugins": plugins,
		"scanner": scanner, "assets": assets, "guard": guard,
	} {
		if idx == -1 {
			t.Fatalf("%s was never disposed", name)
		}
	}

	if !(seasonal < overlay && overlay < plugins) {
		t.Errorf("dispose order wrong: seasonal=%d overlay=%d plugins=%d",
			seasonal, overlay, plugins)
	}
	if !(plugins < scanner && scanner < assets && assets < guard) {
		t.Errorf("tail dispose order wrong: plugins=%d scanner=%d assets=%d guard=%d",
			plugins, scanner, assets, guard)
	}
}

func TestDisposeToleratesPanickingStep(t *testing.T) {
	f := mocks.NewMockFactory()
	notifier := &mocks.MockNotifier{}
	s := newSupervisor(t, f, interfaces.UmbraDependencies{Notifier: notifier})
	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}
	f.Overlay.DisposePanic = true

	s.Unload()
	s.Dispose()

	if s.State() != types.StateDisposed {
		t.Errorf("state = %s", s.State())
	}
	if f.Log.Index("dispose:plugin-runtime") == -1 {
		t.Error("steps after the panicking one must still run")
	}
	if notifier.Unloaded != 1 {
		t.Errorf("unload notifications = %d", notifier.Unloaded)
	}
}

func TestReplaceExceptionFilterRequiresReady(t *testing.T) {
	f := mocks.NewMockFactory()
	s := newSupervisor(t, f, interfaces.UmbraDependencies{})

	if _, err := s.ReplaceExceptionFilter(0xDEADBEEF); err == nil {
		t.Error("replacement before ready must fail")
	}

	if err := s.Start(context.Background(), types.Toggles{}); err != nil {
		t.Fatal(err)
	}

	prev, err := s.ReplaceExceptionFilter(0xDEADBEEF)
	if err != nil {
		t.Fatalf("replacement failed: %v", err)
	}
	if prev != 0x140001000 {
		t.Errorf("previous filter = %s", prev)
	}
}

func TestNewRejectsBadStartInfo(t *testing.T) {
	_, err := supervisor.New(types.StartInfo{}, interfaces.UmbraDependencies{
		Factory: mocks.NewMockFactory(),
	}, testLog())
	if err == nil {
		t.Error("empty start info must be rejected")
	}

	si := testStartInfo(t)
	_, err = supervisor.New(si, interfaces.UmbraDependencies{}, testLog())
	if err == nil {
		t.Error("missing factory must be rejected")
	}
}
