// Package supervisor orchestrates the ordered bring-up and tear-down
// of every subsystem in the injected runtime.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/umbralabs/umbra/pkg/config"
	"github.com/umbralabs/umbra/pkg/diagnostics"
	"github.com/umbralabs/umbra/pkg/interfaces"
	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/overlay"
	"github.com/umbralabs/umbra/pkg/procmem"
	"github.com/umbralabs/umbra/pkg/signals"
	"github.com/umbralabs/umbra/pkg/types"
)

// startPolicy says what a step failure does to the rest of startup
type startPolicy int

const (
	// policyFatal aborts startup and forces full unload
	policyFatal startPolicy = iota

	// policySoft logs the failure and continues without the subsystem
	policySoft
)

// startStep is one row of the startup schedule
type startStep struct {
	name   types.SubsystemName
	policy startPolicy

	// skip, when non-nil and true, bypasses the step entirely
	skip func() bool

	run func(ctx context.Context) error
}

// Supervisor owns the subsystem handles, the lifecycle state machine
// and the cross-thread unload protocol.
type Supervisor struct {
	logger    logger.Logger
	startInfo types.StartInfo
	deps      interfaces.UmbraDependencies
	clock     func() time.Time

	state atomic.Int32

	// unload.UnloadRequested is supervisor-owned; unload.UnloadFinished
	// is set by the caller after Dispose returns.
	unload *signals.Pair

	collector *diagnostics.Collector
	sessions  *diagnostics.SessionStore

	started     atomic.Bool
	disposeOnce sync.Once

	// subsystem handles, written only by the Start/Dispose thread
	cfg         *config.RuntimeConfig
	pc          interfaces.ProcessContext
	hookGuard   interfaces.HookGuard
	framework   interfaces.Framework
	netOpt      interfaces.NetworkOptimizer
	netHandlers interfaces.NetworkHandlers
	clientState interfaces.ClientState
	loc         interfaces.Localization
	catalog     interfaces.PluginCatalog
	shell       interfaces.UIShell
	overlay     interfaces.Overlay
	seasonal    interfaces.Seasonal
	dataAssets  interfaces.DataAssets
	decoder     interfaces.StringDecoder
	router      interfaces.CommandRouter
	chatFS      interfaces.ChatFeatures
	pluginRT    interfaces.PluginRuntime

	patcherOnce sync.Once
	patcher     interfaces.ExceptionFilterPatcher
}

// New creates the supervisor. The caller may hand in its own
// UnloadFinished signal through deps; a nil one is allocated here.
func New(si types.StartInfo, deps interfaces.UmbraDependencies, log logger.Logger) (*Supervisor, error) {
	if err := si.Validate(); err != nil {
		return nil, err
	}
	if deps.Factory == nil {
		return nil, fmt.Errorf("supervisor: a subsystem factory is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Supervisor{
		logger:    log.WithSubsystem("supervisor"),
		startInfo: si,
		deps:      deps,
		clock:     clock,
		unload:    signals.NewPair(deps.UnloadFinished),
		collector: diagnostics.NewCollector(si.GameVersion, si.Language),
	}
	s.state.Store(int32(types.StateNotStarted))
	return s, nil
}

// State returns the current lifecycle state
func (s *Supervisor) State() types.LifecycleState {
	return types.LifecycleState(s.state.Load())
}

func (s *Supervisor) setState(st types.LifecycleState) {
	s.state.Store(int32(st))
	s.collector.SetState(st)
}

// IsReady reports whether startup completed
func (s *Supervisor) IsReady() bool {
	return s.State() == types.StateReady
}

// Start runs the ordered startup schedule on the calling thread. It is
// one-shot: a second call fails immediately. A fatal step failure
// forces full unload and is returned after being absorbed into logs
// and the session record; it never leaves the runtime in a
// half-started state without the unload signal set.
func (s *Supervisor) Start(ctx context.Context, toggles types.Toggles) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("supervisor: Start may only be called once")
	}
	s.setState(types.StateStarting)
	s.logger.Info("Startup beginning",
		logger.WithField("session", s.collector.SessionID()),
		logger.WithField("game_version", s.startInfo.GameVersion))

	if store, err := diagnostics.NewSessionStore(s.startInfo.WorkingDirectory, s.logger); err == nil {
		s.sessions = store
	} else {
		s.logger.Warn("Session store unavailable", logger.WithError(err))
	}

	for _, step := range s.startupSchedule(toggles) {
		if step.skip != nil && step.skip() {
			s.collector.RecordStep(step.name, diagnostics.StepSkipped, nil, 0)
			s.logger.Info("Step skipped", logger.WithField("subsystem", step.name))
			continue
		}

		began := s.clock()
		err := step.run(ctx)
		elapsed := s.clock().Sub(began)

		if err == nil {
			s.collector.RecordStep(step.name, diagnostics.StepReady, nil, elapsed)
			continue
		}

		s.collector.RecordStep(step.name, diagnostics.StepFailed, err, elapsed)
		if step.policy == policySoft {
			s.logger.Warn("Subsystem unavailable for this session",
				logger.WithField("subsystem", step.name),
				logger.WithError(err))
			continue
		}

		return s.failStartup(step.name, err)
	}

	s.setState(types.StateReady)
	s.persistSnapshot()
	s.logger.Info("Startup complete",
		logger.WithField("overlay_loaded", s.overlay != nil))
	if s.deps.Notifier != nil {
		s.deps.Notifier.NotifyReady(s.startInfo.GameVersion)
	}
	return nil
}

// failStartup is the single fatal-failure path: record, log, force
// unload, report.
func (s *Supervisor) failStartup(name types.SubsystemName, err error) error {
	s.setState(types.StateFailedDuringStart)
	s.persistSnapshot()
	s.logger.Error("Fatal startup failure, forcing unload",
		logger.WithField("subsystem", name),
		logger.WithError(err))
	if s.deps.Notifier != nil {
		s.deps.Notifier.NotifyStartupFailed(err)
	}
	s.Unload()
	return fmt.Errorf("supervisor: %s failed during start: %w", name, err)
}

// startupSchedule is the per-step failure-policy table. Order is the
// dependency graph collapsed to one linear schedule.
func (s *Supervisor) startupSchedule(toggles types.Toggles) []startStep {
	f := s.deps.Factory
	return []startStep{
		{name: types.SubsystemConfig, policy: policyFatal, run: func(ctx context.Context) error {
			cfg, err := f.LoadConfig(s.startInfo.ConfigurationPath)
			if err != nil {
				return err
			}
			s.cfg = cfg
			// the persisted setting can silence notifications; it can
			// never re-enable them past the caller's opt-out
			if s.deps.Notifier != nil && !cfg.NotificationsEnabled {
				s.deps.Notifier.SetEnabled(false)
			}
			return nil
		}},
		{name: types.SubsystemScanner, policy: policyFatal, run: func(ctx context.Context) error {
			pc, err := f.AcquireProcessContext()
			if err != nil {
				return err
			}
			s.pc = pc
			return nil
		}},
		{name: types.SubsystemHookGuard, policy: policyFatal, run: func(ctx context.Context) error {
			hg, err := f.NewHookGuard()
			if err != nil {
				return err
			}
			s.hookGuard = hg
			return nil
		}},
		{name: types.SubsystemFramework, policy: policyFatal, run: func(ctx context.Context) error {
			fw, err := f.NewFramework()
			if err != nil {
				return err
			}
			s.framework = fw
			return nil
		}},
		{name: types.SubsystemNetOptimizer, policy: policyFatal, run: func(ctx context.Context) error {
			no, err := f.NewNetworkOptimizer()
			if err != nil {
				return err
			}
			s.netOpt = no
			return no.Enable()
		}},
		{name: types.SubsystemNetHandlers, policy: policyFatal, run: func(ctx context.Context) error {
			nh, err := f.NewNetworkHandlers()
			if err != nil {
				return err
			}
			s.netHandlers = nh
			return nh.Enable()
		}},
		{name: types.SubsystemClientState, policy: policyFatal, run: func(ctx context.Context) error {
			cs, err := f.NewClientState()
			if err != nil {
				return err
			}
			s.clientState = cs
			return nil
		}},
		{name: types.SubsystemLocalization, policy: policyFatal, run: func(ctx context.Context) error {
			override := types.LanguageTag(s.cfg.LanguageOverride)
			if override == "" {
				override = s.startInfo.Language
			}
			loc, err := f.NewLocalization(override)
			if err != nil {
				return err
			}
			s.loc = loc
			return nil
		}},
		{name: types.SubsystemPluginCatalog, policy: policyFatal, run: func(ctx context.Context) error {
			cat, err := f.NewPluginCatalog()
			if err != nil {
				return err
			}
			s.catalog = cat
			return nil
		}},
		{name: types.SubsystemUIShell, policy: policyFatal, run: func(ctx context.Context) error {
			shell, err := f.NewUIShell()
			if err != nil {
				return err
			}
			s.shell = shell
			return nil
		}},
		{name: types.SubsystemOverlay, policy: policySoft,
			skip: func() bool { return toggles.NoOverlay },
			run: func(ctx context.Context) error {
				ov, err := f.NewOverlay()
				if err != nil {
					return err
				}
				ov.OnDraw(s.shell.Draw)
				if err := ov.Enable(); err != nil {
					ov.Dispose()
					return err
				}
				if err := ov.WaitForFontRebuild(ctx); err != nil {
					ov.Dispose()
					return err
				}
				s.overlay = ov
				return nil
			}},
		{name: types.SubsystemSeasonal, policy: policySoft,
			skip: func() bool { return !overlay.SeasonalActive(s.clock()) },
			run: func(ctx context.Context) error {
				seasonal := f.NewSeasonal()
				var source overlay.DrawSource
				if s.overlay != nil {
					source = s.overlay
				}
				if seasonal.Attach(source) {
					s.seasonal = seasonal
				}
				return nil
			}},
		{name: types.SubsystemDataAssets, policy: policyFatal, run: func(ctx context.Context) error {
			lang := s.startInfo.Language
			if s.loc != nil {
				lang = s.loc.Language()
			}
			da, err := f.NewDataAssets(lang)
			if err != nil {
				return err
			}
			s.dataAssets = da
			return nil
		}},
		{name: types.SubsystemStringDecoder, policy: policyFatal, run: func(ctx context.Context) error {
			dec, err := f.NewStringDecoder()
			if err != nil {
				return err
			}
			s.decoder = dec
			return nil
		}},
		{name: types.SubsystemCommands, policy: policyFatal, run: func(ctx context.Context) error {
			router, err := f.NewCommandRouter()
			if err != nil {
				return err
			}
			s.router = router
			return nil
		}},
		{name: types.SubsystemChat, policy: policyFatal, run: func(ctx context.Context) error {
			fs, err := f.NewChatFeatures(s.router)
			if err != nil {
				return err
			}
			s.chatFS = fs
			return fs.Enable()
		}},
		{name: types.SubsystemPlugins, policy: policySoft,
			skip: func() bool { return toggles.NoPlugins },
			run: func(ctx context.Context) error {
				if removed, err := s.catalog.CleanupStalePlugins(); err != nil {
					return err
				} else if removed > 0 {
					s.logger.Info("Stale plugins removed",
						logger.WithField("count", removed))
				}
				s.recordHostVersion()
				rt, err := f.NewPluginRuntime()
				if err != nil {
					return err
				}
				loaded, err := rt.LoadAll(ctx)
				if err != nil {
					rt.Dispose()
					return err
				}
				s.pluginRT = rt
				s.logger.Info("Plugins loaded",
					logger.WithField("count", loaded))
				if len(s.cfg.DevPluginPaths) > 0 {
					if err := rt.WatchDevPaths(s.cfg.DevPluginPaths); err != nil {
						s.logger.Warn("Dev plugin watch unavailable",
							logger.WithError(err))
					}
				}
				return nil
			}},
		{name: types.SubsystemHostHooks, policy: policyFatal, run: func(ctx context.Context) error {
			if err := s.framework.Enable(); err != nil {
				return err
			}
			return s.clientState.Enable()
		}},
	}
}

// recordHostVersion persists the running host version after stale
// cleanup so the next session can tell whether the host was updated.
func (s *Supervisor) recordHostVersion() {
	if s.cfg.LastSeenGameVersion == s.startInfo.GameVersion {
		return
	}
	s.cfg.LastSeenGameVersion = s.startInfo.GameVersion
	if err := config.Save(s.startInfo.ConfigurationPath, s.cfg); err != nil {
		s.logger.Warn("Failed to record host version", logger.WithError(err))
	}
}

// Unload requests teardown. Callable from any thread, never blocks,
// idempotent.
func (s *Supervisor) Unload() {
	if s.State() == types.StateReady {
		s.setState(types.StateUnloading)
	}
	s.unload.UnloadRequested.Set()
}

// WaitForUnload blocks until Unload has been called or ctx expires.
// The host's teardown thread parks here and then calls Dispose.
func (s *Supervisor) WaitForUnload(ctx context.Context) error {
	select {
	case <-s.unload.UnloadRequested.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForUnloadFinish blocks until the caller has marked teardown
// complete, or ctx expires.
func (s *Supervisor) WaitForUnloadFinish(ctx context.Context) error {
	select {
	case <-s.unload.UnloadFinished.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UnloadFinished exposes the caller-owned completion signal so the
// host can set it after Dispose returns.
func (s *Supervisor) UnloadFinished() *signals.OneShot {
	return s.unload.UnloadFinished
}

// disposeStep is one row of the teardown schedule
type disposeStep struct {
	name types.SubsystemName
	run  func() error
}

// Dispose tears everything down in fixed order. Every step is guarded:
// a failing or panicking step is logged and the remaining steps still
// run. Called exactly once by the host thread that observed
// WaitForUnload; extra calls are no-ops.
func (s *Supervisor) Dispose() {
	s.disposeOnce.Do(s.dispose)
}

func (s *Supervisor) dispose() {
	s.setState(types.StateUnloading)
	s.logger.Info("Teardown beginning")

	// The overlay must go down before the plugins: the render thread
	// may still be delivering frames into plugin-owned draw callbacks.
	schedule := []disposeStep{
		{types.SubsystemSeasonal, func() error {
			if s.seasonal != nil {
				s.seasonal.Dispose()
			}
			return nil
		}},
		{types.SubsystemOverlay, func() error {
			if s.overlay != nil {
				s.overlay.Dispose()
			}
			if s.shell != nil {
				s.shell.Dispose()
			}
			return nil
		}},
		{types.SubsystemPlugins, func() error {
			if s.pluginRT != nil {
				s.pluginRT.Dispose()
			}
			return nil
		}},
		{types.SubsystemFramework, func() error {
			if s.framework != nil {
				s.framework.Dispose()
			}
			if s.clientState != nil {
				s.clientState.Dispose()
			}
			return nil
		}},
		{types.SubsystemChat, func() error {
			if s.chatFS != nil {
				s.chatFS.Dispose()
			}
			return nil
		}},
		{types.SubsystemCommands, func() error {
			if s.router != nil {
				s.router.Dispose()
			}
			return nil
		}},
		{types.SubsystemUnloadSignal, func() error {
			// the request signal is monotonic; releasing it here just
			// guarantees any late waiter still observes it as set
			s.unload.UnloadRequested.Set()
			return nil
		}},
		{types.SubsystemNetOptimizer, func() error {
			if s.netOpt != nil {
				s.netOpt.Dispose()
			}
			return nil
		}},
		{types.SubsystemNetHandlers, func() error {
			if s.netHandlers != nil {
				s.netHandlers.Dispose()
			}
			return nil
		}},
		{types.SubsystemScanner, func() error {
			if s.pc != nil {
				s.pc.Release()
			}
			return nil
		}},
		{types.SubsystemDataAssets, func() error {
			if s.dataAssets != nil {
				s.dataAssets.Dispose()
			}
			return nil
		}},
		{types.SubsystemHookGuard, func() error {
			if s.hookGuard != nil {
				s.hookGuard.Dispose()
			}
			return nil
		}},
	}

	for _, step := range schedule {
		s.runDisposeStep(step)
	}

	s.setState(types.StateDisposed)
	s.persistSnapshot()
	s.logger.Info("Teardown complete")
	if s.deps.Notifier != nil {
		s.deps.Notifier.NotifyUnloaded()
	}
}

func (s *Supervisor) runDisposeStep(step disposeStep) {
	began := s.clock()
	defer func() {
		if r := recover(); r != nil {
			s.collector.RecordStep(step.name, diagnostics.StepFailed,
				fmt.Errorf("panic: %v", r), s.clock().Sub(began))
			s.logger.Error("Teardown step panicked",
				logger.WithField("subsystem", step.name),
				logger.WithField("panic", r))
		}
	}()

	if err := step.run(); err != nil {
		s.collector.RecordStep(step.name, diagnostics.StepFailed, err, s.clock().Sub(began))
		s.logger.Error("Teardown step failed",
			logger.WithField("subsystem", step.name),
			logger.WithError(err))
		return
	}
	s.collector.RecordStep(step.name, diagnostics.StepDisposed, nil, s.clock().Sub(began))
}

// Snapshot returns the session's diagnostic record
func (s *Supervisor) Snapshot() diagnostics.Snapshot {
	return s.collector.Snapshot()
}

func (s *Supervisor) persistSnapshot() {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Save(s.collector.Snapshot()); err != nil {
		s.logger.Warn("Failed to persist session snapshot", logger.WithError(err))
	}
}

// ReplaceExceptionFilter swaps the host's unhandled-exception filter
// and returns the previous one. Only available once startup completed.
func (s *Supervisor) ReplaceExceptionFilter(newFilter procmem.Address) (procmem.Address, error) {
	if !s.IsReady() {
		return 0, fmt.Errorf("supervisor: exception filter replacement requires the ready state")
	}
	s.patcherOnce.Do(func() {
		s.patcher = s.deps.Factory.NewExceptionFilterPatcher()
	})
	return s.patcher.Replace(newFilter)
}
