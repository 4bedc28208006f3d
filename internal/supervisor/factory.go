package supervisor

import (
	"fmt"

	"github.com/umbralabs/umbra/pkg/chat"
	"github.com/umbralabs/umbra/pkg/commands"
	"github.com/umbralabs/umbra/pkg/config"
	"github.com/umbralabs/umbra/pkg/dataassets"
	"github.com/umbralabs/umbra/pkg/hooks"
	"github.com/umbralabs/umbra/pkg/interfaces"
	"github.com/umbralabs/umbra/pkg/localization"
	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/overlay"
	"github.com/umbralabs/umbra/pkg/plugins"
	"github.com/umbralabs/umbra/pkg/procmem"
	"github.com/umbralabs/umbra/pkg/types"
)

// ProductionFactory builds the real subsystems. It is stateful: the
// scanner, localization service and data tables created by earlier
// steps feed the products of later ones.
type ProductionFactory struct {
	startInfo   types.StartInfo
	logger      logger.Logger
	hostCulture localization.HostCultureFunc
	debugGuard  bool

	cfg     *config.RuntimeConfig
	pc      *procmem.ProcessContext
	scanner *procmem.Scanner
	loc     *localization.Service
	store   *dataassets.Store
	catalog *plugins.Catalog
	chat    *chat.FeatureSet
	plugins *plugins.Runtime
}

// NewProductionFactory creates the factory. hostCulture may be nil, in
// which case the host UI culture defaults to English. debugGuard
// auto-enables the hook guard, matching a debug session.
func NewProductionFactory(si types.StartInfo, hostCulture localization.HostCultureFunc, debugGuard bool, log logger.Logger) *ProductionFactory {
	if hostCulture == nil {
		hostCulture = func() types.LanguageTag { return types.LanguageEnglish }
	}
	return &ProductionFactory{
		startInfo:   si,
		logger:      log,
		hostCulture: hostCulture,
		debugGuard:  debugGuard,
	}
}

func (f *ProductionFactory) LoadConfig(path string) (*config.RuntimeConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	f.cfg = cfg
	return cfg, nil
}

func (f *ProductionFactory) AcquireProcessContext() (interfaces.ProcessContext, error) {
	pc, err := procmem.AcquireProcessContext()
	if err != nil {
		return nil, err
	}
	scanner, err := procmem.NewScanner(pc)
	if err != nil {
		pc.Release()
		return nil, err
	}
	f.pc = pc
	f.scanner = scanner
	return pc, nil
}

func (f *ProductionFactory) NewHookGuard() (interfaces.HookGuard, error) {
	return hooks.NewHookGuard(f.scanner, f.logger, f.debugGuard)
}

func (f *ProductionFactory) NewFramework() (interfaces.Framework, error) {
	return hooks.NewFramework(f.scanner, f.logger)
}

func (f *ProductionFactory) NewNetworkOptimizer() (interfaces.NetworkOptimizer, error) {
	return hooks.NewNetworkOptimizer(f.logger), nil
}

func (f *ProductionFactory) NewNetworkHandlers() (interfaces.NetworkHandlers, error) {
	return hooks.NewNetworkHandlers(f.scanner, f.logger)
}

func (f *ProductionFactory) NewClientState() (interfaces.ClientState, error) {
	return hooks.NewClientState(f.scanner, f.logger)
}

func (f *ProductionFactory) NewLocalization(override types.LanguageTag) (interfaces.Localization, error) {
	loc, err := localization.New(f.startInfo.AssetDirectory, override, f.hostCulture, f.logger)
	if err != nil {
		return nil, err
	}
	f.loc = loc
	return loc, nil
}

func (f *ProductionFactory) NewPluginCatalog() (interfaces.PluginCatalog, error) {
	f.catalog = plugins.NewCatalog(f.startInfo.PluginDirectory,
		f.startInfo.DefaultPluginDirectory, f.startInfo.GameVersion, f.logger)
	return f.catalog, nil
}

func (f *ProductionFactory) NewUIShell() (interfaces.UIShell, error) {
	return overlay.NewShell(f.logger), nil
}

func (f *ProductionFactory) NewOverlay() (interfaces.Overlay, error) {
	return overlay.NewRuntime(f.scanner, f.logger)
}

func (f *ProductionFactory) NewSeasonal() interfaces.Seasonal {
	return overlay.NewSeasonal(f.logger)
}

func (f *ProductionFactory) NewDataAssets(language types.LanguageTag) (interfaces.DataAssets, error) {
	store, err := dataassets.Load(f.startInfo.AssetDirectory, language, f.logger)
	if err != nil {
		return nil, err
	}
	f.store = store
	return store, nil
}

func (f *ProductionFactory) NewStringDecoder() (interfaces.StringDecoder, error) {
	return dataassets.NewStringDecoder(f.store)
}

func (f *ProductionFactory) NewCommandRouter() (interfaces.CommandRouter, error) {
	if f.loc == nil {
		return nil, fmt.Errorf("supervisor: command router requires localization")
	}
	router := commands.NewRouter(f.loc, f.logger)
	err := commands.RegisterBuiltins(router, commands.BuiltinDeps{
		Localization: f.loc,
		Plugins:      lateBoundPlugins{f},
		GameVersion:  f.startInfo.GameVersion,
		Print: func(text string) {
			if f.chat != nil {
				f.chat.Print(text)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return router, nil
}

func (f *ProductionFactory) NewChatFeatures(router interfaces.CommandRouter) (interfaces.ChatFeatures, error) {
	f.chat = chat.New(router, f.loc, f.logger)
	return f.chat, nil
}

func (f *ProductionFactory) NewPluginRuntime() (interfaces.PluginRuntime, error) {
	if f.catalog == nil {
		return nil, fmt.Errorf("supervisor: plugin runtime requires the catalog")
	}
	var disabled []string
	if f.cfg != nil {
		disabled = f.cfg.DisabledPlugins
	}
	f.plugins = plugins.NewRuntime(f.catalog, plugins.HostAPI{
		GameVersion: f.startInfo.GameVersion,
		Print: func(text string) {
			if f.chat != nil {
				f.chat.Print(text)
			}
		},
	}, disabled, f.logger)
	return f.plugins, nil
}

func (f *ProductionFactory) NewExceptionFilterPatcher() interfaces.ExceptionFilterPatcher {
	return procmem.NewExceptionFilterPatcher(f.scanner)
}

// lateBoundPlugins resolves the plugin runtime at call time; built-in
// commands register before the runtime exists.
type lateBoundPlugins struct{ f *ProductionFactory }

func (l lateBoundPlugins) LoadedPlugins() []string {
	if l.f.plugins == nil {
		return nil
	}
	return l.f.plugins.LoadedPlugins()
}
