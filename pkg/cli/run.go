package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/umbralabs/umbra/internal/supervisor"
	"github.com/umbralabs/umbra/pkg/config"
	"github.com/umbralabs/umbra/pkg/interfaces"
	"github.com/umbralabs/umbra/pkg/logger"
	"github.com/umbralabs/umbra/pkg/notifier"
	"github.com/umbralabs/umbra/pkg/signals"
	"github.com/umbralabs/umbra/pkg/types"
)

// newRunCmd creates the run command: start the runtime and drive the
// full unload protocol.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the runtime and block until it unloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost()
		},
	}
}

// runHost plays the three roles of the host protocol on separate
// goroutines: the starting thread, the unload thread parked on the
// request signal, and the injector waiting for the finish signal.
func runHost() error {
	if err := resolvePaths(); err != nil {
		printError("%v", err)
		return err
	}

	log := logger.CreateLogger(logFile, logLevel)

	si := types.StartInfo{
		WorkingDirectory:       workDir,
		AssetDirectory:         assetDir,
		PluginDirectory:        pluginDir,
		DefaultPluginDirectory: defaultPluginDir,
		ConfigurationPath:      configPath,
		Language:               types.LanguageTag(language),
		GameVersion:            gameVersion,
		NoTelemetry:            noTelemetry,
	}

	debugGuard := logLevel == string(types.LogLevelDebug)
	finished := signals.New()
	deps := interfaces.UmbraDependencies{
		Factory:        supervisor.NewProductionFactory(si, nil, debugGuard, log),
		Notifier:       notifier.New(!noTelemetry, log),
		UnloadFinished: finished,
	}

	sup, err := supervisor.New(si, deps, log)
	if err != nil {
		printError("%v", err)
		return err
	}

	// unload thread: parks until someone requests teardown, performs
	// it, then marks completion on behalf of the caller
	go func() {
		if err := sup.WaitForUnload(context.Background()); err != nil {
			return
		}
		sup.Dispose()
		finished.Set()
	}()

	// OS signals translate into an unload request
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("Shutdown signal received")
		sup.Unload()
	}()

	toggles := types.Toggles{NoOverlay: noOverlay, NoPlugins: noPlugins}
	if err := sup.Start(context.Background(), toggles); err != nil {
		// startup already forced unload; wait for teardown to finish
		sup.WaitForUnloadFinish(context.Background())
		return err
	}

	// runtime configuration edits take effect without a restart
	reload := config.NewReloadManager(configPath, log)
	reload.AddCallback(func(cfg *config.RuntimeConfig, err error) {
		if err != nil {
			log.Warn("Configuration reload failed", logger.WithError(err))
			return
		}
		if cfg.LogLevel != "" {
			log.SetLevel(string(cfg.LogLevel))
			log.Info("Log level updated", logger.WithField("level", cfg.LogLevel))
		}
	})
	if err := reload.StartWatching(); err != nil {
		log.Warn("Configuration watch unavailable", logger.WithError(err))
	} else {
		defer reload.StopWatching()
	}

	// injector role: block until teardown has been reported complete
	return sup.WaitForUnloadFinish(context.Background())
}
