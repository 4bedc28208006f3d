// Package cli provides the command-line surface of the umbra host
// bootstrapper.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	workDir          string
	assetDir         string
	pluginDir        string
	defaultPluginDir string
	configPath       string
	language         string
	gameVersion      string
	logFile          string
	logLevel         string
	noOverlay        bool
	noPlugins        bool
	noTelemetry      bool
	version          string
)

var rootCmd = &cobra.Command{
	Use:   "umbra-host",
	Short: "Host bootstrapper for the umbra in-process runtime",
	Long: `umbra-host drives the lifecycle of the umbra runtime: it starts the
supervisor, parks an unload thread on the shutdown signal, and reports
when teardown has finished.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("umbra-host v%s\n", version)
			return
		}
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v
	initializeRootCommand()
	return rootCmd.Execute()
}

func initializeRootCommand() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "working directory for state and logs (default: cwd)")
	rootCmd.PersistentFlags().StringVar(&assetDir, "assets", "", "asset directory with data tables and locales")
	rootCmd.PersistentFlags().StringVar(&pluginDir, "plugins", "", "third-party plugin directory")
	rootCmd.PersistentFlags().StringVar(&defaultPluginDir, "default-plugins", "", "fallback plugin directory (default: <work-dir>/plugins.default)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "runtime configuration file (default: <work-dir>/umbra.json)")
	rootCmd.PersistentFlags().StringVar(&language, "language", "", "language tag (en, de, fr, ja)")
	rootCmd.PersistentFlags().StringVar(&gameVersion, "game-version", "", "host game version tag")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path (default: stderr)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noOverlay, "no-overlay", false, "suppress overlay construction")
	rootCmd.PersistentFlags().BoolVar(&noPlugins, "no-plugins", false, "suppress plugin loading")
	rootCmd.PersistentFlags().BoolVar(&noTelemetry, "no-telemetry", false, "suppress desktop notifications")
	rootCmd.Flags().BoolP("version", "v", false, "print version")

	viper.BindPFlag("work_dir", rootCmd.PersistentFlags().Lookup("work-dir"))
	viper.BindPFlag("assets", rootCmd.PersistentFlags().Lookup("assets"))
	viper.BindPFlag("plugins", rootCmd.PersistentFlags().Lookup("plugins"))
	viper.BindPFlag("language", rootCmd.PersistentFlags().Lookup("language"))
	viper.BindPFlag("game_version", rootCmd.PersistentFlags().Lookup("game-version"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSessionCmd())
}

func initConfig() {
	viper.SetEnvPrefix("UMBRA")
	viper.AutomaticEnv()

	if workDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			workDir = cwd
		}
	}

	viper.AddConfigPath(workDir)
	viper.SetConfigName("umbra-host")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err == nil {
		applyViperDefaults()
	}
}

// applyViperDefaults fills unset flags from the host config file and
// environment.
func applyViperDefaults() {
	if assetDir == "" {
		assetDir = viper.GetString("assets")
	}
	if pluginDir == "" {
		pluginDir = viper.GetString("plugins")
	}
	if language == "" {
		language = viper.GetString("language")
	}
	if gameVersion == "" {
		gameVersion = viper.GetString("game_version")
	}
}

func resolvePaths() error {
	var err error
	if workDir, err = filepath.Abs(workDir); err != nil {
		return fmt.Errorf("cli: cannot resolve working directory: %w", err)
	}
	if assetDir == "" {
		assetDir = filepath.Join(workDir, "assets")
	}
	if pluginDir == "" {
		pluginDir = filepath.Join(workDir, "plugins")
	}
	if defaultPluginDir == "" {
		defaultPluginDir = filepath.Join(workDir, "plugins.default")
	}
	if configPath == "" {
		configPath = filepath.Join(workDir, "umbra.json")
	}
	return nil
}

func printError(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
}
