// Package cmd provides the command-line interface for packhouse.
//
// Configuration is layered: command-line flags take priority over
// PACKHOUSE_-prefixed environment variables, which override the
// configuration file (.packhouse.yml in the working directory, or the file
// named by --config / PACKHOUSE_CONFIG_FILE).
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/packhouse/packhouse/internal/config"
	"github.com/packhouse/packhouse/internal/logging"
	"github.com/packhouse/packhouse/internal/manager"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "packhouse",
	Short: "Discover, validate, and index packages across repository trees",
	Long: `Packhouse discovers packages (directories identified by a metadata file)
across one or more repository trees, validates and indexes them by unique
identifier, and re-exposes them for retrieval and zip export.

Quick Start:
  packhouse scan                  Scan every configured repository
  packhouse list                  List indexed packages
  packhouse get <identifier>      Show one package
  packhouse export <identifier>   Export a package as a zip archive
  packhouse serve                 Start the HTTP API with live events

Command Aliases (for faster typing):
  scan (s), list (l), get (g), export (e), watch (w)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfigFile)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .packhouse.yml, can also use PACKHOUSE_CONFIG_FILE env var)")
	bindLoggingFlags(rootCmd.PersistentFlags())
}

// bindLoggingFlags declares the logging flags and binds them to their
// config keys so flags override file and environment values.
func bindLoggingFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (text, json)")
	_ = viper.BindPFlag("logging.level", fs.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", fs.Lookup("log-format"))
}

func initConfigFile() {
	if cfgFile == "" {
		cfgFile = os.Getenv(config.EnvPrefix + "_CONFIG_FILE")
	}
}

// loadConfig reads the effective configuration, applying any logging flag
// overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if level := viper.GetString("logging.level"); level != "" {
		cfg.Logging.Level = level
	}
	if format := viper.GetString("logging.format"); format != "" {
		cfg.Logging.Format = format
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Logging, os.Stderr)
}

// buildManager constructs a manager with every configured repository
// registered.
func buildManager(cfg *config.Config, log *slog.Logger) (*manager.Manager, error) {
	m := manager.New(log)
	for _, repoCfg := range cfg.Repositories {
		settings, err := repoCfg.Settings()
		if err != nil {
			return nil, fmt.Errorf("repository %q: %w", repoCfg.Name, err)
		}
		if _, err := m.Add(settings); err != nil {
			return nil, err
		}
	}
	return m, nil
}
