// Package cmd implements the CLI commands for iptv-checker.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Jelikton/iptv-checker/internal/config"
	"github.com/Jelikton/iptv-checker/internal/observability"
	"github.com/Jelikton/iptv-checker/internal/version"
)

var (
	// cfgFile holds the config file path from the CLI flag.
	cfgFile string

	// cfg and logger are set by the root PersistentPreRunE.
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "iptv-checker",
	Short:   "Check IPTV playlist streams for availability",
	Version: version.Short(),
	Long: `iptv-checker loads an M3U playlist, shows what each channel is airing
from its XMLTV guide and probes every stream URL to find the dead ones.

Channel lists are cached as JSON next to the playlist; probe rounds are
kept in a small database so the last results are shown on the next start.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd.Root().PersistentFlags())
	}

	// Flags are not bound to viper; they override the config only when
	// Changed() so that env and file values keep their precedence.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./iptv-checker.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig loads the configuration and installs the logger.
//
// Priority order (highest to lowest):
//  1. CLI flags, only if explicitly provided
//  2. Environment variables (IPTVCHECK_LOGGING_LEVEL, ...)
//  3. Config file values
//  4. Built-in defaults
func initConfig(flags *pflag.FlagSet) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		loaded.Logging.Level = normalizeLevel(level)
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		loaded.Logging.Format = strings.ToLower(format)
	}

	cfg = loaded
	logger = observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)
	return nil
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return "warn"
	}
	return level
}
