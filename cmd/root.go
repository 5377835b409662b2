// =============================================================================
// BBOX Fuel Dispense Analyzer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (bbox-analyzer)
//   ├── processCmd (bbox-analyzer process)
//   ├── ratesCmd   (bbox-analyzer rates)
//   ├── catalogCmd (bbox-analyzer catalog)
//   ├── watchCmd   (bbox-analyzer watch)
//   └── versionCmd (bbox-analyzer version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration before any subcommand runs
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/config"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// mainConfig and logger are set by loadConfig before a subcommand runs.
var (
	mainConfig *config.MainConfig
	logger     *slog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "bbox-analyzer",
	Short: "BBOX Fuel Dispense Analyzer - Dispensing rates from fuel dispenser logs",
	Long: `BBOX Fuel Dispense Analyzer reads BBOX XML logs written by fuel dispensing
controllers, reconstructs every dispensing transaction and reports the
dispensing rate (volume per minute) per column, fuel and day.

Key Features:
  - Streaming XML reading with legacy charset support
  - Wraparound-safe volume reconstruction from pump counters
  - Concurrent processing of many log files into one model
  - Station, column, hose and fuel catalogs
  - XLSX, CSV and XML reports with plausibility diagnostics

Example Usage:
  bbox-analyzer process                         # Analyze every file in the input directory
  bbox-analyzer process --config ./my.yaml      # Use a custom configuration file
  bbox-analyzer rates --column 3 --fuel AI-92   # Print the rate series of one column
  bbox-analyzer watch                           # Keep analyzing files as they arrive`,

	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// loadConfig reads the configuration and sets up logging. The default
// config.yaml is optional; a file named with --config must exist.
func loadConfig(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.LoadMainConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger = logging.Init(cfg.LogFormat, level)
	if path != "" {
		logger.Debug("configuration loaded", "path", path)
	}

	mainConfig = cfg
	return nil
}
