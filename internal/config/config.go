// =============================================================================
// BBOX Fuel Dispense Analyzer - Configuration Module
// =============================================================================
//
// This module loads the application configuration.
//
// SOURCES (lowest to highest precedence):
//   1. Built-in defaults
//   2. YAML file (config.yaml)
//   3. Environment variables prefixed with BBOX_, including any found in a
//      .env file
//   4. Command-line flags (applied by the cmd package)
//
// Defaults only fill fields that no other source set.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "BBOX_"

// ReportFormats lists the accepted values of report_format.
var ReportFormats = []string{"xlsx", "csv", "xml"}

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned recursively for BBOX files.
	// Default: "./input"
	InputDir string `yaml:"input_dir" env:"INPUT_DIR"`

	// OutputDir receives reports.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`

	// LogDir receives the run summary and error logs.
	// Default: "./logs"
	LogDir string `yaml:"log_dir" env:"LOG_DIR"`

	// =========================================================================
	// FILE DISCOVERY
	// =========================================================================

	// FilePrefix and FileExtension select input files, case-insensitively.
	// Default: "BBOX" and ".XML"
	FilePrefix    string `yaml:"file_prefix" env:"FILE_PREFIX"`
	FileExtension string `yaml:"file_extension" env:"FILE_EXTENSION"`

	// =========================================================================
	// REPORTING
	// =========================================================================

	// ReportFormat is one of ReportFormats.
	// Default: "xlsx"
	ReportFormat string `yaml:"report_format" env:"REPORT_FORMAT"`

	// ReportNameFormat names report files. Supported placeholders:
	//   {uuid}      - a random UUID
	//   {timestamp} - YYYYMMDD_HHMMSS
	// The report format's extension is appended when missing.
	// Default: "fuel_rates_{timestamp}"
	ReportNameFormat string `yaml:"report_name_format" env:"REPORT_NAME_FORMAT"`

	// =========================================================================
	// LOGGING
	// =========================================================================

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// =========================================================================
	// PROCESSING
	// =========================================================================

	// Workers is the number of sources processed concurrently.
	// Default: 4
	Workers int `yaml:"workers" env:"WORKERS"`

	// MetricsAddr, when set, exposes Prometheus metrics on /metrics.
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`

	Plausibility Plausibility `yaml:"plausibility" envPrefix:"PLAUSIBILITY_"`
}

// Plausibility bounds flag dispensing rates (volume per minute) in
// diagnostics. They never filter events.
type Plausibility struct {
	// Default: 0
	MinRate float64 `yaml:"min_rate" env:"MIN_RATE"`
	// Default: 150
	MaxRate float64 `yaml:"max_rate" env:"MAX_RATE"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig builds the configuration from an optional YAML file, the
// environment and the given .env files (".env" when none are named).
//
// An empty configPath skips the YAML layer. A named file that does not exist
// is an error; a missing .env file is not.
func LoadMainConfig(configPath string, envFiles ...string) (*MainConfig, error) {
	var config MainConfig

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// .env files are optional.
	_ = godotenv.Load(envFiles...)

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.LogDir == "" {
		config.LogDir = "./logs"
	}
	if config.FilePrefix == "" {
		config.FilePrefix = "BBOX"
	}
	if config.FileExtension == "" {
		config.FileExtension = ".XML"
	}
	if config.ReportFormat == "" {
		config.ReportFormat = "xlsx"
	}
	if config.ReportNameFormat == "" {
		config.ReportNameFormat = "fuel_rates_{timestamp}"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.Workers == 0 {
		config.Workers = 4
	}
	if config.Plausibility.MaxRate == 0 {
		config.Plausibility.MaxRate = 150
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	var errs []error

	config.ReportFormat = strings.ToLower(config.ReportFormat)
	if !slices.Contains(ReportFormats, config.ReportFormat) {
		errs = append(errs, fmt.Errorf("report_format %q must be one of %v", config.ReportFormat, ReportFormats))
	}
	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", config.LogFormat))
	}
	if config.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", config.Workers))
	}
	if config.Plausibility.MinRate > config.Plausibility.MaxRate {
		errs = append(errs, fmt.Errorf("plausibility min_rate %v exceeds max_rate %v",
			config.Plausibility.MinRate, config.Plausibility.MaxRate))
	}
	if !strings.HasPrefix(config.FileExtension, ".") {
		errs = append(errs, fmt.Errorf("file_extension %q must start with '.'", config.FileExtension))
	}

	return errors.Join(errs...)
}
