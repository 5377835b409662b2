package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// noEnvFile points godotenv at a file that does not exist, so a stray .env
// in the package directory never leaks into a test.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadMainConfig_Defaults(t *testing.T) {
	cfg, err := LoadMainConfig("", noEnvFile(t))
	if err != nil {
		t.Fatalf("LoadMainConfig() error = %v", err)
	}
	want := MainConfig{
		InputDir:         "./input",
		OutputDir:        "./output",
		LogDir:           "./logs",
		FilePrefix:       "BBOX",
		FileExtension:    ".XML",
		ReportFormat:     "xlsx",
		ReportNameFormat: "fuel_rates_{timestamp}",
		LogLevel:         "info",
		LogFormat:        "text",
		Workers:          4,
		Plausibility:     Plausibility{MaxRate: 150},
	}
	if *cfg != want {
		t.Errorf("got %+v, want defaults %+v", *cfg, want)
	}
	if cfg.FilePrefix != "BBOX" || cfg.FileExtension != ".XML" || cfg.Workers != 4 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Plausibility.MinRate != 0 || cfg.Plausibility.MaxRate != 150 {
		t.Errorf("unexpected plausibility defaults %+v", cfg.Plausibility)
	}
}

func TestLoadMainConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
input_dir: /data/bbox
report_format: CSV
workers: 2
plausibility:
  max_rate: 90
`)

	cfg, err := LoadMainConfig(path, noEnvFile(t))
	if err != nil {
		t.Fatalf("LoadMainConfig() error = %v", err)
	}
	if cfg.InputDir != "/data/bbox" || cfg.Workers != 2 || cfg.Plausibility.MaxRate != 90 {
		t.Errorf("YAML values not applied: %+v", cfg)
	}
	if cfg.ReportFormat != "csv" {
		t.Errorf("ReportFormat = %q, want normalized csv", cfg.ReportFormat)
	}
	if cfg.OutputDir != "./output" {
		t.Errorf("unset field lost its default: %q", cfg.OutputDir)
	}
}

func TestLoadMainConfig_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "workers: 2\nlog_level: debug\n")

	t.Setenv("BBOX_WORKERS", "8")
	t.Setenv("BBOX_PLAUSIBILITY_MIN_RATE", "1.5")

	cfg, err := LoadMainConfig(path, noEnvFile(t))
	if err != nil {
		t.Fatalf("LoadMainConfig() error = %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want env value 8", cfg.Workers)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want YAML value debug", cfg.LogLevel)
	}
	if cfg.Plausibility.MinRate != 1.5 {
		t.Errorf("MinRate = %v, want 1.5", cfg.Plausibility.MinRate)
	}
}

func TestLoadMainConfig_DotEnv(t *testing.T) {
	t.Cleanup(func() { os.Unsetenv("BBOX_METRICS_ADDR") })

	envFile := writeFile(t, t.TempDir(), "test.env", "BBOX_METRICS_ADDR=:9102\n")
	cfg, err := LoadMainConfig("", envFile)
	if err != nil {
		t.Fatalf("LoadMainConfig() error = %v", err)
	}
	if cfg.MetricsAddr != ":9102" {
		t.Errorf("MetricsAddr = %q, want :9102", cfg.MetricsAddr)
	}
}

func TestLoadMainConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml"), "failed to read config file"},
		{"bad yaml", writeFile(t, dir, "bad.yaml", "workers: [1, 2"), "failed to parse config file"},
		{"bad format", writeFile(t, dir, "fmt.yaml", "report_format: pdf"), "report_format"},
		{"bad workers", writeFile(t, dir, "w.yaml", "workers: -1"), "workers"},
		{"bad bounds", writeFile(t, dir, "b.yaml", "plausibility: {min_rate: 200, max_rate: 100}"), "min_rate"},
		{"bad extension", writeFile(t, dir, "e.yaml", "file_extension: XML"), "file_extension"},
		{"bad log format", writeFile(t, dir, "l.yaml", "log_format: xml"), "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMainConfig(tt.path, noEnvFile(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
