package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/bboxreader"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/config"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/engine"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/extract"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/metrics"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/reconstruct"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/report"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/series"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/validation"
	"github.com/ginjaninja78/bbox-fuel-analyzer/pkg/utils"
)

// =============================================================================
// ENGINE SETUP
// =============================================================================

// newEngine builds an engine with its own metrics registry. The metrics
// server is started when the configuration names an address; it stops with
// ctx.
func newEngine(ctx context.Context, cfg *config.MainConfig, reporter engine.Reporter) *engine.Engine {
	reg := prometheus.NewRegistry()
	m := metrics.NewAnalyzerMetrics(reg)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	return engine.New(engine.Options{
		Workers:  cfg.Workers,
		Logger:   logger,
		Metrics:  m,
		Reporter: reporter,
	})
}

func newFileManager(cfg *config.MainConfig) *utils.FileManager {
	return utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.LogDir, cfg.FilePrefix, cfg.FileExtension)
}

// fileSources wraps paths as engine sources.
func fileSources(paths []string) []engine.Source {
	sources := make([]engine.Source, len(paths))
	for i, p := range paths {
		sources[i] = bboxreader.FileSource{Path: p}
	}
	return sources
}

// =============================================================================
// FILTERS
// =============================================================================

// rowFilter narrows report rows. Zero fields match everything.
type rowFilter struct {
	Column int
	Fuel   string
	Range  types.DateRange
}

func (f rowFilter) apply(rows []series.Row) []series.Row {
	var out []series.Row
	for _, r := range rows {
		if f.Column != 0 && r.Column != f.Column {
			continue
		}
		if f.Fuel != "" && r.Fuel != f.Fuel {
			continue
		}
		if !f.Range.Contains(r.Date) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// plausibilityOptions overlays the configured bounds on the default band.
func plausibilityOptions(cfg *config.MainConfig) validation.Options {
	opts := validation.DefaultOptions()
	if cfg.Plausibility.MinRate != 0 {
		opts.MinRate = cfg.Plausibility.MinRate
	}
	if cfg.Plausibility.MaxRate != 0 {
		opts.MaxRate = cfg.Plausibility.MaxRate
	}
	return opts
}

// ruleCounts renders diagnostic counts per rule, e.g. "max_rate: 2, min_rate: 1".
func ruleCounts(diags []*validation.Diagnostic) string {
	counts := validation.CountByRule(diags)
	parts := make([]string, 0, len(counts))
	for _, rule := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s: %d", rule, counts[rule]))
	}
	return strings.Join(parts, ", ")
}

// parseDateRange parses optional YYYY-MM-DD bounds.
func parseDateRange(from, to string) (types.DateRange, error) {
	var r types.DateRange
	var err error
	if from != "" {
		if r.From, err = types.ParseDate(from); err != nil {
			return r, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if r.To, err = types.ParseDate(to); err != nil {
			return r, fmt.Errorf("--to: %w", err)
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, fmt.Errorf("date range ends (%s) before it starts (%s)", r.To, r.From)
	}
	return r, nil
}

// =============================================================================
// OUTPUTS
// =============================================================================

// writeReport renders data into a new file in the output directory and
// returns its path.
func writeReport(cfg *config.MainConfig, format report.Format, data report.Data) (string, error) {
	path := reportPath(cfg, format, data.RunID)
	if err := report.Write(format, path, data); err != nil {
		return "", err
	}
	return path, nil
}

// reportPath names a new report file in the output directory.
func reportPath(cfg *config.MainConfig, format report.Format, runID string) string {
	name := utils.GenerateOutputFileName(cfg.ReportNameFormat, format.Extension(), map[string]string{"run": runID})
	return filepath.Join(cfg.OutputDir, name)
}

// analyzeInput runs every file of the input directory through a fresh
// engine without progress output.
func analyzeInput(ctx context.Context, cfg *config.MainConfig) (*engine.Engine, *engine.Summary, error) {
	paths, err := newFileManager(cfg).DiscoverSources()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover input files: %w", err)
	}
	eng := newEngine(ctx, cfg, nil)
	sum, err := eng.Run(ctx, fileSources(paths))
	if err != nil {
		return nil, nil, err
	}
	for _, f := range sum.Failures {
		logger.Warn("source skipped", "source", f.Source, "error", f.Err)
	}
	return eng, sum, nil
}

// errorEntries turns failed sources and diagnostics into error log entries.
func errorEntries(sum *engine.Summary, diags []*validation.Diagnostic) []utils.ErrorLogEntry {
	now := time.Now()
	var entries []utils.ErrorLogEntry

	for _, f := range sum.Failures {
		entry := utils.ErrorLogEntry{
			Timestamp: now,
			Source:    f.Source,
			ErrorType: "source",
			Message:   f.Err.Error(),
		}
		var pe *extract.ParseError
		var re *reconstruct.ReconstructionError
		switch {
		case errors.As(f.Err, &pe):
			entry.ErrorType = pe.Kind.String()
			entry.RowNumber = pe.Line
		case errors.As(f.Err, &re):
			entry.ErrorType = "reconstruction"
		}
		entries = append(entries, entry)
	}

	for _, d := range diags {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp: now,
			Source:    d.Date.String(),
			ErrorType: "plausibility/" + d.Rule,
			Message:   d.Message,
			Detail:    fmt.Sprintf("column %d %s at %s, value %.2f", d.Column, d.Fuel, d.Start.Format(time.DateTime), d.Value),
		})
	}
	return entries
}

// processingSummary converts an engine summary for the summary log. start
// and end bound the whole command, not just the engine run.
func processingSummary(sum *engine.Summary, start, end time.Time, diags int, reportFile string) utils.ProcessingSummary {
	ps := utils.ProcessingSummary{
		RunID:           sum.RunID,
		StartTime:       start,
		EndTime:         end,
		TotalFiles:      sum.Total,
		SuccessfulFiles: sum.Processed,
		FailedFiles:     sum.Failed(),
		SkippedFiles:    sum.Skipped,
		TotalEvents:     sum.Events,
		Diagnostics:     diags,
		ReportFile:      reportFile,
	}
	for _, f := range sum.Failures {
		ps.FailedFilesList = append(ps.FailedFilesList, utils.FailedFileInfo{InputFile: f.Source, ErrorMessage: f.Err.Error()})
	}
	return ps
}
