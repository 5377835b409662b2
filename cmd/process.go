// =============================================================================
// BBOX Fuel Dispense Analyzer - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main command of the analyzer.
// It orchestrates one complete run over the input directory.
//
// COMMAND USAGE:
//   bbox-analyzer process [flags]
//
// FLAGS:
//   --dry-run  : Analyze without writing the report or logs
//   --file     : Analyze only the named file(s)
//   --format   : Report format (xlsx, csv, xml); overrides report_format
//   --workers  : Sources processed concurrently; overrides workers
//   --column, --fuel, --from, --to : Restrict the report rows
//
// PROCESSING PIPELINE:
//   1. Discover BBOX files in the input directory
//   2. Process each file concurrently (read, extract, reconstruct)
//   3. Merge every successful file into the model
//   4. Check the rates for plausibility
//   5. Write the report, the error log and the summary log
//
// A file that fails is reported and skipped; it never stops the run.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/engine"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/report"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/validation"
	"github.com/ginjaninja78/bbox-fuel-analyzer/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun       bool
	files        []string
	formatFlag   string
	workersFlag  int
	filterColumn int
	filterFuel   string
	filterFrom   string
	filterTo     string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Analyze BBOX logs and write a dispensing rate report",
	Long: `The process command scans the input directory for BBOX files, reconstructs
every dispensing transaction they contain and writes a rate report.

Files are processed concurrently. Each file is processed independently, and
errors in one file do not affect the processing of others.

Outputs:
  - A report in the output directory (xlsx, csv or xml)
  - A processing summary in the log directory
  - An error log in the log directory when files failed or rates look
    implausible`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runProcess(ctx, cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Analyze without writing the report or logs")
	processCmd.Flags().StringSliceVar(&files, "file", nil, "Analyze only these files instead of the input directory")
	processCmd.Flags().StringVar(&formatFlag, "format", "", "Report format: xlsx, csv or xml (default from config)")
	processCmd.Flags().IntVar(&workersFlag, "workers", 0, "Number of files processed concurrently (default from config)")
	addFilterFlags(processCmd)
}

// addFilterFlags registers the row filter flags shared by several commands.
func addFilterFlags(c *cobra.Command) {
	c.Flags().IntVar(&filterColumn, "column", 0, "Only this column id")
	c.Flags().StringVar(&filterFuel, "fuel", "", "Only this fuel name")
	c.Flags().StringVar(&filterFrom, "from", "", "First date, YYYY-MM-DD (inclusive)")
	c.Flags().StringVar(&filterTo, "to", "", "Last date, YYYY-MM-DD (inclusive)")
}

func currentFilter() (rowFilter, error) {
	r, err := parseDateRange(filterFrom, filterTo)
	if err != nil {
		return rowFilter{}, err
	}
	return rowFilter{Column: filterColumn, Fuel: filterFuel, Range: r}, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context, cmd *cobra.Command) error {
	startTime := time.Now()
	out := cmd.OutOrStdout()
	cfg := *mainConfig

	if workersFlag > 0 {
		cfg.Workers = workersFlag
	}
	format, err := report.ParseFormat(cfg.ReportFormat)
	if formatFlag != "" {
		format, err = report.ParseFormat(formatFlag)
	}
	if err != nil {
		return err
	}
	filter, err := currentFilter()
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	fm := newFileManager(&cfg)
	inputFiles := files
	if len(inputFiles) == 0 {
		if inputFiles, err = fm.DiscoverSources(); err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}
	if len(inputFiles) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No BBOX files found in "+cfg.InputDir))
		return nil
	}
	logger.Info("input files discovered", "count", len(inputFiles), "dir", cfg.InputDir)

	// =========================================================================
	// STEP 2-3: PROCESS AND MERGE
	// =========================================================================

	reporter := newProgressReporter(len(inputFiles), cmd.ErrOrStderr())
	eng := newEngine(ctx, &cfg, reporter)
	sum, runErr := eng.Run(ctx, fileSources(inputFiles))
	if runErr != nil {
		logger.Warn("run interrupted", "error", runErr)
	}

	// =========================================================================
	// STEP 4: PLAUSIBILITY
	// =========================================================================

	rows := filter.apply(eng.Rows())
	diags := validation.CheckRates(rows, plausibilityOptions(&cfg))
	for _, d := range diags {
		logger.Warn("implausible dispensing event",
			"rule", d.Rule,
			"date", d.Date.String(),
			"column", d.Column,
			"fuel", d.Fuel,
			"value", d.Value)
	}

	// =========================================================================
	// STEP 5: OUTPUTS
	// =========================================================================

	var reportFile, errorLog, summaryLog string
	if !dryRun {
		if err := fm.EnsureDirectories(); err != nil {
			return err
		}
		reportFile, err = writeReport(&cfg, format, report.Data{
			RunID:       sum.RunID,
			Rows:        rows,
			Catalog:     eng.Catalog(),
			Diagnostics: diags,
		})
		if err != nil {
			return err
		}
		if errorLog, err = utils.WriteErrorLog(errorEntries(sum, diags), cfg.LogDir, sum.RunID); err != nil {
			return err
		}
		if summaryLog, err = utils.WriteSummaryLog(processingSummary(sum, startTime, time.Now(), len(diags), reportFile), cfg.LogDir); err != nil {
			return err
		}
	}

	printRunSummary(cmd, sum, eng, len(rows), diags, reportFile, errorLog, summaryLog)
	return runErr
}

func printRunSummary(cmd *cobra.Command, sum *engine.Summary, eng *engine.Engine, rows int, diags []*validation.Diagnostic, reportFile, errorLog, summaryLog string) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("Processing Complete"))
	fmt.Fprintln(out, divider)
	printField(out, "Run ID", sum.RunID)
	printField(out, "Total files", sum.Total)
	printField(out, "Successful", successStyle.Render(fmt.Sprint(sum.Processed)))
	if sum.Failed() > 0 {
		printField(out, "Failed", failureStyle.Render(fmt.Sprint(sum.Failed())))
	} else {
		printField(out, "Failed", 0)
	}
	if sum.Skipped > 0 {
		printField(out, "Skipped", sum.Skipped)
	}
	printField(out, "Dispensing events", sum.Events)
	if first, last, ok := eng.ObservedDateRange(); ok {
		printField(out, "Observed dates", fmt.Sprintf("%s .. %s", first, last))
	}
	printField(out, "Report rows", rows)
	if len(diags) > 0 {
		printField(out, "Diagnostics", fmt.Sprintf("%d (%s)", len(diags), ruleCounts(diags)))
	} else {
		printField(out, "Diagnostics", 0)
	}
	printField(out, "Time elapsed", sum.Duration.Round(time.Millisecond))
	for _, f := range []struct{ label, path string }{
		{"Report", reportFile},
		{"Error log", errorLog},
		{"Summary log", summaryLog},
	} {
		if f.path != "" {
			printField(out, f.label, f.path)
		}
	}
	fmt.Fprintln(out, divider)
}
