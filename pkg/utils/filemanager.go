// =============================================================================
// BBOX Fuel Dispense Analyzer - File Manager Utility
// =============================================================================
//
// This module handles the file system side of a run:
//   - Discovering BBOX files under the input directory
//   - Naming report files
//   - Writing the run summary and error logs
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager locates input files and owns the output directories.
type FileManager struct {
	InputDir  string
	OutputDir string
	LogDir    string

	// Prefix and Extension select BBOX files by base name, case-insensitively.
	Prefix    string
	Extension string
}

// NewFileManager creates a FileManager.
func NewFileManager(inputDir, outputDir, logDir, prefix, extension string) *FileManager {
	return &FileManager{
		InputDir:  inputDir,
		OutputDir: outputDir,
		LogDir:    logDir,
		Prefix:    prefix,
		Extension: extension,
	}
}

// EnsureDirectories creates the output and log directories.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Matches reports whether the base name of path is a BBOX file name.
func (fm *FileManager) Matches(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	return strings.HasPrefix(name, strings.ToLower(fm.Prefix)) &&
		strings.HasSuffix(name, strings.ToLower(fm.Extension))
}

// DiscoverSources walks the input directory recursively and returns every
// matching file, sorted by path.
func (fm *FileManager) DiscoverSources() ([]string, error) {
	var files []string

	err := filepath.WalkDir(fm.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if fm.Matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk input directory: %w", err)
	}

	slices.Sort(files)
	return files, nil
}

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateOutputFileName expands a name format and appends ext when the
// result does not already end with it.
//
// PLACEHOLDERS:
//   - {uuid}: A random UUID
//   - {timestamp}: YYYYMMDD_HHMMSS
//   - {date}: YYYYMMDD
//   - {time}: HHMMSS
//   - {key}: any key of params
func GenerateOutputFileName(format, ext string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}
	return result
}

// shortID returns the first block of a run ID for file names.
func shortID(runID string) string {
	if i := strings.IndexByte(runID, '-'); i > 0 {
		return runID[:i]
	}
	return runID
}

// =============================================================================
// ERROR LOG
// =============================================================================

// ErrorLogEntry is one line item of the error log: a failed source or a
// plausibility diagnostic.
type ErrorLogEntry struct {
	Timestamp time.Time
	Source    string
	ErrorType string
	Message   string
	RowNumber int
	Detail    string
}

// WriteErrorLog writes entries to a new file in dir and returns its path. No
// file is written when there are no entries.
func WriteErrorLog(entries []ErrorLogEntry, dir, runID string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(dir, fmt.Sprintf("error_log_%s_%s.txt", timestamp, shortID(runID)))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "BBOX Fuel Dispense Analyzer - Error Log\n"+
		"Run ID: %s\n"+
		"Generated: %s\n"+
		"Total Entries: %d\n"+
		"================================================================================\n\n",
		runID,
		time.Now().Format(time.DateTime),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Entry #%d\n"+
			"  Timestamp:  %s\n"+
			"  Source:     %s\n"+
			"  Type:       %s\n"+
			"  Message:    %s\n",
			i+1,
			entry.Timestamp.Format(time.DateTime),
			entry.Source,
			entry.ErrorType,
			entry.Message)
		if entry.RowNumber > 0 {
			fmt.Fprintf(writer, "  Row Number: %d\n", entry.RowNumber)
		}
		if entry.Detail != "" {
			fmt.Fprintf(writer, "  Detail:     %s\n", entry.Detail)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}
	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	RunID           string
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	SkippedFiles    int
	TotalEvents     int
	Diagnostics     int
	ReportFile      string
	FailedFilesList []FailedFileInfo
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a processing summary to a new file in dir.
func WriteSummaryLog(summary ProcessingSummary, dir string) (string, error) {
	timestamp := summary.EndTime.Format("20060102_150405")
	summaryPath := filepath.Join(dir, fmt.Sprintf("processing_summary_%s_%s.txt", timestamp, shortID(summary.RunID)))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "BBOX Fuel Dispense Analyzer - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Successful:         %d\n"+
		"  Failed:             %d\n"+
		"  Skipped:            %d\n"+
		"  Dispensing Events:  %d\n"+
		"  Diagnostics:        %d\n",
		summary.RunID,
		summary.StartTime.Format(time.DateTime),
		summary.EndTime.Format(time.DateTime),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.SkippedFiles,
		summary.TotalEvents,
		summary.Diagnostics)
	if summary.ReportFile != "" {
		fmt.Fprintf(writer, "  Report:             %s\n", summary.ReportFile)
	}
	writer.WriteString("\n")

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}
