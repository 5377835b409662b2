// =============================================================================
// BBOX Fuel Dispense Analyzer - Report Module
// =============================================================================
//
// This module renders the cumulative model into one-shot report files. A
// report is never read back by the analyzer.
//
// FORMATS:
//   | Format | Content                                              |
//   |--------|------------------------------------------------------|
//   | xlsx   | "Rates", "Catalog" and (when any) "Diagnostics"      |
//   |        | sheets                                               |
//   | csv    | the rate rows only                                   |
//   | xml    | rate events, catalog and diagnostics in one document |
//
// =============================================================================

package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/catalog"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/series"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/validation"
)

// Format is a report file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatCSV, FormatXML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Extension returns the file extension of f, including the dot.
func (f Format) Extension() string { return "." + string(f) }

// Data is everything a report can show. Catalog and Diagnostics are
// optional.
type Data struct {
	RunID       string
	Generated   time.Time
	Rows        []series.Row
	Catalog     *catalog.Catalog
	Diagnostics []*validation.Diagnostic
}

// rateHeader is shared by the xlsx and csv renderings.
var rateHeader = []string{"Date", "Column", "Fuel", "Start", "End", "Duration (min)", "Volume", "Rate (per min)"}

func rateRecord(r series.Row) []string {
	return []string{
		r.Date.String(),
		strconv.Itoa(r.Column),
		r.Fuel,
		r.Start.Format(time.DateTime),
		r.End.Format(time.DateTime),
		formatFloat(r.Duration.Minutes()),
		formatFloat(r.Volume),
		formatFloat(r.Rate),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// catalogRow is one station column of the catalog.
type catalogRow struct {
	Station string
	Column  int
	Fuels   []string
	Hoses   []hoseRow
}

type hoseRow struct {
	Number int
	Fuels  []string
}

func catalogRows(cat *catalog.Catalog) []catalogRow {
	if cat == nil {
		return nil
	}
	var out []catalogRow
	for _, station := range cat.Stations() {
		for _, column := range cat.StationColumns(station) {
			row := catalogRow{Station: station, Column: column, Fuels: cat.ColumnFuels(station, column)}
			for _, hose := range cat.Hoses(station, column) {
				row.Hoses = append(row.Hoses, hoseRow{Number: hose, Fuels: cat.HoseFuels(station, column, hose)})
			}
			out = append(out, row)
		}
	}
	return out
}

func (r catalogRow) hoseSummary() string {
	parts := make([]string, len(r.Hoses))
	for i, h := range r.Hoses {
		parts[i] = fmt.Sprintf("%d: %s", h.Number, strings.Join(h.Fuels, ", "))
	}
	return strings.Join(parts, "; ")
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// Render writes data to w in format f.
func Render(f Format, w io.Writer, data Data) error {
	if data.Generated.IsZero() {
		data.Generated = time.Now()
	}
	switch f {
	case FormatXLSX:
		return renderXLSX(w, data)
	case FormatCSV:
		return renderCSV(w, data)
	case FormatXML:
		return renderXML(w, data)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// Write renders data into a new file at path.
func Write(f Format, path string, data Data) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := Render(f, file, data); err != nil {
		file.Close()
		return fmt.Errorf("failed to render %s report: %w", f, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	return nil
}
