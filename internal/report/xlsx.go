package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the xlsx report.
const (
	SheetRates       = "Rates"
	SheetCatalog     = "Catalog"
	SheetDiagnostics = "Diagnostics"
)

func renderXLSX(w io.Writer, data Data) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetRates); err != nil {
		return err
	}
	rates := [][]any{toAny(rateHeader)}
	for _, r := range data.Rows {
		rates = append(rates, []any{
			r.Date.String(), r.Column, r.Fuel,
			r.Start.Format(time.DateTime), r.End.Format(time.DateTime),
			r.Duration.Minutes(), r.Volume, r.Rate,
		})
	}
	if err := writeSheet(f, SheetRates, rates, header); err != nil {
		return err
	}

	if data.Catalog != nil {
		rows := [][]any{{"Station", "Column", "Fuels", "Hoses"}}
		for _, c := range catalogRows(data.Catalog) {
			rows = append(rows, []any{c.Station, c.Column, strings.Join(c.Fuels, ", "), c.hoseSummary()})
		}
		if err := addSheet(f, SheetCatalog, rows, header); err != nil {
			return err
		}
	}

	if len(data.Diagnostics) > 0 {
		rows := [][]any{{"Date", "Column", "Fuel", "Start", "Rule", "Value", "Message"}}
		for _, d := range data.Diagnostics {
			rows = append(rows, []any{
				d.Date.String(), d.Column, d.Fuel, d.Start.Format(time.DateTime), d.Rule, d.Value, d.Message,
			})
		}
		if err := addSheet(f, SheetDiagnostics, rows, header); err != nil {
			return err
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       "Fuel dispensing rates",
		Description: "run " + data.RunID,
		Created:     data.Generated.UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func addSheet(f *excelize.File, name string, rows [][]any, header int) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	return writeSheet(f, name, rows, header)
}

func writeSheet(f *excelize.File, name string, rows [][]any, header int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", name, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, header); err != nil {
		return err
	}
	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
