package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

func renderCSV(w io.Writer, data Data) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rateHeader); err != nil {
		return err
	}
	for _, r := range data.Rows {
		if err := cw.Write(rateRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
