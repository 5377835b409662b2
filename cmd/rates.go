// =============================================================================
// BBOX Fuel Dispense Analyzer - Rates Command
// =============================================================================
//
// COMMAND USAGE:
//   bbox-analyzer rates --column 3 --fuel AI-92 [--from 2024-01-01] [--to ...]
//
// Prints every dispensing rate of one column and fuel, followed by their
// mean. Events with a zero duration have no rate and are left out.
//
// =============================================================================

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Print the dispensing rate series of one column and fuel",
	RunE: func(cmd *cobra.Command, args []string) error {
		if filterColumn <= 0 || filterFuel == "" {
			return fmt.Errorf("--column and --fuel are required")
		}
		filter, err := currentFilter()
		if err != nil {
			return err
		}

		eng, _, err := analyzeInput(cmd.Context(), mainConfig)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		points := eng.QueryRateSeries(filter.Column, filter.Fuel, filter.Range)
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Column %d / %s", filter.Column, filter.Fuel)))
		fmt.Fprintln(out, divider)
		for _, p := range points {
			fmt.Fprintf(out, "  %s  %8.2f min  %8.2f /min\n",
				p.Start.Format(time.DateTime), p.Duration.Minutes(), p.Rate)
		}
		fmt.Fprintln(out, divider)

		if mean, ok := eng.MeanRate(filter.Column, filter.Fuel, filter.Range); ok {
			printField(out, "Events", len(points))
			printField(out, "Mean rate", fmt.Sprintf("%.2f /min", mean))
		} else {
			fmt.Fprintln(out, mutedStyle.Render("  No dispensing events match."))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ratesCmd)
	addFilterFlags(ratesCmd)
}
