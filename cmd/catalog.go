package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// catalogCmd prints what the input directory says about stations, their
// columns, hoses and fuels.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the station, column, hose and fuel catalogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := analyzeInput(cmd.Context(), mainConfig)
		if err != nil {
			return err
		}
		cat := eng.Catalog()
		out := cmd.OutOrStdout()

		for _, station := range cat.Stations() {
			fmt.Fprintln(out, titleStyle.Render(station))
			for _, column := range cat.StationColumns(station) {
				fmt.Fprintf(out, "  column %d: %s\n", column, strings.Join(cat.ColumnFuels(station, column), ", "))
				for _, hose := range cat.Hoses(station, column) {
					fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("    hose %d: %s",
						hose, strings.Join(cat.HoseFuels(station, column, hose), ", "))))
				}
			}
		}
		fmt.Fprintln(out, divider)
		printField(out, "Columns", fmt.Sprint(cat.Columns()))
		printField(out, "Fuels", strings.Join(cat.Fuels(), ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
