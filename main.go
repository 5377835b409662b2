// =============================================================================
// BBOX Fuel Dispense Analyzer - Main Entry Point
// =============================================================================
//
// USAGE:
//   bbox-analyzer process   - Analyze all BBOX files in the input directory
//   bbox-analyzer rates     - Print the rate series of one column and fuel
//   bbox-analyzer catalog   - Print the station, column and fuel catalogs
//   bbox-analyzer watch     - Analyze new BBOX files as they arrive
//   bbox-analyzer version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Reading, extraction, reconstruction and the model
//   - pkg/           : Shared file system utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/bbox-fuel-analyzer/cmd"
)

func main() {
	cmd.Execute()
}
