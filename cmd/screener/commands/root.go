package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose     bool
	presetsPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "US equity screener",
	Long: `Stock screener CLI

Scans a universe of US symbols with a registered strategy, caching daily
price history on disk and exporting the matches.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener strategies
  go run ./cmd/screener scan --strategy golden_cross --universe sp500 --out exports/gc.json
  go run ./cmd/screener scan --preset daily-golden-cross
  go run ./cmd/screener chart AAPL --period 6mo
  go run ./cmd/screener cache stats
  go run ./cmd/screener api
  go run ./cmd/screener schedule start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&presetsPath, "presets", "", "preset file (default SCAN_PRESETS_PATH or presets.yaml)")
}
