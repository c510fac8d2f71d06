package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/universe"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe NAME",
	Short: "Show the symbols of a universe",
	Long: `Loads a universe (downloading it when the cached list is older than
UNIVERSE_REFRESH) and prints its size and symbols.

Universes: us-all, nasdaq, nyse, sp500, custom

Example:
  go run ./cmd/screener universe sp500
  go run ./cmd/screener universe custom --file watchlist.txt --show 0`,
	Args: cobra.ExactArgs(1),
	RunE: runUniverse,
}

var (
	universeFile     string
	universeMaxCount int
	universeShow     int
)

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.Flags().StringVar(&universeFile, "file", "", "ticker file for the custom universe")
	universeCmd.Flags().IntVar(&universeMaxCount, "max-count", 0, "limit to the first N symbols")
	universeCmd.Flags().IntVar(&universeShow, "show", 30, "symbols to print (0 = all)")
}

func runUniverse(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	symbols, err := a.universe.Load(ctx, universe.Spec{Name: args[0], MaxCount: universeMaxCount, File: universeFile})
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Universe %s: %d symbols", args[0], len(symbols)))
	shown := symbols
	if universeShow > 0 && len(shown) > universeShow {
		shown = shown[:universeShow]
	}
	fmt.Println(strings.Join(shown, " "))
	if len(shown) < len(symbols) {
		PrintInfo(fmt.Sprintf("... and %d more", len(symbols)-len(shown)))
	}
	return nil
}
