package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// chartCmd represents the chart command
var chartCmd = &cobra.Command{
	Use:   "chart SYMBOL",
	Short: "Print recent daily bars for a symbol",
	Long: `Loads the price history for one symbol (cache first) and prints the
most recent bars.

Example:
  go run ./cmd/screener chart AAPL
  go run ./cmd/screener chart BRK.B --period 6mo --bars 20`,
	Args: cobra.ExactArgs(1),
	RunE: runChart,
}

var (
	chartPeriod string
	chartBars   int
)

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringVarP(&chartPeriod, "period", "p", "", "history period (default FETCH_DEFAULT_PERIOD)")
	chartCmd.Flags().IntVarP(&chartBars, "bars", "n", 10, "number of bars to print")
}

func runChart(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	period := valueOr(chartPeriod, a.cfg.Fetcher.DefaultPeriod)
	series, err := a.loader.LoadOne(ctx, args[0], period)
	if err != nil {
		return err
	}
	if series.Empty() {
		return fmt.Errorf("no price data for %s", args[0])
	}

	PrintHeader(fmt.Sprintf("%s (%s, %d bars)", series.Symbol, period, series.Len()))
	widths := []int{10, 10, 10, 10, 10, 14}
	PrintTableHeader([]string{"Date", "Open", "High", "Low", "Close", "Volume"}, widths)
	for _, b := range series.Tail(chartBars).Bars {
		PrintTableRow([]string{
			b.Time.Format("2006-01-02"),
			fmt.Sprintf("%.2f", b.Open),
			fmt.Sprintf("%.2f", b.High),
			fmt.Sprintf("%.2f", b.Low),
			fmt.Sprintf("%.2f", b.Close),
			fmt.Sprintf("%.0f", b.Volume),
		}, widths)
	}
	return nil
}
