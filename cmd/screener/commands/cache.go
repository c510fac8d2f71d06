package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Price cache maintenance",
	Long: `Inspects or clears the on-disk price cache.

Subcommands:
  stats  - entries, rows and stale entries
  clear  - remove entries

Example:
  go run ./cmd/screener cache stats
  go run ./cmd/screener cache clear --symbol AAPL
  go run ./cmd/screener cache clear --older-than 720h`,
}

var (
	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE:  runCacheStats,
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove cached series",
		RunE:  runCacheClear,
	}

	cacheClearSymbol    string
	cacheClearOlderThan time.Duration
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().StringVar(&cacheClearSymbol, "symbol", "", "only this symbol")
	cacheClearCmd.Flags().DurationVar(&cacheClearOlderThan, "older-than", 0, "only entries fetched longer ago than this")
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.cache.Stats()
	if err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}

	PrintHeader("Price cache")
	PrintKeyValue("Directory", stats.Dir, 10)
	PrintKeyValue("Entries", fmt.Sprintf("%d", stats.Entries), 10)
	PrintKeyValue("Rows", fmt.Sprintf("%d", stats.Rows), 10)
	PrintKeyValue("Stale", fmt.Sprintf("%d (ttl %s)", stats.Stale, a.cfg.Cache.TTL), 10)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	removed := a.cache.Clear(cacheClearSymbol, cacheClearOlderThan)
	PrintSuccess(fmt.Sprintf("Removed %d cache entries", removed))
	return nil
}
