package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/pkg/database"
	"github.com/wonny/screener/pkg/redis"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and optional backends",
	Long: `Loads the configuration and checks every configured backend.

This command:
- prints the effective cache, fetcher and scan settings
- opens the price cache index
- pings PostgreSQL when DATABASE_URL is set (scan history)
- pings Redis when REDIS_ENABLED is true (fundamentals cache)

Example:
  go run ./cmd/screener doctor`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Config loaded (ENV: %s)", cfg.Env))
	PrintKeyValue("Cache dir", cfg.Cache.Dir, 14)
	PrintKeyValue("Cache TTL", cfg.Cache.TTL.String(), 14)
	PrintKeyValue("Chunk size", fmt.Sprintf("%d", cfg.Fetcher.BatchChunkSize), 14)
	PrintKeyValue("Workers", fmt.Sprintf("%d", cfg.Scan.Workers), 14)
	PrintKeyValue("Presets", cfg.Scan.PresetsPath, 14)

	a, err := newApp(context.Background(), appOptions{})
	if err != nil {
		return err
	}
	stats, err := a.cache.Stats()
	a.Close()
	if err != nil {
		return fmt.Errorf("❌ Price cache unreadable: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Price cache ok (%d entries, %d stale)", stats.Entries, stats.Stale))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cfg.Database.Enabled() {
		PrintKeyValue("Database", maskPassword(cfg.Database.URL), 14)
		db, err := database.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("❌ Failed to connect to database: %w", err)
		}
		status := db.HealthCheck(ctx)
		db.Close()
		if !status.Healthy {
			return fmt.Errorf("❌ Database unhealthy: %s", status.Error)
		}
		PrintSuccess(fmt.Sprintf("Database ok (%v, %d/%d conns)", status.ResponseTime, status.TotalConns, status.MaxConns))
	} else {
		PrintInfo("DATABASE_URL not set, scan history disabled")
	}

	if cfg.Redis.Enabled {
		client, err := redis.New(cfg)
		if err != nil {
			return fmt.Errorf("❌ %w", err)
		}
		client.Close()
		PrintSuccess(fmt.Sprintf("Redis ok (%s:%s)", cfg.Redis.Host, cfg.Redis.Port))
	} else {
		PrintInfo("REDIS_ENABLED is false, fundamentals cached in memory only")
	}

	fmt.Println("\n✅ All checks passed!")
	return nil
}

// maskPassword hides the password of a database URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
