package commands

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/wonny/screener/internal/cache"
	"github.com/wonny/screener/internal/external/yahoo"
	"github.com/wonny/screener/internal/fundamentals"
	"github.com/wonny/screener/internal/loader"
	"github.com/wonny/screener/internal/recorder"
	"github.com/wonny/screener/internal/runner"
	"github.com/wonny/screener/internal/scans"
	"github.com/wonny/screener/internal/strategyconfig"
	"github.com/wonny/screener/internal/universe"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/database"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/redis"
)

// app holds the wired dependencies shared by commands
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	cache        *cache.Cache
	yahoo        *yahoo.Client
	loader       *loader.Loader
	universe     *universe.Loader
	fundamentals *fundamentals.Service
	recorder     recorder.Recorder
	registry     *scans.Registry

	redis *redis.Client
	db    *database.DB
}

type appOptions struct {
	fundamentals bool
	history      bool
}

// loadConfig reads the environment and applies global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{
		cfg:      cfg,
		log:      log,
		recorder: recorder.Noop{},
		registry: scans.Default(),
	}

	// 3. Price cache
	a.cache, err = cache.New(cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	// 4. Market data
	a.yahoo = yahoo.NewClient(cfg.Fetcher, log)
	a.loader = loader.New(a.yahoo, a.cache, log, loader.WithTTL(cfg.Cache.TTL))

	// 5. Universe lists
	httpClient := httputil.New(cfg, log)
	if cfg.HTTP.RequestsPerSecond > 0 {
		httpClient = httpClient.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.HTTP.RequestsPerSecond), 1))
	}
	a.universe, err = universe.New(cfg.Universe, httpClient, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init universe loader: %w", err)
	}

	// 6. Fundamentals (optional Redis cache)
	if opts.fundamentals || cfg.Scan.WithFundamentals {
		var store fundamentals.Store
		if cfg.Redis.Enabled {
			a.redis, err = redis.New(cfg)
			if err != nil {
				log.WithError(err).Warn("Redis unavailable, fundamentals cached in memory only")
			} else {
				store = redis.NewCache(a.redis, "screener")
			}
		}
		a.fundamentals = fundamentals.New(a.yahoo, store, cfg.Redis.FundamentalTTL, log)
	}

	// 7. Scan history (optional Postgres)
	if opts.history && cfg.Database.Enabled() {
		a.db, err = database.New(ctx, cfg)
		if err != nil {
			log.WithError(err).Warn("Database unavailable, scan history disabled")
		} else {
			pg := recorder.NewPostgres(a.db.Pool)
			if err := pg.Migrate(ctx); err != nil {
				log.WithError(err).Warn("Scan history migration failed, history disabled")
			} else {
				a.recorder = pg
			}
		}
	}

	return a, nil
}

// newRunner builds a runner over the app loader
func (a *app) newRunner(workers int) (*runner.Runner, error) {
	if workers <= 0 {
		workers = a.cfg.Scan.Workers
	}
	opts := []runner.Option{
		runner.WithWorkers(workers),
		runner.WithRegistry(a.registry),
		runner.WithLogger(a.log),
		runner.WithDefaultPeriod(a.cfg.Fetcher.DefaultPeriod),
	}
	if a.fundamentals != nil {
		return runner.New(a.loader, a.fundamentals.Provider(), opts...)
	}
	return runner.New(a.loader, nil, opts...)
}

// loadPresets reads the preset file named by --presets or the config
func (a *app) loadPresets() (*strategyconfig.Config, []byte, error) {
	return loadPresetFile(a.cfg)
}

func loadPresetFile(cfg *config.Config) (*strategyconfig.Config, []byte, error) {
	path := presetsPath
	if path == "" {
		path = cfg.Scan.PresetsPath
	}
	presets, data, err := strategyconfig.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load presets %s: %w", path, err)
	}
	return presets, data, nil
}

// Close releases every opened resource
func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
