package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/screener/internal/loader"
	"github.com/wonny/screener/internal/universe"
	"github.com/wonny/screener/pkg/logger"
)

// PriceLoader refreshes cached price series
type PriceLoader interface {
	Load(ctx context.Context, symbols []string, period string) loader.Result
}

// PriceWarmupJob refreshes cached prices for a universe before market scans
// ⭐ SSOT: 가격 캐시 선행 갱신은 이 Job에서만
type PriceWarmupJob struct {
	symbols  SymbolSource
	loader   PriceLoader
	spec     universe.Spec
	period   string
	schedule string
	logger   *logger.Logger
}

// NewPriceWarmupJob creates a warmup job for spec on schedule
func NewPriceWarmupJob(symbols SymbolSource, ld PriceLoader, spec universe.Spec, period, schedule string, log *logger.Logger) *PriceWarmupJob {
	return &PriceWarmupJob{
		symbols:  symbols,
		loader:   ld,
		spec:     spec,
		period:   period,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *PriceWarmupJob) Name() string {
	return "price_warmup:" + j.spec.Name
}

// Schedule returns the cron schedule
func (j *PriceWarmupJob) Schedule() string {
	return j.schedule
}

// Run loads the universe and refreshes every stale series
func (j *PriceWarmupJob) Run(ctx context.Context) error {
	j.logger.WithField("universe", j.spec.Name).Info("Starting scheduled price warmup")

	symbols, err := j.symbols.Load(ctx, j.spec)
	if err != nil {
		return fmt.Errorf("load universe %s: %w", j.spec.Name, err)
	}

	res := j.loader.Load(ctx, symbols, j.period)
	missing := res.Missing(symbols)

	j.logger.WithFields(map[string]interface{}{
		"universe":     j.spec.Name,
		"symbols":      len(symbols),
		"cache_hits":   res.CacheHits,
		"cache_misses": res.CacheMisses,
		"missing":      len(missing),
	}).Info("Price warmup completed")

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
