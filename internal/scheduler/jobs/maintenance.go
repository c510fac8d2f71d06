package jobs

import (
	"context"
	"time"

	"github.com/wonny/screener/pkg/logger"
)

// CacheCleaner removes cached series
type CacheCleaner interface {
	Clear(symbol string, olderThan time.Duration) int
}

// CacheCleanupJob drops price series nobody refreshed within maxAge
type CacheCleanupJob struct {
	cache  CacheCleaner
	maxAge time.Duration
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(c CacheCleaner, maxAge time.Duration, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:  c,
		maxAge: maxAge,
		logger: log,
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (daily at 3 AM)
func (j *CacheCleanupJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.logger.Debug("Starting scheduled cache cleanup")

	count := j.cache.Clear("", j.maxAge)

	if count > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": count,
			"max_age": j.maxAge,
		}).Info("Cache cleanup completed")
	}

	return nil
}
