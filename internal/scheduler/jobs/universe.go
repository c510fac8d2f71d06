package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/screener/internal/universe"
	"github.com/wonny/screener/pkg/logger"
)

// UniverseRefreshJob keeps downloaded symbol lists current
type UniverseRefreshJob struct {
	symbols SymbolSource
	names   []string
	logger  *logger.Logger
}

// NewUniverseRefreshJob creates a refresh job for the named universes
func NewUniverseRefreshJob(symbols SymbolSource, names []string, log *logger.Logger) *UniverseRefreshJob {
	return &UniverseRefreshJob{
		symbols: symbols,
		names:   names,
		logger:  log,
	}
}

// Name returns the job name
func (j *UniverseRefreshJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule (weekdays at 6 AM)
func (j *UniverseRefreshJob) Schedule() string {
	return "0 0 6 * * 1-5"
}

// Run loads every universe, downloading lists older than the refresh age
func (j *UniverseRefreshJob) Run(ctx context.Context) error {
	var failed []string
	for _, name := range j.names {
		if name == universe.Custom {
			continue
		}
		symbols, err := j.symbols.Load(ctx, universe.Spec{Name: name})
		if err != nil {
			j.logger.WithError(err).WithField("universe", name).Warn("Universe refresh failed")
			failed = append(failed, name)
			continue
		}
		j.logger.WithFields(map[string]interface{}{
			"universe": name,
			"symbols":  len(symbols),
		}).Info("Universe refreshed")
	}

	if len(failed) > 0 {
		return fmt.Errorf("refresh failed for %v", failed)
	}
	return nil
}
