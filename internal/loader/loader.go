// Package loader resolves price series from the cache and the data source.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

// Result is the outcome of one Load call
type Result struct {
	Series      map[string]contracts.Series
	CacheHits   int
	CacheMisses int
}

// Missing returns the symbols with no series, in input order
func (r Result) Missing(symbols []string) []string {
	var missing []string
	for _, sym := range contracts.NormalizeSymbols(symbols) {
		if _, ok := r.Series[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	return missing
}

// Loader combines the price cache with a data source
// ⭐ SSOT: 캐시 우선 가격 로딩은 여기서만
type Loader struct {
	source contracts.DataSource
	cache  contracts.PriceCache
	logger *logger.Logger
	ttl    time.Duration
}

// Option configures a Loader
type Option func(*Loader)

// WithTTL overrides the cache freshness window
func WithTTL(ttl time.Duration) Option {
	return func(l *Loader) { l.ttl = ttl }
}

// New creates a loader
func New(source contracts.DataSource, cache contracts.PriceCache, log *logger.Logger, opts ...Option) *Loader {
	l := &Loader{
		source: source,
		cache:  cache,
		logger: log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) isStale(symbol, period string) bool {
	if l.ttl > 0 {
		return l.cache.IsStale(symbol, period, l.ttl)
	}
	return l.cache.IsStale(symbol, period)
}

// Load returns a series for every symbol that has data.
// Fresh cache entries are used as-is; stale ones are served only when the refresh fails.
func (l *Loader) Load(ctx context.Context, symbols []string, period string) Result {
	symbols = contracts.NormalizeSymbols(symbols)
	res := Result{Series: make(map[string]contracts.Series, len(symbols))}

	stale := make(map[string]contracts.Series)
	var toFetch []string

	for _, sym := range symbols {
		cached, ok := l.cache.Get(sym, period)
		if ok && !l.isStale(sym, period) {
			res.Series[sym] = cached
			res.CacheHits++
			continue
		}
		if ok {
			stale[sym] = cached
		}
		toFetch = append(toFetch, sym)
	}

	if len(toFetch) > 0 {
		fetched := l.source.FetchBatch(ctx, toFetch, period)
		for _, sym := range toFetch {
			if series, ok := fetched[sym]; ok && !series.Empty() {
				series = series.WithSymbol(sym)
				l.cache.Set(sym, period, series)
				res.Series[sym] = series
				res.CacheMisses++
				continue
			}
			if series, ok := stale[sym]; ok {
				res.Series[sym] = series
			}
		}
	}

	l.logger.WithFields(map[string]interface{}{
		"period":  period,
		"symbols": len(symbols),
		"loaded":  len(res.Series),
		"hits":    res.CacheHits,
		"misses":  res.CacheMisses,
		"stale":   len(stale),
	}).Info("Price data loaded")

	return res
}

// LoadOne resolves a single symbol for chart display
func (l *Loader) LoadOne(ctx context.Context, symbol, period string) (contracts.Series, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	if symbol == "" {
		return contracts.Series{}, fmt.Errorf("symbol is required")
	}

	cached, ok := l.cache.Get(symbol, period)
	if ok && !l.isStale(symbol, period) {
		return cached, nil
	}

	series, err := l.source.FetchSingle(ctx, symbol, period)
	if err != nil {
		if ok {
			l.logger.WithError(err).WithField("symbol", symbol).Warn("Refresh failed, serving stale data")
			return cached, nil
		}
		return contracts.Series{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	if series.Empty() {
		return cached, nil
	}

	series = series.WithSymbol(symbol)
	l.cache.Set(symbol, period, series)
	return series, nil
}
