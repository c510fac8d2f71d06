// Package cache persists price series on disk, one CSV file per (symbol, period),
// with freshness metadata in a SQLite index.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
)

const fileExt = ".csv"

// Cache is the on-disk price cache
// ⭐ SSOT: 가격 캐시 파일과 인덱스는 여기서만 관리
type Cache struct {
	dir       string
	pricesDir string
	ttl       time.Duration
	index     *index
	logger    *logger.Logger
	now       func() time.Time

	// serializes file replacement with its index upsert
	mu sync.Mutex
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Stats summarizes the cache contents
type Stats struct {
	Dir     string `json:"dir"`
	Entries int    `json:"entries"`
	Rows    int    `json:"rows"`
	Stale   int    `json:"stale"`
}

// New opens (or creates) the cache under cfg.Dir
func New(cfg config.CacheConfig, log *logger.Logger, opts ...Option) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache dir is required")
	}
	prices := cfg.PricesSubdir
	if prices == "" {
		prices = "prices"
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "index.db"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	pricesDir := filepath.Join(cfg.Dir, prices)
	if err := os.MkdirAll(pricesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	ix, err := openIndex(filepath.Join(cfg.Dir, indexName))
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}

	c := &Cache{
		dir:       cfg.Dir,
		pricesDir: pricesDir,
		ttl:       ttl,
		index:     ix,
		logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the index database
func (c *Cache) Close() error {
	return c.index.close()
}

// key normalizes a symbol for file names and index rows
func key(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", "-"))
}

func (c *Cache) path(symbol, period string) string {
	name := fmt.Sprintf("%s__%s%s", key(symbol), strings.ReplaceAll(period, "/", "-"), fileExt)
	return filepath.Join(c.pricesDir, name)
}

// Get returns a copy of the cached series; false when missing, unreadable or empty
func (c *Cache) Get(symbol, period string) (contracts.Series, bool) {
	path := c.path(symbol, period)

	series, err := readSeriesFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol": symbol,
				"period": period,
			}).Warn("Failed to read cached series")
		}
		return contracts.Series{}, false
	}

	series = series.Clean()
	if series.Empty() {
		return contracts.Series{}, false
	}
	return series.WithSymbol(contracts.NormalizeSymbol(symbol)), true
}

// Set stores series; empty series are ignored and write errors are logged only
func (c *Cache) Set(symbol, period string, series contracts.Series) {
	if series.Empty() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"period": period,
	})

	if err := writeSeriesFile(c.path(symbol, period), series); err != nil {
		log.WithError(err).Error("Failed to write cached series")
		return
	}

	entry := contracts.CacheEntry{
		Symbol:    key(symbol),
		Period:    period,
		UpdatedAt: c.now().UTC(),
		Rows:      series.Len(),
	}
	if err := c.index.upsert(entry); err != nil {
		log.WithError(err).Error("Failed to update cache index")
		return
	}

	log.WithField("rows", entry.Rows).Debug("Cached series")
}

// IsStale reports whether the entry is missing or older than ttl (default TTL when omitted)
func (c *Cache) IsStale(symbol, period string, ttl ...time.Duration) bool {
	limit := c.ttl
	if len(ttl) > 0 {
		limit = ttl[0]
	}

	entry, ok, err := c.index.lookup(key(symbol), period)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Cache index lookup failed")
		return true
	}
	if !ok {
		return true
	}
	// a non-positive ttl accepts nothing
	if limit <= 0 {
		return true
	}
	return c.now().UTC().Sub(entry.UpdatedAt) > limit
}

// Entry returns the index metadata for (symbol, period)
func (c *Cache) Entry(symbol, period string) (contracts.CacheEntry, bool) {
	entry, ok, err := c.index.lookup(key(symbol), period)
	if err != nil {
		return contracts.CacheEntry{}, false
	}
	return entry, ok
}

// Clear removes cached series and returns how many files were deleted.
// symbol only: all periods of symbol. olderThan only: entries last updated
// before now-olderThan. Both: the intersection. Neither: everything.
func (c *Cache) Clear(symbol string, olderThan time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var before time.Time
	if olderThan > 0 {
		before = c.now().UTC().Add(-olderThan)
	}
	sym := ""
	if strings.TrimSpace(symbol) != "" {
		sym = key(symbol)
	}

	entries, err := c.index.list(sym, before)
	if err != nil {
		c.logger.WithError(err).Error("Failed to list cache entries")
		return 0
	}

	removed := 0
	for _, e := range entries {
		if c.removeFile(c.path(e.Symbol, e.Period)) {
			removed++
		}
		if err := c.index.remove(e.Symbol, e.Period); err != nil {
			c.logger.WithError(err).WithField("symbol", e.Symbol).Warn("Failed to remove cache index entry")
		}
	}

	if sym == "" && before.IsZero() {
		removed += c.removeOrphans()
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":  sym,
		"before":  before,
		"removed": removed,
	}).Info("Cache cleared")

	return removed
}

// removeOrphans deletes series files with no index row
func (c *Cache) removeOrphans() int {
	matches, err := filepath.Glob(filepath.Join(c.pricesDir, "*"+fileExt))
	if err != nil {
		return 0
	}
	removed := 0
	for _, path := range matches {
		if c.removeFile(path) {
			removed++
		}
	}
	return removed
}

func (c *Cache) removeFile(path string) bool {
	err := os.Remove(path)
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		c.logger.WithError(err).WithField("path", path).Warn("Failed to remove cached file")
	}
	return false
}

// Stats summarizes the index
func (c *Cache) Stats() (Stats, error) {
	entries, err := c.index.list("", time.Time{})
	if err != nil {
		return Stats{}, err
	}

	now := c.now().UTC()
	stats := Stats{Dir: c.dir, Entries: len(entries)}
	for _, e := range entries {
		stats.Rows += e.Rows
		if now.Sub(e.UpdatedAt) > c.ttl {
			stats.Stale++
		}
	}
	return stats, nil
}
