// Package fundamentals memoizes per-symbol fundamentals for scenarios.
package fundamentals

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/redis"
)

// Fetcher downloads fundamentals for one symbol
type Fetcher interface {
	Fundamentals(ctx context.Context, symbol string) (contracts.Fundamentals, *contracts.TickerMeta, error)
}

// Store is a shared cache for snapshots (pkg/redis.Cache)
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// snapshot is the stored form; JSON cannot carry NaN so only finite values are kept
type snapshot struct {
	Values map[string]float64    `json:"values"`
	Meta   *contracts.TickerMeta `json:"meta,omitempty"`
}

func newSnapshot(f contracts.Fundamentals, meta *contracts.TickerMeta) snapshot {
	values := make(map[string]float64, len(f))
	for k, v := range f {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values[k] = v
		}
	}
	return snapshot{Values: values, Meta: meta}
}

func (s snapshot) fundamentals() contracts.Fundamentals {
	f := contracts.EmptyFundamentals()
	for k, v := range s.Values {
		f[k] = v
	}
	return f
}

// Service resolves fundamentals: memo, then store, then fetcher
// ⭐ SSOT: 펀더멘털 조회는 이 서비스에서만
type Service struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	logger  *logger.Logger

	mu   sync.Mutex
	memo map[string]snapshot
}

// New creates a service; store may be nil
func New(fetcher Fetcher, store Store, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &Service{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
		logger:  log,
		memo:    make(map[string]snapshot),
	}
}

// Get returns fundamentals for symbol. A failed download yields all-NaN
// fundamentals, memoized so the symbol is not retried during the session.
func (s *Service) Get(ctx context.Context, symbol string) (contracts.Fundamentals, bool) {
	snap := s.resolve(ctx, symbol)
	return snap.fundamentals(), true
}

// Meta returns the ticker metadata seen with the fundamentals, nil when unknown
func (s *Service) Meta(ctx context.Context, symbol string) *contracts.TickerMeta {
	return s.resolve(ctx, symbol).Meta
}

// Provider adapts the service to the runner's fundamentals hook
func (s *Service) Provider() contracts.FundamentalsProvider {
	return s.Get
}

func (s *Service) resolve(ctx context.Context, symbol string) snapshot {
	symbol = contracts.NormalizeSymbol(symbol)

	s.mu.Lock()
	snap, ok := s.memo[symbol]
	s.mu.Unlock()
	if ok {
		return snap
	}

	key := redis.FundamentalsKey(symbol)
	if s.store != nil {
		var stored snapshot
		found, err := s.store.Get(ctx, key, &stored)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Fundamentals cache read failed")
		}
		if found {
			s.remember(symbol, stored)
			return stored
		}
	}

	f, meta, err := s.fetcher.Fundamentals(ctx, symbol)
	if err != nil {
		snap = snapshot{}
		// an aborted scan says nothing about the symbol; a later scan retries it
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.WithError(err).WithField("symbol", symbol).Debug("Fundamentals fetch aborted")
			return snap
		}
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Fundamentals unavailable")
		s.remember(symbol, snap)
		return snap
	}

	snap = newSnapshot(f, meta)
	s.remember(symbol, snap)

	if s.store != nil {
		if err := s.store.Set(ctx, key, snap, s.ttl); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Fundamentals cache write failed")
		}
	}
	return snap
}

func (s *Service) remember(symbol string, snap snapshot) {
	s.mu.Lock()
	s.memo[symbol] = snap
	s.mu.Unlock()
}
