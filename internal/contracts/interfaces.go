package contracts

import (
	"context"
	"time"
)

// DataSource downloads price history
// ⭐ SSOT: 외부 시세 조회 인터페이스
type DataSource interface {
	// FetchSingle returns an empty series with nil error when no data exists.
	FetchSingle(ctx context.Context, symbol, period string) (Series, error)
	// FetchBatch returns only symbols that produced data; failures are absorbed.
	FetchBatch(ctx context.Context, symbols []string, period string) map[string]Series
}

// PriceCache stores series per (symbol, period)
// ⭐ SSOT: 가격 캐시 인터페이스
type PriceCache interface {
	Get(symbol, period string) (Series, bool)
	Set(symbol, period string, series Series)
	IsStale(symbol, period string, ttl ...time.Duration) bool
}

// Scenario evaluates one symbol's history
// ⭐ SSOT: 스캔 시나리오 인터페이스
type Scenario interface {
	ID() string
	Name() string
	Description() string
	DefaultParams() Params
	// Evaluate returns a nil result and no signals when the symbol does not match.
	Evaluate(series Series, fundamentals Fundamentals, params Params) (*ScanResult, []TradeSignal, error)
}

// FundamentalsProvider returns fundamentals for a symbol, false when unavailable
type FundamentalsProvider func(ctx context.Context, symbol string) (Fundamentals, bool)

// ResultFunc receives each matching result with its signals
type ResultFunc func(result *ScanResult, signals []TradeSignal)

// ProgressFunc receives progress snapshots
type ProgressFunc func(progress ScanProgress)
