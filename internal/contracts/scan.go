package contracts

import (
	"math"
	"time"
)

// Side is the direction of an advisory trade signal
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Fundamentals maps a metric name to its value; missing metrics are NaN
type Fundamentals map[string]float64

// FundamentalKeys is the curated set of metrics scenarios may read
var FundamentalKeys = []string{
	"roe", "roa", "grossMargin", "operatingMargin", "ebitdaMargin",
	"revenueGrowth", "earningsGrowth", "trailingPE", "forwardPE", "pb",
	"enterpriseToEbitda", "debtToEquity", "totalDebt", "totalCash", "currentRatio",
	"dividendYield", "payoutRatio", "beta", "marketCap", "averageVolume",
}

// EmptyFundamentals returns every curated key set to NaN
func EmptyFundamentals() Fundamentals {
	f := make(Fundamentals, len(FundamentalKeys))
	for _, k := range FundamentalKeys {
		f[k] = math.NaN()
	}
	return f
}

// Get returns the value for key, NaN when missing
func (f Fundamentals) Get(key string) float64 {
	if v, ok := f[key]; ok {
		return v
	}
	return math.NaN()
}

// TickerMeta describes the instrument behind a symbol
type TickerMeta struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name,omitempty"`
	Exchange  string  `json:"exchange,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	MarketCap float64 `json:"market_cap,omitempty"`
}

// ScanResult is a symbol that matched a scenario
type ScanResult struct {
	Symbol    string             `json:"symbol"`
	Score     float64            `json:"score"`
	Metrics   map[string]float64 `json:"metrics"`
	Reasons   []string           `json:"reasons"`
	LastPrice float64            `json:"last_price"`
	AsOf      time.Time          `json:"as_of"`
	Meta      *TickerMeta        `json:"meta,omitempty"`
}

// TradeSignal is an advisory signal; never an order
type TradeSignal struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Side       Side      `json:"side"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	ScenarioID string    `json:"scenario_id"`
}

// ScanRequest describes one scan. Scenario takes precedence over Strategy.
type ScanRequest struct {
	Strategy string
	Scenario Scenario
	Symbols  []string
	Params   Params
	Period   string
}

// ScanProgress is a point-in-time snapshot of a running scan
type ScanProgress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Remaining returns the number of symbols not yet processed
func (p ScanProgress) Remaining() int {
	if r := p.Total - p.Processed; r > 0 {
		return r
	}
	return 0
}

// ScanSummary is produced exactly once per scan
type ScanSummary struct {
	Total       int           `json:"total"`
	Processed   int           `json:"processed"`
	Skipped     int           `json:"skipped"`
	Errors      int           `json:"errors"`
	CacheHits   int           `json:"cache_hits"`
	CacheMisses int           `json:"cache_misses"`
	Duration    time.Duration `json:"duration"`
	Cancelled   bool          `json:"cancelled"`
}

// Matched returns the number of processed symbols that produced a result
func (s ScanSummary) Matched() int {
	if m := s.Processed - s.Skipped - s.Errors; m > 0 {
		return m
	}
	return 0
}
