// Package scans holds the scan scenarios and the registry that resolves them by id.
package scans

import (
	"math"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
)

const maxReasons = 3

// base carries the identity shared by every scenario
type base struct {
	id          string
	name        string
	description string
	defaults    contracts.Params
}

func (b base) ID() string          { return b.id }
func (b base) Name() string        { return b.name }
func (b base) Description() string { return b.description }

// DefaultParams returns a copy of the scenario defaults
func (b base) DefaultParams() contracts.Params {
	return contracts.Merge(b.defaults, nil)
}

func (b base) params(overrides contracts.Params) contracts.Params {
	return contracts.Merge(b.defaults, overrides)
}

// reasons is an ordered, de-duplicated list of human-readable reasons
type reasons []string

func (r *reasons) add(text string) {
	if text == "" {
		return
	}
	for _, existing := range *r {
		if existing == text {
			return
		}
	}
	*r = append(*r, text)
}

func (r reasons) top() []string {
	n := len(r)
	if n > maxReasons {
		n = maxReasons
	}
	out := make([]string, n)
	copy(out, r[:n])
	return out
}

// metrics drops non-finite values so results stay JSON-safe
type metrics map[string]float64

func (m metrics) set(key string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	m[key] = value
}

func boolMetric(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func confidence(score, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	return indicators.Clip(score/math.Max(threshold, 1e-6), 0, 1)
}

func (b base) signal(series contracts.Series, side contracts.Side, score, threshold float64, reason string) contracts.TradeSignal {
	return contracts.TradeSignal{
		Symbol:     series.Symbol,
		Timestamp:  series.Last().Time,
		Side:       side,
		Confidence: confidence(score, threshold),
		Reason:     reason,
		ScenarioID: b.id,
	}
}

// result returns nil when score is below threshold
func result(series contracts.Series, score, threshold float64, m metrics, r reasons) *contracts.ScanResult {
	if score < threshold {
		return nil
	}
	last := series.Last()
	return &contracts.ScanResult{
		Symbol:    series.Symbol,
		Score:     score,
		Metrics:   m,
		Reasons:   r.top(),
		LastPrice: last.Close,
		AsOf:      last.Time,
	}
}
