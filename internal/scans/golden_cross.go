package scans

import (
	"math"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
)

// GoldenCross flags SMA50 crossing SMA200
type GoldenCross struct {
	base
}

// NewGoldenCross creates the golden_cross scenario
func NewGoldenCross() contracts.Scenario {
	return &GoldenCross{base{
		id:          "golden_cross",
		name:        "Golden Cross",
		description: "SMA50 crossing above SMA200 (buy) and below (sell).",
		defaults:    contracts.Params{"threshold": 45.0},
	}}
}

// Evaluate scores the cross and trend slope
func (s *GoldenCross) Evaluate(series contracts.Series, _ contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	params := s.params(p)
	threshold := params.Float("threshold", 45)

	closes := series.Closes()
	n := len(closes)
	if n < 210 {
		return nil, nil, nil
	}

	sma50 := indicators.SMA(closes, 50)
	sma200 := indicators.SMA(closes, 200)
	last50, last200 := sma50[n-1], sma200[n-1]
	prev50, prev200 := sma50[n-2], sma200[n-2]
	if math.IsNaN(last200) || math.IsNaN(prev200) {
		return nil, nil, nil
	}

	golden := prev50 <= prev200 && last50 > last200
	death := prev50 >= prev200 && last50 < last200
	lastRSI := indicators.Last(indicators.RSI(closes, 14))

	score := 25.0
	if golden {
		score += 25
	}
	if death {
		score += 15
	}
	score += indicators.Clip((last50/last200-1)*100, -20, 20)
	score += indicators.Clip((lastRSI-50)/50*15, -15, 15)
	score = indicators.Clip(score, 0, 100)

	var why reasons
	if golden {
		why.add("SMA50 crossed above SMA200")
	}
	if death {
		why.add("SMA50 crossed below SMA200")
	}
	if lastRSI >= 55 {
		why.add("Momentum supportive (RSI ≥ 55)")
	}
	if lastRSI <= 45 {
		why.add("Momentum weakening (RSI ≤ 45)")
	}

	m := metrics{}
	m.set("sma50", last50)
	m.set("sma200", last200)
	m.set("last_rsi", lastRSI)
	m.set("golden_cross", boolMetric(golden))
	m.set("death_cross", boolMetric(death))
	m.set("score", score)

	var signals []contracts.TradeSignal
	if golden {
		signals = append(signals, s.signal(series, contracts.SideBuy, score, threshold, "Golden cross triggered"))
	}
	if death {
		signals = append(signals, s.signal(series, contracts.SideSell, score, threshold, "Death cross triggered"))
	}

	return result(series, score, threshold, m, why), signals, nil
}
