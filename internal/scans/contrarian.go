package scans

import (
	"fmt"
	"math"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
)

// ClassicOversold flags RSI capitulation followed by a bounce
type ClassicOversold struct {
	base
}

// NewClassicOversold creates the classic_oversold scenario
func NewClassicOversold() contracts.Scenario {
	return &ClassicOversold{base{
		id:          "classic_oversold",
		name:        "Classic Oversold",
		description: "RSI capitulation followed by a bounce above the lower Bollinger Band.",
		defaults: contracts.Params{
			"rsi_threshold": 30.0,
			"threshold":     50.0,
		},
	}}
}

// Evaluate scores RSI depth and the reversal candle
func (s *ClassicOversold) Evaluate(series contracts.Series, _ contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	params := s.params(p)
	rsiThreshold := params.Float("rsi_threshold", 30)
	threshold := params.Float("threshold", 50)

	closes := series.Closes()
	n := len(closes)
	if n < 40 {
		return nil, nil, nil
	}

	rsi := indicators.RSI(closes, 14)
	bands := indicators.Bollinger(closes, 20, 2)
	lastClose := closes[n-1]
	prevClose := closes[n-2]
	lastRSI := rsi[n-1]
	recentMinRSI := indicators.Min(rsi[n-3:])
	lastLower := bands.Lower[n-1]

	oversoldRecent := recentMinRSI <= rsiThreshold
	reversal := lastClose > prevClose && lastClose > lastLower

	rsiScore := indicators.Clip((rsiThreshold-math.Min(lastRSI, recentMinRSI))/math.Max(rsiThreshold, 1e-3), 0, 1.5)
	bounceScore := boolMetric(reversal)
	score := indicators.Clip(20+rsiScore*40+bounceScore*30, 0, 100)

	var why reasons
	if oversoldRecent {
		if lastRSI <= rsiThreshold {
			why.add(fmt.Sprintf("RSI oversold (%.1f)", lastRSI))
		} else {
			why.add(fmt.Sprintf("RSI rebounded from %.1f", recentMinRSI))
		}
	}
	if reversal {
		why.add("Reversal candle above lower Bollinger Band")
	}

	var signals []contracts.TradeSignal
	if oversoldRecent && reversal {
		signals = append(signals, s.signal(series, contracts.SideBuy, score, threshold, "Oversold reversal setup"))
	}

	m := metrics{}
	m.set("last_close", lastClose)
	m.set("lower_band", lastLower)
	m.set("last_rsi", lastRSI)
	m.set("recent_min_rsi", recentMinRSI)
	m.set("score", score)

	return result(series, score, threshold, m, why), signals, nil
}

// MeanReversionBollinger flags a lower-band flush that is reclaimed
type MeanReversionBollinger struct {
	base
}

// NewMeanReversionBollinger creates the mean_reversion_bb scenario
func NewMeanReversionBollinger() contracts.Scenario {
	return &MeanReversionBollinger{base{
		id:          "mean_reversion_bb",
		name:        "Mean Reversion (Bollinger)",
		description: "Price pierces the lower Bollinger Band and reclaims it on a bounce.",
		defaults: contracts.Params{
			"threshold":   48.0,
			"band_window": 20,
		},
	}}
}

// Evaluate scores the band tag and reclaim
func (s *MeanReversionBollinger) Evaluate(series contracts.Series, _ contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	params := s.params(p)
	threshold := params.Float("threshold", 48)
	window := params.Int("band_window", 20)
	if window <= 0 {
		return nil, nil, fmt.Errorf("band_window must be positive, got %d", window)
	}

	closes := series.Closes()
	n := len(closes)
	if n < window+5 {
		return nil, nil, nil
	}

	lower := indicators.Bollinger(closes, window, 2).Lower[n-1]
	lastClose := closes[n-1]
	prevClose := closes[n-2]
	lastLow := series.Last().Low

	tagged := lastLow < lower
	reclaim := lastClose > lower && prevClose < lower

	score := 20.0
	if tagged {
		score += 25
	}
	if reclaim {
		score += 35
	}
	score = indicators.Clip(score, 0, 100)

	var why reasons
	if tagged {
		why.add("Price flushed below lower band")
	}
	if reclaim {
		why.add("Close reclaimed lower band")
	}

	var signals []contracts.TradeSignal
	if tagged && reclaim {
		signals = append(signals, s.signal(series, contracts.SideBuy, score, threshold, "Bollinger mean reversion trigger"))
	}

	m := metrics{}
	m.set("last_close", lastClose)
	m.set("lower_band", lower)
	m.set("tagged_band", boolMetric(tagged))
	m.set("reclaim", boolMetric(reclaim))
	m.set("score", score)

	return result(series, score, threshold, m, why), signals, nil
}

// StochasticOversold flags a %K over %D cross in the oversold zone
type StochasticOversold struct {
	base
}

// NewStochasticOversold creates the stochastic_oversold scenario
func NewStochasticOversold() contracts.Scenario {
	return &StochasticOversold{base{
		id:          "stochastic_oversold",
		name:        "Stochastic Oversold",
		description: "%K crossing above %D in the oversold zone (<20).",
		defaults:    contracts.Params{"threshold": 45.0},
	}}
}

// Evaluate scores the oversold zone and the bullish cross
func (s *StochasticOversold) Evaluate(series contracts.Series, _ contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	params := s.params(p)
	threshold := params.Float("threshold", 45)

	closes := series.Closes()
	n := len(closes)
	if n < 20 {
		return nil, nil, nil
	}

	k, d := indicators.Stochastic(series.Highs(), series.Lows(), closes, 14, 3, 3)
	lastK, lastD := k[n-1], d[n-1]
	prevK, prevD := k[n-2], d[n-2]

	oversold := math.Max(lastK, lastD) < 20
	bullishCross := prevK < prevD && lastK > lastD

	score := 15.0
	if oversold {
		score += 35
	}
	if bullishCross {
		score += 35
	}
	score = indicators.Clip(score, 0, 100)

	var why reasons
	if oversold {
		why.add("Stochastic deeply oversold")
	}
	if bullishCross {
		why.add("%K bullish cross over %D")
	}

	var signals []contracts.TradeSignal
	if oversold && bullishCross {
		signals = append(signals, s.signal(series, contracts.SideBuy, score, threshold, "Stochastic oversold reversal"))
	}

	m := metrics{}
	m.set("%K", lastK)
	m.set("%D", lastD)
	m.set("score", score)

	return result(series, score, threshold, m, why), signals, nil
}
