package scans

import (
	"math"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
)

// MomentumBreakout flags 52-week high breakouts confirmed by trend and volume
type MomentumBreakout struct {
	base
}

// NewMomentumBreakout creates the momentum_breakout scenario
func NewMomentumBreakout() contracts.Scenario {
	return &MomentumBreakout{base{
		id:          "momentum_breakout",
		name:        "Momentum Breakout",
		description: "52-week high breakout confirmed by trend filters and volume expansion.",
		defaults: contracts.Params{
			"lookback":          252,
			"volume_multiplier": 1.3,
			"threshold":         65.0,
		},
	}}
}

// Evaluate scores breakout, trend and volume strength
func (s *MomentumBreakout) Evaluate(series contracts.Series, _ contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	params := s.params(p)
	lookback := params.Int("lookback", 252)
	volumeMultiplier := params.Float("volume_multiplier", 1.3)
	threshold := params.Float("threshold", 65)

	closes := series.Closes()
	n := len(closes)
	if n < max(lookback, 220) {
		return nil, nil, nil
	}
	volumes := series.Volumes()

	last50 := indicators.Last(indicators.SMA(closes, 50))
	last200 := indicators.Last(indicators.SMA(closes, 200))
	if math.IsNaN(last50) || math.IsNaN(last200) {
		return nil, nil, nil
	}

	recentHigh := indicators.Last(indicators.RollingMax(series.Highs(), lookback))
	if math.IsNaN(recentHigh) {
		return nil, nil, nil
	}

	volumeMA := indicators.Last(indicators.SMA(volumes, 20))
	if math.IsNaN(volumeMA) || volumeMA == 0 {
		return nil, nil, nil
	}

	lastClose := closes[n-1]
	lastVolume := volumes[n-1]

	trend := last50 > last200*1.01
	nearHigh := lastClose >= recentHigh*0.995
	volumeConfirm := lastVolume >= volumeMA*volumeMultiplier

	breakoutStrength := indicators.Clip((lastClose/recentHigh-1)*400, 0, 20)
	trendStrength := indicators.Clip((last50/last200-1)*500, 0, 25)
	volumeStrength := indicators.Clip((lastVolume/volumeMA-1)*30, 0, 20)
	lastRSI := indicators.Last(indicators.RSI(closes, 14))
	momentumBias := indicators.Clip(lastRSI-50, 0, 15)
	score := indicators.Clip(40+breakoutStrength+trendStrength+volumeStrength+momentumBias, 0, 100)

	m := metrics{}
	m.set("last_close", lastClose)
	m.set("recent_high", recentHigh)
	m.set("volume_ratio", lastVolume/volumeMA)
	m.set("sma50_sma200_ratio", last50/last200)
	m.set("rsi", lastRSI)
	m.set("score", score)

	var why reasons
	if trend {
		why.add("Uptrend confirmed (SMA50 > SMA200)")
	}
	if nearHigh {
		why.add("Price pushing 52-week highs")
	}
	if volumeConfirm {
		why.add("Volume expansion above average")
	}
	if lastRSI >= 60 {
		why.add("Momentum supportive (RSI ≥ 60)")
	}

	var signals []contracts.TradeSignal
	if trend && nearHigh && volumeConfirm {
		signals = append(signals, s.signal(series, contracts.SideBuy, score, threshold, "Breakout with trend and volume confirmation"))
	}

	return result(series, score, threshold, m, why), signals, nil
}
