package scans

import (
	"fmt"
	"math"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
)

// VolumeBreakout flags prices near their lookback high backed by a volume surge
type VolumeBreakout struct {
	base
}

// NewVolumeBreakout creates the volume_confirmed_breakout scenario
func NewVolumeBreakout() contracts.Scenario {
	return &VolumeBreakout{base{
		id:          "volume_confirmed_breakout",
		name:        "Volume Confirmed Breakout",
		description: "Near-high setup backed by strong volume acceleration.",
		defaults: contracts.Params{
			"lookback":          252,
			"proximity":         0.02,
			"volume_multiplier": 1.5,
			"threshold":         55.0,
		},
	}}
}

// Evaluate scores proximity to the lookback high and relative volume
func (s *VolumeBreakout) Evaluate(series contracts.Series, _ contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	params := s.params(p)
	lookback := params.Int("lookback", 252)
	proximity := params.Float("proximity", 0.02)
	volumeMultiplier := params.Float("volume_multiplier", 1.5)
	threshold := params.Float("threshold", 55)

	closes := series.Closes()
	n := len(closes)
	volumes := series.Volumes()
	if lookback <= 0 || n < lookback || !hasVolume(volumes) || proximity <= 0 || volumeMultiplier <= 0 {
		return nil, nil, nil
	}

	recentHigh := indicators.Last(indicators.RollingMax(series.Highs(), lookback))
	if math.IsNaN(recentHigh) || recentHigh == 0 {
		return nil, nil, nil
	}
	volumeMA := indicators.Last(indicators.SMA(volumes, 20))
	if math.IsNaN(volumeMA) || volumeMA == 0 {
		return nil, nil, nil
	}

	lastClose := closes[n-1]
	distance := (recentHigh - lastClose) / recentHigh
	volumeRatio := volumes[n-1] / volumeMA

	proximityScore := indicators.Clip((proximity-math.Max(distance, 0))/proximity, 0, 1)
	volumeScore := indicators.Clip(volumeRatio/volumeMultiplier, 0, 2)
	score := indicators.Clip(30+proximityScore*40+volumeScore*30, 0, 100)

	nearHigh := distance <= proximity
	surge := volumeRatio >= volumeMultiplier

	var why reasons
	if nearHigh {
		why.add(fmt.Sprintf("Price within %.1f%% of 52-week high", proximity*100))
	}
	if surge {
		why.add("Volume surge vs. 20-day average")
	}

	var signals []contracts.TradeSignal
	if nearHigh && surge {
		signals = append(signals, s.signal(series, contracts.SideBuy, score, threshold, "Volume-backed breakout continuation"))
	}

	m := metrics{}
	m.set("last_close", lastClose)
	m.set("recent_high", recentHigh)
	m.set("distance_to_high", distance)
	m.set("volume_ratio", volumeRatio)
	m.set("score", score)

	return result(series, score, threshold, m, why), signals, nil
}
