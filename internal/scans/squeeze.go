package scans

import (
	"math"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
)

// VolatilitySqueeze flags Bollinger compression inside Keltner channels and the break out of it
type VolatilitySqueeze struct {
	base
}

// NewVolatilitySqueeze creates the volatility_squeeze scenario
func NewVolatilitySqueeze() contracts.Scenario {
	return &VolatilitySqueeze{base{
		id:          "volatility_squeeze",
		name:        "Volatility Squeeze",
		description: "Compression of Bollinger width within Keltner channels followed by a break.",
		defaults: contracts.Params{
			"threshold":         60.0,
			"lookback":          120,
			"width_percentile":  0.25,
			"volume_multiplier": 1.2,
		},
	}}
}

// Evaluate scores the squeeze, the break and volume
func (s *VolatilitySqueeze) Evaluate(series contracts.Series, _ contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	params := s.params(p)
	threshold := params.Float("threshold", 60)
	lookback := params.Int("lookback", 120)
	widthPercentile := params.Float("width_percentile", 0.25)
	volumeMultiplier := params.Float("volume_multiplier", 1.2)

	closes := series.Closes()
	n := len(closes)
	if n < max(lookback, 40) || lookback <= 0 {
		return nil, nil, nil
	}
	highs, lows, volumes := series.Highs(), series.Lows(), series.Volumes()

	bb := indicators.Bollinger(closes, 20, 2)
	kc := indicators.Keltner(highs, lows, closes, 20, 10, 1.5)

	widthFloor := indicators.Percentile(bb.Width[n-lookback:], widthPercentile*100)
	if math.IsNaN(widthFloor) {
		return nil, nil, nil
	}

	lastClose := closes[n-1]
	lastUpper, lastLower, lastWidth := bb.Upper[n-1], bb.Lower[n-1], bb.Width[n-1]
	kcUpper, kcLower := kc.Upper[n-1], kc.Lower[n-1]

	squeeze := lastWidth <= widthFloor && lastUpper <= kcUpper && lastLower >= kcLower

	volumeMA := indicators.Last(indicators.SMA(volumes, 20))
	lastVolume := volumes[n-1]
	volumeConfirm := volumeMA > 0 && lastVolume >= volumeMA*volumeMultiplier

	breakoutUp := lastClose > math.Max(lastUpper, kcUpper)
	breakoutDown := lastClose < math.Min(lastLower, kcLower)

	score := 35.0
	if squeeze {
		score += 25
	}
	if breakoutUp || breakoutDown {
		score += 20
	}
	if volumeConfirm {
		score += 15
	}
	score = indicators.Clip(score, 0, 100)

	var why reasons
	if squeeze {
		why.add("Bollinger width compressed inside Keltner channels")
	}
	if breakoutUp {
		why.add("Breakout above squeeze range")
	}
	if breakoutDown {
		why.add("Breakdown below squeeze range")
	}
	if volumeConfirm {
		why.add("Volume expansion on break")
	}

	m := metrics{}
	m.set("last_width", lastWidth)
	m.set("width_floor", widthFloor)
	m.set("breakout_up", boolMetric(breakoutUp))
	m.set("breakout_down", boolMetric(breakoutDown))
	if volumeMA > 0 {
		m.set("volume_ratio", lastVolume/volumeMA)
	}
	m.set("score", score)

	var signals []contracts.TradeSignal
	if breakoutUp && volumeConfirm {
		signals = append(signals, s.signal(series, contracts.SideBuy, score, threshold, "Squeeze breakout to the upside"))
	}
	if breakoutDown && volumeConfirm {
		signals = append(signals, s.signal(series, contracts.SideSell, score, threshold, "Squeeze breakdown to the downside"))
	}

	return result(series, score, threshold, m, why), signals, nil
}
