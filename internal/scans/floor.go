package scans

import (
	"math"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
)

const (
	floorRangeWindow      = 30
	floorBreakoutBuffer   = 0.005
	floorMaxRangePct      = 0.12
	floorVolumeMultiplier = 1.25
)

// floorSnapshot is the shared tight-base reading of a series
type floorSnapshot struct {
	lastClose     float64
	rangePct      float64
	higherLows    bool
	breakout      bool
	volumeConfirm bool
	volumeRatio   float64
	lastRSI       float64
}

func readFloor(series contracts.Series) (floorSnapshot, bool) {
	closes := series.Closes()
	n := len(closes)
	volumes := series.Volumes()
	if n < max(floorRangeWindow+5, 40) || !hasVolume(volumes) {
		return floorSnapshot{}, false
	}

	highs := series.Highs()
	lows := series.Lows()
	lastHigh := indicators.Last(indicators.RollingMax(highs, floorRangeWindow))
	lastLow := indicators.Min(lows[n-floorRangeWindow:])
	lastClose := closes[n-1]
	if math.IsNaN(lastHigh) || math.IsNaN(lastLow) {
		return floorSnapshot{}, false
	}

	snap := floorSnapshot{
		lastClose: lastClose,
		rangePct:  math.NaN(),
		lastRSI:   indicators.Last(indicators.RSI(closes, 14)),
	}
	if lastClose != 0 {
		snap.rangePct = (lastHigh - lastLow) / lastClose
	}
	snap.higherLows = lows[n-3] <= lows[n-2] && lows[n-2] <= lows[n-1]
	snap.breakout = lastClose >= lastHigh*(1-floorBreakoutBuffer)

	volMA := indicators.Last(indicators.SMA(volumes, 20))
	snap.volumeRatio = math.NaN()
	if volMA > 0 {
		snap.volumeRatio = volumes[n-1] / volMA
		snap.volumeConfirm = volumes[n-1] >= volMA*floorVolumeMultiplier
	}
	return snap, true
}

// FloorConsolidation flags tight bases with rising lows breaking out on volume.
// The quality variant also requires fundamental quality and finance floors.
type FloorConsolidation struct {
	base
	quality bool
}

// NewFloorConsolidationUniversal creates the floor_consolidation_universal scenario
func NewFloorConsolidationUniversal() contracts.Scenario {
	return &FloorConsolidation{base: base{
		id:          "floor_consolidation_universal",
		name:        "Floor Consolidation (Universal)",
		description: "Tight base with rising lows and breakout on volume.",
		defaults:    contracts.Params{"threshold": 55.0},
	}}
}

// NewFloorConsolidationQuality creates the floor_consolidation_quality scenario
func NewFloorConsolidationQuality() contracts.Scenario {
	return &FloorConsolidation{
		base: base{
			id:          "floor_consolidation_quality",
			name:        "Floor Consolidation (Quality)",
			description: "Floor consolidation with additional fundamental quality filter.",
			defaults: contracts.Params{
				"threshold":     60.0,
				"quality_floor": 60.0,
				"finance_floor": 55.0,
			},
		},
		quality: true,
	}
}

// Evaluate scores the base and, for the quality variant, gates on fundamentals
func (s *FloorConsolidation) Evaluate(series contracts.Series, fundamentals contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	params := s.params(p)
	threshold := params.Float("threshold", 55)

	snap, ok := readFloor(series)
	if !ok {
		return nil, nil, nil
	}

	var qualityScore, financeScore float64
	if s.quality {
		if !hasFundamentals(fundamentals) {
			return nil, nil, nil
		}
		qualityScore = ScoreQuality(fundamentals)
		financeScore = ScoreFinance(fundamentals)
		if qualityScore < params.Float("quality_floor", 60) || financeScore < params.Float("finance_floor", 55) {
			return nil, nil, nil
		}
	}

	tight := snap.rangePct <= floorMaxRangePct
	score := 25.0
	var why reasons
	if s.quality {
		why.add("Quality fundamentals confirmed")
	}
	if tight {
		score += 20
		why.add("Range contracted near lows")
	}
	if snap.higherLows {
		score += 15
		why.add("Higher lows across the base")
	}
	if snap.breakout {
		score += 20
		why.add("Breakout above base resistance")
	}
	if snap.volumeConfirm {
		score += 10
		why.add("Volume expansion on breakout")
	}
	score = indicators.Clip(score, 0, 100)

	m := metrics{}
	m.set("range_pct", snap.rangePct)
	m.set("volume_ratio", snap.volumeRatio)
	m.set("last_rsi", snap.lastRSI)
	m.set("score", score)

	var signals []contracts.TradeSignal
	if snap.breakout && snap.volumeConfirm {
		signals = append(signals, s.signal(series, contracts.SideBuy, score, threshold, "Floor breakout with volume"))
	}

	res := result(series, score, threshold, m, why)
	if s.quality {
		if res == nil {
			return nil, nil, nil
		}
		res.Metrics["quality_score"] = qualityScore
		res.Metrics["finance_score"] = financeScore
	}
	return res, signals, nil
}
