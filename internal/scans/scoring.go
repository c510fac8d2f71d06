package scans

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
)

// Fundamental score parts, in weight order
const (
	PartQuality  = "quality"
	PartGrowth   = "growth"
	PartValue    = "value"
	PartFinance  = "finance"
	PartDividend = "dividend"
)

// Parts lists the fundamental score parts in weight order
var Parts = []string{PartQuality, PartGrowth, PartValue, PartFinance, PartDividend}

// DefaultProfile is used when no profile or an unknown profile is requested
const DefaultProfile = "balanced"

// Profiles maps a profile name to its part weights
// ⭐ SSOT: 프로필 가중치는 여기서만 정의
var Profiles = map[string]map[string]float64{
	"balanced": {PartQuality: 35, PartGrowth: 25, PartValue: 20, PartFinance: 15, PartDividend: 5},
	"quality":  {PartQuality: 45, PartGrowth: 20, PartValue: 15, PartFinance: 15, PartDividend: 5},
	"growth":   {PartQuality: 25, PartGrowth: 40, PartValue: 15, PartFinance: 15, PartDividend: 5},
	"income":   {PartQuality: 25, PartGrowth: 15, PartValue: 15, PartFinance: 20, PartDividend: 25},
}

// ProfileNames returns the known profile names in sorted order
func ProfileNames() []string {
	names := make([]string, 0, len(Profiles))
	for name := range Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProfileWeights returns the weights for name, falling back to the default profile
func ProfileWeights(name string) (map[string]float64, string) {
	key := strings.ToLower(strings.TrimSpace(name))
	if w, ok := Profiles[key]; ok {
		return w, key
	}
	return Profiles[DefaultProfile], DefaultProfile
}

// scoreLinear maps value onto 0-100 between low and high; NaN when value is not finite
func scoreLinear(value, low, high float64, reverse bool) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return math.NaN()
	}
	if high <= low {
		return 50
	}
	s := indicators.Clip((value-low)/(high-low)*100, 0, 100)
	if reverse {
		return 100 - s
	}
	return s
}

// scoreBand rewards values inside [sweetLow, sweetHigh] and decays toward low and high
func scoreBand(value, low, sweetLow, sweetHigh, high float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return math.NaN()
	}
	switch {
	case value <= low || value >= high:
		return 0
	case value < sweetLow:
		return indicators.Clip((value-low)/(sweetLow-low)*100, 0, 100)
	case value <= sweetHigh:
		return 100
	default:
		return indicators.Clip((high-value)/(high-sweetHigh)*100, 0, 100)
	}
}

// aggregate averages the defined scores; 0 when none are defined
func aggregate(scores ...float64) float64 {
	valid := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsNaN(s) {
			valid = append(valid, s)
		}
	}
	mean, err := stats.Mean(valid)
	if err != nil {
		return 0
	}
	return indicators.Clip(mean, 0, 100)
}

// ScoreQuality rates profitability and margins
func ScoreQuality(f contracts.Fundamentals) float64 {
	return aggregate(
		scoreLinear(f.Get("roe"), 0.10, 0.25, false),
		scoreLinear(f.Get("roa"), 0.05, 0.15, false),
		scoreLinear(f.Get("grossMargin"), 0.25, 0.55, false),
		scoreLinear(f.Get("operatingMargin"), 0.10, 0.30, false),
		scoreLinear(f.Get("ebitdaMargin"), 0.15, 0.35, false),
	)
}

// ScoreGrowth rates revenue and earnings growth
func ScoreGrowth(f contracts.Fundamentals) float64 {
	return aggregate(
		scoreLinear(f.Get("revenueGrowth"), 0, 0.25, false),
		scoreLinear(f.Get("earningsGrowth"), 0, 0.30, false),
	)
}

// ScoreValue rates valuation multiples; cheaper scores higher
func ScoreValue(f contracts.Fundamentals) float64 {
	return aggregate(
		scoreLinear(f.Get("trailingPE"), 10, 40, true),
		scoreLinear(f.Get("forwardPE"), 10, 35, true),
		scoreLinear(f.Get("pb"), 1, 6, true),
		scoreLinear(f.Get("enterpriseToEbitda"), 6, 20, true),
	)
}

// ScoreFinance rates leverage, liquidity and cash coverage of debt
func ScoreFinance(f contracts.Fundamentals) float64 {
	coverage := math.NaN()
	if debt := f.Get("totalDebt"); debt > 0 {
		coverage = scoreLinear(f.Get("totalCash")/debt, 0.25, 1.5, false)
	}
	return aggregate(
		scoreLinear(f.Get("debtToEquity"), 0, 2, true),
		scoreLinear(f.Get("currentRatio"), 1, 3, false),
		coverage,
	)
}

// ScoreDividend rates yield and payout sustainability
func ScoreDividend(f contracts.Fundamentals) float64 {
	return aggregate(
		scoreLinear(f.Get("dividendYield"), 0.005, 0.06, false),
		scoreBand(f.Get("payoutRatio"), 0, 0.3, 0.6, 0.9),
	)
}

// ScoreParts computes every fundamental part
func ScoreParts(f contracts.Fundamentals) map[string]float64 {
	return map[string]float64{
		PartQuality:  ScoreQuality(f),
		PartGrowth:   ScoreGrowth(f),
		PartValue:    ScoreValue(f),
		PartFinance:  ScoreFinance(f),
		PartDividend: ScoreDividend(f),
	}
}

// Composite is the weighted mean of parts; 0 when the weights sum to nothing
func Composite(parts, weights map[string]float64) float64 {
	var total, sum float64
	for _, part := range Parts {
		w := math.Max(weights[part], 0)
		v, ok := parts[part]
		if !ok || math.IsNaN(v) {
			v = 0
		}
		sum += w * indicators.Clip(v, 0, 100)
		total += w
	}
	if total <= 0 {
		return 0
	}
	return indicators.Clip(sum/total, 0, 100)
}

// Timing is a price-based adjustment applied on top of a fundamental score
type Timing struct {
	Modifier float64
	Reason   string
}

// TimingModifier scores the entry setup of series in [-20, 50]
func TimingModifier(series contracts.Series) Timing {
	closes := series.Closes()
	n := len(closes)
	if n < 60 {
		return Timing{0, "Insufficient price history"}
	}

	lastClose := closes[n-1]
	sma50 := indicators.Last(indicators.SMA(closes, 50))
	sma200 := indicators.Last(indicators.SMA(closes, 200))
	lastRSI := indicators.Last(indicators.RSI(closes, 14))

	if math.IsNaN(sma200) {
		return Timing{0, "Insufficient long-term trend data"}
	}
	if lastClose < sma200*0.995 {
		return Timing{-20, "Price below SMA200 regime filter"}
	}

	var t Timing
	setup := false

	volumes := series.Volumes()
	if n >= 40 && hasVolume(volumes) {
		high20 := indicators.Last(indicators.RollingMax(closes, 20))
		volMA := indicators.Last(indicators.SMA(volumes, 20))
		if !math.IsNaN(high20) && !math.IsNaN(volMA) && volMA > 0 &&
			lastClose >= high20*0.999 && volumes[n-1] >= volMA*1.2 {
			t = Timing{35, "Breakout above 20-day high with volume confirmation"}
			setup = true
		}
	}

	if !setup && !math.IsNaN(sma50) && sma50 != 0 &&
		math.Abs(lastClose-sma50)/sma50 <= 0.02 &&
		lastRSI >= 40 && lastRSI <= 55 && lastClose > sma200 {
		t = Timing{20, "Pullback entry near SMA50 with balanced momentum"}
		setup = true
	}

	if !setup {
		switch {
		case math.IsNaN(sma50):
			t = Timing{5, "Above long-term trend"}
		case lastClose > sma50 && lastRSI >= 45 && lastRSI <= 65:
			t = Timing{12, "Trending above SMA50 with supportive momentum"}
		case lastClose > sma200:
			t = Timing{6, "Above long-term trend"}
		default:
			t = Timing{0, "Neutral setup"}
		}
		if lastRSI >= 75 && !math.IsNaN(sma50) && lastClose > sma50*1.08 {
			t = Timing{-10, "Extended and overbought"}
		}
	}

	t.Modifier = indicators.Clip(t.Modifier, -20, 50)
	return t
}

// hasFundamentals reports whether f carries at least one defined metric
func hasFundamentals(f contracts.Fundamentals) bool {
	for _, v := range f {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func hasVolume(volumes []float64) bool {
	for _, v := range volumes {
		if !math.IsNaN(v) && v > 0 {
			return true
		}
	}
	return false
}

// topParts returns the n highest scoring parts as "<Part> score NN" reasons
func topParts(parts map[string]float64, n int) []string {
	keys := make([]string, 0, len(parts))
	for _, k := range Parts {
		if v, ok := parts[k]; ok && !math.IsNaN(v) {
			keys = append(keys, k)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool { return parts[keys[i]] > parts[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s score %.0f", strings.ToUpper(k[:1])+k[1:], parts[k])
	}
	return out
}
