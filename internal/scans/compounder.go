package scans

import (
	"math"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/indicators"
)

// Compounder blends a weighted fundamental profile with a price timing modifier
type Compounder struct {
	base
}

// NewCompounder creates the lti_compounder scenario
func NewCompounder() contracts.Scenario {
	return &Compounder{base{
		id:          "lti_compounder",
		name:        "Long-Term Compounder",
		description: "Weighted fundamental profile with a trend and entry timing overlay.",
		defaults: contracts.Params{
			"profile":   DefaultProfile,
			"threshold": 60.0,
		},
	}}
}

// Evaluate scores fundamentals under the requested profile, then adjusts for timing.
// Without a defined fundamental metric there is nothing to score.
func (s *Compounder) Evaluate(series contracts.Series, fundamentals contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	if !hasFundamentals(fundamentals) || series.Len() == 0 {
		return nil, nil, nil
	}
	params := s.params(p)
	weights, _ := ProfileWeights(params.String("profile", DefaultProfile))
	threshold := params.Float("threshold", 60)

	parts := ScoreParts(fundamentals)
	baseScore := Composite(parts, weights)
	timing := TimingModifier(series)
	final := indicators.Clip(baseScore+timing.Modifier, 0, 100)

	closes := series.Closes()
	n := len(closes)
	lastClose := closes[n-1]
	sma50 := indicators.Last(indicators.SMA(closes, 50))
	sma200 := indicators.Last(indicators.SMA(closes, 200))
	lastRSI := indicators.Last(indicators.RSI(closes, 14))

	m := metrics{}
	m.set("base_score", baseScore)
	m.set("timing_modifier", timing.Modifier)
	m.set("final_score", final)
	m.set("last_close", lastClose)
	m.set("last_sma50", sma50)
	m.set("last_sma200", sma200)
	m.set("last_rsi", lastRSI)
	for _, part := range Parts {
		m.set("score_"+part, parts[part])
	}

	var why reasons
	for _, r := range topParts(parts, 2) {
		why.add(r)
	}
	why.add(timing.Reason)

	var signals []contracts.TradeSignal
	if final >= threshold && timing.Modifier >= 0 && (math.IsNaN(sma200) || lastClose >= sma200*0.99) {
		signals = append(signals, s.signal(series, contracts.SideBuy, final, threshold, "Compounder profile aligned with timing"))
	}

	prevClose := math.NaN()
	if n >= 2 {
		prevClose = closes[n-2]
	}
	deteriorating := (!math.IsNaN(sma200) && lastClose < sma200*0.98) ||
		(lastRSI >= 75 && !math.IsNaN(prevClose) && lastClose < prevClose)
	if deteriorating {
		sell := s.signal(series, contracts.SideSell, final, threshold, "Trend deterioration for compounder")
		sell.Confidence = math.Max(sell.Confidence, 0.4)
		signals = append(signals, sell)
	}

	return result(series, final, threshold, m, why), signals, nil
}
