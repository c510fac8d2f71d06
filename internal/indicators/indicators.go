// Package indicators holds pure technical indicator functions. Every function
// returns a slice of the same length as its input with NaN during warm-up.
package indicators

import (
	"math"

	"github.com/montanaflynn/stats"
)

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// SMA is the simple moving average over window values
func SMA(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		if mean, err := stats.Mean(w); err == nil {
			out[i] = mean
		}
	}
	return out
}

// EMA is the exponential moving average with alpha = 2/(span+1), seeded with
// the first value.
func EMA(values []float64, span int) []float64 {
	if span <= 0 {
		return nanSlice(len(values))
	}
	return ewm(values, 2/(float64(span)+1), 1)
}

// ewm is a recursive exponential mean that skips NaN inputs and reports NaN
// until minPeriods observations have been seen.
func ewm(values []float64, alpha float64, minPeriods int) []float64 {
	out := nanSlice(len(values))
	avg := math.NaN()
	seen := 0
	for i, v := range values {
		if !math.IsNaN(v) {
			if seen == 0 {
				avg = v
			} else {
				avg = alpha*v + (1-alpha)*avg
			}
			seen++
		}
		if seen >= minPeriods && !math.IsNaN(avg) {
			out[i] = avg
		}
	}
	return out
}

// RSI is the Wilder relative strength index in [0, 100]. Warm-up values and
// flat stretches read as the neutral 50.
func RSI(closes []float64, window int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	for i := range out {
		out[i] = 50
	}
	if window <= 0 || n == 0 {
		return out
	}

	gains := nanSlice(n)
	losses := nanSlice(n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if math.IsNaN(delta) {
			continue
		}
		gains[i] = math.Max(delta, 0)
		losses[i] = math.Max(-delta, 0)
	}

	alpha := 1 / float64(window)
	avgGain := ewm(gains, alpha, window)
	avgLoss := ewm(losses, alpha, window)

	const eps = 1e-12
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		gainZero, lossZero := g <= eps, l <= eps
		switch {
		case gainZero && lossZero:
			out[i] = 50
		case lossZero:
			out[i] = 100
		case gainZero:
			out[i] = 0
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// Bands holds a channel around a midline
type Bands struct {
	Mid   []float64
	Upper []float64
	Lower []float64
	// Width is Upper - Lower
	Width []float64
}

// Bollinger computes bands at numStd population standard deviations
func Bollinger(values []float64, window int, numStd float64) Bands {
	n := len(values)
	b := Bands{Mid: SMA(values, window), Upper: nanSlice(n), Lower: nanSlice(n), Width: nanSlice(n)}
	if window <= 0 {
		return b
	}
	for i := window - 1; i < n; i++ {
		if math.IsNaN(b.Mid[i]) {
			continue
		}
		sd, err := stats.StandardDeviationPopulation(values[i-window+1 : i+1])
		if err != nil {
			continue
		}
		b.Upper[i] = b.Mid[i] + numStd*sd
		b.Lower[i] = b.Mid[i] - numStd*sd
		b.Width[i] = b.Upper[i] - b.Lower[i]
	}
	return b
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|); NaN on the first bar
func TrueRange(highs, lows, closes []float64) []float64 {
	out := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		out[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-prev), math.Abs(lows[i]-prev)))
	}
	return out
}

// ATR is the Wilder-smoothed average true range
func ATR(highs, lows, closes []float64, window int) []float64 {
	if window <= 0 {
		return nanSlice(len(closes))
	}
	return ewm(TrueRange(highs, lows, closes), 1/float64(window), window)
}

// Keltner builds channels of multiplier*ATR around an EMA midline
func Keltner(highs, lows, closes []float64, window, atrWindow int, multiplier float64) Bands {
	n := len(closes)
	mid := EMA(closes, window)
	atr := ATR(highs, lows, closes, atrWindow)
	b := Bands{Mid: mid, Upper: nanSlice(n), Lower: nanSlice(n), Width: nanSlice(n)}
	for i := range closes {
		b.Upper[i] = mid[i] + multiplier*atr[i]
		b.Lower[i] = mid[i] - multiplier*atr[i]
		b.Width[i] = b.Upper[i] - b.Lower[i]
	}
	return b
}

// RollingMax is the maximum over the trailing window
func RollingMax(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		if m, err := stats.Max(w); err == nil {
			out[i] = m
		}
	}
	return out
}

// Stochastic returns smoothed %K and %D; undefined values read as 0
func Stochastic(highs, lows, closes []float64, kWindow, dWindow, smoothK int) (k, d []float64) {
	n := len(closes)
	raw := nanSlice(n)
	if kWindow > 0 {
		for i := kWindow - 1; i < n; i++ {
			hh, errH := stats.Max(highs[i-kWindow+1 : i+1])
			ll, errL := stats.Min(lows[i-kWindow+1 : i+1])
			if errH != nil || errL != nil || hh-ll == 0 {
				continue
			}
			raw[i] = (closes[i] - ll) / (hh - ll) * 100
		}
	}
	k = SMA(raw, smoothK)
	d = SMA(k, dWindow)
	for i := range k {
		if math.IsNaN(k[i]) {
			k[i] = 0
		}
		if math.IsNaN(d[i]) {
			d[i] = 0
		}
	}
	return k, d
}

// Percentile returns the pct (0-100) percentile of the non-NaN values, NaN when empty
func Percentile(values []float64, pct float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	if pct <= 0 {
		m, _ := stats.Min(clean)
		return m
	}
	if pct >= 100 {
		m, _ := stats.Max(clean)
		return m
	}
	p, err := stats.Percentile(clean, pct)
	if err != nil {
		m, _ := stats.Min(clean)
		return m
	}
	return p
}

// Last returns the final element, NaN when empty
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// Min returns the smallest non-NaN element, NaN when none
func Min(values []float64) float64 {
	m := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v < m {
			m = v
		}
	}
	return m
}

// Clip bounds v to [lo, hi]
func Clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
