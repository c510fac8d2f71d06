package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)

	require.Len(t, got, 5)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-9)
	assert.InDelta(t, 4.0, got[4], 1e-9)
}

func TestEMA(t *testing.T) {
	got := EMA([]float64{10, 20, 30}, 3)

	// alpha = 0.5
	assert.InDelta(t, 10.0, got[0], 1e-9)
	assert.InDelta(t, 15.0, got[1], 1e-9)
	assert.InDelta(t, 22.5, got[2], 1e-9)
}

func TestRSIEdges(t *testing.T) {
	up := RSI(ramp(30, 10, 1), 14)
	assert.Equal(t, 50.0, up[5], "warm-up reads neutral")
	assert.Equal(t, 100.0, up[29])

	down := RSI(ramp(30, 100, -1), 14)
	assert.Equal(t, 0.0, down[29])

	flat := RSI(ramp(30, 10, 0), 14)
	assert.Equal(t, 50.0, flat[29])
}

func TestRSIRange(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/5)
	}
	for _, v := range RSI(closes, 14) {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestBollinger(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	b := Bollinger(values, 8, 2)

	// population std of the series is 2
	assert.InDelta(t, 5.0, b.Mid[7], 1e-9)
	assert.InDelta(t, 9.0, b.Upper[7], 1e-9)
	assert.InDelta(t, 1.0, b.Lower[7], 1e-9)
	assert.InDelta(t, 8.0, b.Width[7], 1e-9)
	assert.True(t, math.IsNaN(b.Upper[6]))
}

func TestATR(t *testing.T) {
	highs := []float64{11, 12, 13, 14}
	lows := []float64{9, 10, 11, 12}
	closes := []float64{10, 11, 12, 13}

	tr := TrueRange(highs, lows, closes)
	assert.True(t, math.IsNaN(tr[0]))
	assert.InDelta(t, 2.0, tr[1], 1e-9)

	atr := ATR(highs, lows, closes, 2)
	assert.True(t, math.IsNaN(atr[1]))
	assert.InDelta(t, 2.0, atr[2], 1e-9)
}

func TestKeltner(t *testing.T) {
	n := 40
	closes := ramp(n, 100, 0)
	highs := ramp(n, 101, 0)
	lows := ramp(n, 99, 0)

	k := Keltner(highs, lows, closes, 20, 10, 1.5)
	assert.InDelta(t, 100.0, k.Mid[n-1], 1e-9)
	assert.InDelta(t, 103.0, k.Upper[n-1], 1e-9)
	assert.InDelta(t, 97.0, k.Lower[n-1], 1e-9)
}

func TestRollingMax(t *testing.T) {
	got := RollingMax([]float64{1, 5, 2, 3, 1}, 3)
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, 5.0, got[2])
	assert.Equal(t, 5.0, got[3])
	assert.Equal(t, 3.0, got[4])
}

func TestStochastic(t *testing.T) {
	n := 30
	highs := ramp(n, 11, 1)
	lows := ramp(n, 9, 1)
	closes := ramp(n, 10, 1)

	k, d := Stochastic(highs, lows, closes, 14, 3, 3)
	require.Len(t, k, n)
	assert.Equal(t, 0.0, k[0])
	assert.Greater(t, k[n-1], 50.0)
	assert.Greater(t, d[n-1], 50.0)
}

func TestPercentileAndHelpers(t *testing.T) {
	values := []float64{math.NaN(), 4, 1, 3, 2}
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 4.0, Percentile(values, 100))
	assert.True(t, math.IsNaN(Percentile([]float64{math.NaN()}, 50)))
	p := Percentile(values, 25)
	assert.GreaterOrEqual(t, p, 1.0)
	assert.LessOrEqual(t, p, 2.0)

	assert.Equal(t, 1.0, Min(values))
	assert.Equal(t, 2.0, Last(values))
	assert.True(t, math.IsNaN(Last(nil)))
	assert.Equal(t, 1.0, Clip(3, 0, 1))
	assert.Equal(t, 0.0, Clip(-3, 0, 1))
}
