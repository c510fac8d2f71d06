package contracts

import (
	"math"
	"sort"
	"time"
)

// Bar is one daily OHLCV observation
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid reports whether all four prices are present
func (b Bar) Valid() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return !b.Time.IsZero()
}

// Series is a time-ordered price history for one symbol.
// ⭐ SSOT: 가격 시계열은 이 타입으로만 전달
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Empty reports whether the series has no bars
func (s Series) Empty() bool {
	return len(s.Bars) == 0
}

// Len returns the number of bars
func (s Series) Len() int {
	return len(s.Bars)
}

// Clone returns a deep copy
func (s Series) Clone() Series {
	bars := make([]Bar, len(s.Bars))
	copy(bars, s.Bars)
	return Series{Symbol: s.Symbol, Bars: bars}
}

// WithSymbol returns a copy tagged with symbol
func (s Series) WithSymbol(symbol string) Series {
	out := s.Clone()
	out.Symbol = symbol
	return out
}

// Clean returns a copy without bars missing any OHLC value, sorted by time with
// duplicate timestamps collapsed to the last occurrence.
func (s Series) Clean() Series {
	bars := make([]Bar, 0, len(s.Bars))
	for _, b := range s.Bars {
		if !b.Valid() {
			continue
		}
		if math.IsNaN(b.Volume) || b.Volume < 0 {
			b.Volume = 0
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}

	return Series{Symbol: s.Symbol, Bars: out}
}

// Last returns the most recent bar; the series must not be empty
func (s Series) Last() Bar {
	return s.Bars[len(s.Bars)-1]
}

// Tail returns a copy of the last n bars
func (s Series) Tail(n int) Series {
	if n >= len(s.Bars) {
		return s.Clone()
	}
	if n < 0 {
		n = 0
	}
	bars := make([]Bar, n)
	copy(bars, s.Bars[len(s.Bars)-n:])
	return Series{Symbol: s.Symbol, Bars: bars}
}

// Closes returns the close column
func (s Series) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

// Opens returns the open column
func (s Series) Opens() []float64 {
	return s.column(func(b Bar) float64 { return b.Open })
}

// Highs returns the high column
func (s Series) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

// Lows returns the low column
func (s Series) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

// Volumes returns the volume column
func (s Series) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return b.Volume })
}

func (s Series) column(pick func(Bar) float64) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = pick(b)
	}
	return out
}

// CacheEntry is the index metadata for one cached series
type CacheEntry struct {
	Symbol    string    `json:"symbol"`
	Period    string    `json:"period"`
	UpdatedAt time.Time `json:"updated_at"`
	Rows      int       `json:"rows"`
}
