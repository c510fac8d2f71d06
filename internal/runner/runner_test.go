package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/loader"
)

type evalFunc func(series contracts.Series, f contracts.Fundamentals, params contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error)

type fakeScenario struct {
	eval evalFunc
}

func (s *fakeScenario) ID() string          { return "fake" }
func (s *fakeScenario) Name() string        { return "Fake" }
func (s *fakeScenario) Description() string { return "test scenario" }
func (s *fakeScenario) DefaultParams() contracts.Params {
	return contracts.Params{"threshold": 1.0}
}
func (s *fakeScenario) Evaluate(series contracts.Series, f contracts.Fundamentals, params contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	return s.eval(series, f, params)
}

func matchAll(series contracts.Series, _ contracts.Fundamentals, _ contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	return &contracts.ScanResult{Score: 1, LastPrice: series.Last().Close}, nil, nil
}

type fakeLoader struct {
	series map[string]contracts.Series
	hits   int
	misses int
	calls  atomic.Int32
	panics bool
}

func (l *fakeLoader) Load(_ context.Context, symbols []string, _ string) loader.Result {
	l.calls.Add(1)
	if l.panics {
		panic("loader exploded")
	}
	out := make(map[string]contracts.Series)
	for _, sym := range symbols {
		if s, ok := l.series[sym]; ok {
			out[sym] = s
		}
	}
	return loader.Result{Series: out, CacheHits: l.hits, CacheMisses: l.misses}
}

func newLoader(symbols ...string) *fakeLoader {
	l := &fakeLoader{series: map[string]contracts.Series{}}
	for _, sym := range symbols {
		l.series[sym] = contracts.Series{Symbol: sym, Bars: []contracts.Bar{{
			Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100,
		}}}
	}
	return l
}

func symbolsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%02d", i)
	}
	return out
}

func wait(t *testing.T, h *Handle) contracts.ScanSummary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	summary, err := h.Wait(ctx)
	require.NoError(t, err)
	return summary
}

// blocker lets a test hold evaluations until release
type blocker struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlocker() *blocker {
	return &blocker{entered: make(chan struct{}, 100), release: make(chan struct{})}
}

func (b *blocker) eval(series contracts.Series, f contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
	b.entered <- struct{}{}
	<-b.release
	return matchAll(series, f, p)
}

func (b *blocker) Release() {
	b.once.Do(func() { close(b.release) })
}

func TestNewInvalidWorkers(t *testing.T) {
	for _, n := range []int{0, -3} {
		_, err := New(newLoader(), nil, WithWorkers(n))
		assert.ErrorIs(t, err, ErrInvalidWorkers)
	}
}

func TestStartUnknownStrategy(t *testing.T) {
	r, err := New(newLoader(), nil)
	require.NoError(t, err)

	_, err = r.Start(contracts.ScanRequest{Strategy: "does_not_exist"}, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Equal(t, StateIdle, r.Status().State)
}

func TestStartInvalidPeriod(t *testing.T) {
	r, err := New(newLoader(), nil)
	require.NoError(t, err)

	_, err = r.Start(contracts.ScanRequest{Strategy: "golden_cross", Period: "7w"}, nil, nil)
	assert.ErrorIs(t, err, contracts.ErrUnknownPeriod)
}

func TestScanAccounting(t *testing.T) {
	symbols := symbolsN(10)
	ld := newLoader(symbols[:8]...) // S08 and S09 have no data
	ld.hits, ld.misses = 5, 3

	scenario := &fakeScenario{eval: func(series contracts.Series, f contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
		switch series.Symbol {
		case "S00", "S01", "S02":
			return &contracts.ScanResult{Score: p.Float("threshold", 0)}, nil, nil
		case "S03":
			return nil, []contracts.TradeSignal{{Symbol: "S03", Side: contracts.SideBuy}}, nil
		case "S04":
			return nil, nil, errors.New("bad data")
		case "S05":
			panic("division by zero")
		}
		return nil, nil, nil
	}}

	r, err := New(ld, nil, WithWorkers(3))
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		results   []*contracts.ScanResult
		signals   []contracts.TradeSignal
		snapshots []contracts.ScanProgress
	)
	h, err := r.Start(contracts.ScanRequest{Scenario: scenario, Symbols: symbols, Params: contracts.Params{"threshold": 2.0}},
		func(res *contracts.ScanResult, sigs []contracts.TradeSignal) {
			mu.Lock()
			defer mu.Unlock()
			if res != nil {
				results = append(results, res)
			}
			signals = append(signals, sigs...)
		},
		func(p contracts.ScanProgress) {
			mu.Lock()
			defer mu.Unlock()
			snapshots = append(snapshots, p)
		},
	)
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)

	summary := wait(t, h)

	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 10, summary.Processed)
	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, 4, summary.Skipped, "two without data, two without a match")
	assert.Equal(t, 4, summary.Matched())
	assert.Equal(t, 5, summary.CacheHits)
	assert.Equal(t, 3, summary.CacheMisses)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, StateCompleted, h.State())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 3)
	for _, res := range results {
		assert.NotEmpty(t, res.Symbol, "symbol filled in")
		assert.Equal(t, 2.0, res.Score, "request params override defaults")
	}
	assert.Len(t, signals, 1)

	require.Len(t, snapshots, 11, "initial snapshot plus one per unit")
	assert.Equal(t, contracts.ScanProgress{Total: 10}, snapshots[0])
	for i := 1; i < len(snapshots); i++ {
		assert.Equal(t, snapshots[i-1].Processed+1, snapshots[i].Processed)
	}
	assert.Equal(t, 0, snapshots[len(snapshots)-1].Remaining())
}

func TestStartWhileBusy(t *testing.T) {
	b := newBlocker()
	defer b.Release()

	r, err := New(newLoader(symbolsN(2)...), nil, WithWorkers(1))
	require.NoError(t, err)

	h, err := r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: b.eval}, Symbols: symbolsN(2)}, nil, nil)
	require.NoError(t, err)
	<-b.entered

	_, err = r.Start(contracts.ScanRequest{Strategy: "golden_cross", Symbols: []string{"AAPL"}}, nil, nil)
	assert.ErrorIs(t, err, ErrBusy)

	status := r.Status()
	assert.Equal(t, StateRunning, status.State)
	assert.Equal(t, h.ID, status.ScanID)

	b.Release()
	wait(t, h)

	// slot is free as soon as Wait returns
	h2, err := r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: matchAll}, Symbols: []string{"S00"}}, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, h.ID, h2.ID)
	wait(t, h2)
	assert.Equal(t, h2, r.Last())
}

func TestStopCancelsScan(t *testing.T) {
	b := newBlocker()
	defer b.Release()

	symbols := symbolsN(20)
	r, err := New(newLoader(symbols...), nil, WithWorkers(1))
	require.NoError(t, err)

	var results atomic.Int32
	h, err := r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: b.eval}, Symbols: symbols},
		func(*contracts.ScanResult, []contracts.TradeSignal) { results.Add(1) }, nil)
	require.NoError(t, err)

	<-b.entered
	r.Stop()
	r.Stop()
	b.Release()

	summary := wait(t, h)
	assert.True(t, summary.Cancelled)
	assert.Less(t, summary.Processed, summary.Total)
	assert.GreaterOrEqual(t, summary.Processed, 1, "in-flight unit is counted")
	assert.Equal(t, int32(1), results.Load(), "only the in-flight unit is delivered")
	assert.Equal(t, StateCancelled, h.State())
	assert.Equal(t, StateIdle, r.Status().State)
}

func TestStopWhenIdle(t *testing.T) {
	r, err := New(newLoader(), nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r.Stop()
		r.Stop()
	})
}

func TestShutdown(t *testing.T) {
	b := newBlocker()
	symbols := symbolsN(5)
	r, err := New(newLoader(symbols...), nil, WithWorkers(2))
	require.NoError(t, err)

	h, err := r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: b.eval}, Symbols: symbols}, nil, nil)
	require.NoError(t, err)
	<-b.entered

	done := make(chan struct{})
	go func() {
		r.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned before the scan drained")
	case <-time.After(50 * time.Millisecond):
	}

	b.Release()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}

	summary := wait(t, h)
	assert.True(t, summary.Cancelled)

	_, err = r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: matchAll}}, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NotPanics(t, r.Shutdown)
}

func TestCallbackPanicsAreContained(t *testing.T) {
	symbols := symbolsN(4)
	r, err := New(newLoader(symbols...), nil, WithWorkers(2))
	require.NoError(t, err)

	h, err := r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: matchAll}, Symbols: symbols},
		func(*contracts.ScanResult, []contracts.TradeSignal) { panic("ui gone") },
		func(contracts.ScanProgress) { panic("progress bar gone") },
	)
	require.NoError(t, err)

	summary := wait(t, h)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 4, summary.Matched())
	assert.Equal(t, 0, summary.Errors)
}

func TestStatusFromCallback(t *testing.T) {
	symbols := symbolsN(3)
	r, err := New(newLoader(symbols...), nil, WithWorkers(2))
	require.NoError(t, err)

	var seen atomic.Int32
	var h *Handle
	h, err = r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: matchAll}, Symbols: symbols}, nil,
		func(p contracts.ScanProgress) {
			if r.Status().State == StateRunning {
				seen.Add(1)
			}
		},
	)
	require.NoError(t, err)

	wait(t, h)
	assert.Equal(t, int32(4), seen.Load())
}

func TestEmptySymbols(t *testing.T) {
	ld := newLoader()
	r, err := New(ld, nil)
	require.NoError(t, err)

	h, err := r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: matchAll}, Symbols: []string{" ", ""}}, nil, nil)
	require.NoError(t, err)

	summary := wait(t, h)
	assert.Equal(t, contracts.ScanSummary{Duration: summary.Duration}, summary)
	assert.Equal(t, int32(0), ld.calls.Load())
	assert.Equal(t, StateCompleted, h.State())
}

func TestFundamentalsProvider(t *testing.T) {
	symbols := []string{"AAPL", "MSFT"}
	provider := func(_ context.Context, symbol string) (contracts.Fundamentals, bool) {
		if symbol == "MSFT" {
			return nil, false
		}
		return contracts.Fundamentals{"trailingPE": 30}, true
	}

	var mu sync.Mutex
	got := map[string]float64{}
	scenario := &fakeScenario{eval: func(series contracts.Series, f contracts.Fundamentals, _ contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
		assert.NotNil(t, f)
		mu.Lock()
		got[series.Symbol] = f.Get("trailingPE")
		mu.Unlock()
		return nil, nil, nil
	}}

	r, err := New(newLoader(symbols...), provider)
	require.NoError(t, err)

	h, err := r.Start(contracts.ScanRequest{Scenario: scenario, Symbols: symbols}, nil, nil)
	require.NoError(t, err)
	wait(t, h)

	assert.Equal(t, 30.0, got["AAPL"])
	assert.True(t, math.IsNaN(got["MSFT"]), "missing fundamentals read as NaN")
}

func TestLoaderPanicFailsScan(t *testing.T) {
	ld := newLoader("AAPL")
	ld.panics = true
	r, err := New(ld, nil)
	require.NoError(t, err)

	h, err := r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: matchAll}, Symbols: []string{"AAPL"}}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = h.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loader exploded")
	assert.Equal(t, StateFailed, h.State())
	assert.Equal(t, StateIdle, r.Status().State)

	ld.panics = false
	h2, err := r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: matchAll}, Symbols: []string{"AAPL"}}, nil, nil)
	require.NoError(t, err)
	wait(t, h2)
}

func TestWorkerPoolIsBounded(t *testing.T) {
	symbols := symbolsN(30)
	var inFlight, peak atomic.Int32

	scenario := &fakeScenario{eval: func(series contracts.Series, f contracts.Fundamentals, p contracts.Params) (*contracts.ScanResult, []contracts.TradeSignal, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return matchAll(series, f, p)
	}}

	r, err := New(newLoader(symbols...), nil, WithWorkers(3))
	require.NoError(t, err)

	h, err := r.Start(contracts.ScanRequest{Scenario: scenario, Symbols: symbols}, nil, nil)
	require.NoError(t, err)

	summary := wait(t, h)
	assert.Equal(t, 30, summary.Matched())
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestWaitHonoursContext(t *testing.T) {
	b := newBlocker()
	defer b.Release()

	r, err := New(newLoader("AAPL"), nil)
	require.NoError(t, err)
	h, err := r.Start(contracts.ScanRequest{Scenario: &fakeScenario{eval: b.eval}, Symbols: []string{"AAPL"}}, nil, nil)
	require.NoError(t, err)
	<-b.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	b.Release()
	wait(t, h)
}
