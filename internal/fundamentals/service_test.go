package fundamentals

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (f *fakeFetcher) Fundamentals(_ context.Context, symbol string) (contracts.Fundamentals, *contracts.TickerMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[symbol]++
	if f.err != nil {
		return nil, nil, f.err
	}
	out := contracts.EmptyFundamentals()
	out["trailingPE"] = 20
	return out, &contracts.TickerMeta{Symbol: symbol, Name: symbol + " Inc."}, nil
}

// memStore round-trips through JSON like the redis cache does
type memStore struct {
	data map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func TestGetMemoizes(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc := New(fetcher, nil, 0, logger.Nop())

	f, ok := svc.Get(context.Background(), "aapl")
	require.True(t, ok)
	assert.Equal(t, 20.0, f.Get("trailingPE"))
	assert.True(t, math.IsNaN(f.Get("roe")))

	_, _ = svc.Get(context.Background(), "AAPL")
	assert.Equal(t, 1, fetcher.calls["AAPL"])

	meta := svc.Meta(context.Background(), "AAPL")
	require.NotNil(t, meta)
	assert.Equal(t, "AAPL Inc.", meta.Name)
}

func TestGetFailureReturnsEmpty(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("quote endpoint down")}
	svc := New(fetcher, nil, 0, logger.Nop())

	f, ok := svc.Get(context.Background(), "MSFT")
	require.True(t, ok)
	assert.Len(t, f, len(contracts.FundamentalKeys))
	for _, k := range contracts.FundamentalKeys {
		assert.True(t, math.IsNaN(f[k]), k)
	}

	_, _ = svc.Get(context.Background(), "MSFT")
	assert.Equal(t, 1, fetcher.calls["MSFT"], "failure is memoized")
	assert.Nil(t, svc.Meta(context.Background(), "MSFT"))
}

func TestGetUsesStore(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}

	first := New(&fakeFetcher{}, store, time.Hour, logger.Nop())
	_, _ = first.Get(context.Background(), "NVDA")
	require.Contains(t, store.data, "fundamentals:NVDA")

	fetcher := &fakeFetcher{}
	second := New(fetcher, store, time.Hour, logger.Nop())
	f, ok := second.Provider()(context.Background(), "nvda")
	require.True(t, ok)

	assert.Equal(t, 20.0, f.Get("trailingPE"))
	assert.True(t, math.IsNaN(f.Get("beta")), "NaN survives the store round trip")
	assert.Empty(t, fetcher.calls)
}

func TestGetDoesNotMemoizeCancelledFetch(t *testing.T) {
	fetcher := &fakeFetcher{err: context.Canceled}
	svc := New(fetcher, nil, 0, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f, ok := svc.Get(ctx, "MSFT")
	require.True(t, ok)
	assert.True(t, math.IsNaN(f.Get("trailingPE")))
	assert.Nil(t, svc.Meta(ctx, "MSFT"))

	// the next scan fetches again and keeps the real values
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.mu.Unlock()

	f, _ = svc.Get(context.Background(), "MSFT")
	assert.Equal(t, 20.0, f.Get("trailingPE"))
	require.NotNil(t, svc.Meta(context.Background(), "MSFT"))
	assert.Equal(t, 3, fetcher.calls["MSFT"], "cancelled lookups are not memoized")
}
