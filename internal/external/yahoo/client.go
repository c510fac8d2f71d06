// Package yahoo downloads daily price history and fundamentals from Yahoo Finance.
package yahoo

import (
	"context"
	"fmt"
	"math"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
)

// ChartFunc downloads daily bars for symbol in [start, end]
type ChartFunc func(symbol string, start, end time.Time) ([]contracts.Bar, error)

// EquityFunc downloads the quote summary for symbol
type EquityFunc func(symbol string) (*finance.Equity, error)

// Client handles communication with Yahoo Finance
// ⭐ SSOT: Yahoo Finance 호출은 이 클라이언트에서만
type Client struct {
	cfg     config.FetcherConfig
	limiter *rate.Limiter
	logger  *logger.Logger

	chart  ChartFunc
	equity EquityFunc
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithChartFunc replaces the chart transport
func WithChartFunc(f ChartFunc) Option {
	return func(c *Client) { c.chart = f }
}

// WithEquityFunc replaces the quote transport
func WithEquityFunc(f EquityFunc) Option {
	return func(c *Client) { c.equity = f }
}

// WithClock overrides the time source used to resolve periods
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSleep overrides the backoff sleep
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithLimiter overrides the request limiter
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a new Yahoo Finance client
func NewClient(cfg config.FetcherConfig, log *logger.Logger, opts ...Option) *Client {
	if cfg.BatchChunkSize <= 0 {
		cfg.BatchChunkSize = 60
	}
	if cfg.ChunkConcurrency <= 0 {
		cfg.ChunkConcurrency = 8
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 2
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log,
		chart:   fetchChart,
		equity:  equity.Get,
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fetchChart is the default chart transport
func fetchChart(symbol string, start, end time.Time) ([]contracts.Bar, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var bars []contracts.Bar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, contracts.Bar{
			Time:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   price(b.Open),
			High:   price(b.High),
			Low:    price(b.Low),
			Close:  price(b.Close),
			Volume: float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

// price converts a quote to float; zero means missing
func price(d decimal.Decimal) float64 {
	if d.IsZero() {
		return math.NaN()
	}
	return d.InexactFloat64()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withRetry runs fn up to MaxRetries times with exponential backoff
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := c.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == c.cfg.MaxRetries {
			break
		}

		c.logger.WithFields(map[string]interface{}{
			"op":      op,
			"attempt": attempt,
			"delay":   delay.String(),
		}).WithError(lastErr).Debug("Retrying Yahoo request")

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * c.cfg.BackoffFactor)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, c.cfg.MaxRetries, lastErr)
}

// window resolves period to a [start, end] range
func (c *Client) window(period string) (time.Time, time.Time, error) {
	end := c.now().UTC()
	start, err := contracts.PeriodStart(period, end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
