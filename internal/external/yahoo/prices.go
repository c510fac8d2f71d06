package yahoo

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/screener/internal/contracts"
)

// FetchSingle downloads one symbol with retries.
// No data is an empty series with a nil error.
func (c *Client) FetchSingle(ctx context.Context, symbol, period string) (contracts.Series, error) {
	symbol = contracts.NormalizeSymbol(symbol)
	start, end, err := c.window(period)
	if err != nil {
		return contracts.Series{}, err
	}

	var bars []contracts.Bar
	err = c.withRetry(ctx, "chart "+symbol, func() error {
		var fetchErr error
		bars, fetchErr = c.chart(symbol, start, end)
		return fetchErr
	})
	if err != nil {
		return contracts.Series{}, err
	}

	return contracts.Series{Symbol: symbol, Bars: bars}.Clean(), nil
}

// FetchBatch downloads symbols in chunks and returns only those with data.
// Cancellation is checked between chunks; completed chunks are kept.
func (c *Client) FetchBatch(ctx context.Context, symbols []string, period string) map[string]contracts.Series {
	symbols = contracts.NormalizeSymbols(symbols)
	out := make(map[string]contracts.Series, len(symbols))
	if len(symbols) == 0 {
		return out
	}

	start, end, err := c.window(period)
	if err != nil {
		c.logger.WithError(err).WithField("period", period).Warn("Batch download skipped")
		return out
	}

	size := c.cfg.BatchChunkSize
	for i := 0; i < len(symbols); i += size {
		if ctx.Err() != nil {
			c.logger.WithField("fetched", len(out)).Info("Batch download cancelled")
			break
		}

		chunk := symbols[i:min(i+size, len(symbols))]
		for sym, series := range c.downloadChunk(ctx, chunk, period, start, end) {
			out[sym] = series
		}

		c.logger.WithFields(map[string]interface{}{
			"chunk":   i/size + 1,
			"symbols": len(chunk),
			"fetched": len(out),
		}).Debug("Chunk downloaded")
	}

	return out
}

// downloadChunk fetches every member once, then falls back to FetchSingle for empty slots
func (c *Client) downloadChunk(ctx context.Context, chunk []string, period string, start, end time.Time) map[string]contracts.Series {
	slots := make([]contracts.Series, len(chunk))

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.ChunkConcurrency)
	for i, sym := range chunk {
		g.Go(func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil
			}
			bars, err := c.chart(sym, start, end)
			if err != nil {
				c.logger.WithError(err).WithField("symbol", sym).Debug("Chunk member failed")
				return nil
			}
			slots[i] = contracts.Series{Symbol: sym, Bars: bars}.Clean()
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]contracts.Series, len(chunk))
	for i, sym := range chunk {
		series := slots[i]
		if series.Empty() {
			if ctx.Err() != nil {
				continue
			}
			single, err := c.FetchSingle(ctx, sym, period)
			if err != nil {
				c.logger.WithError(err).WithField("symbol", sym).Warn("No data after fallback")
				continue
			}
			series = single
		}
		if !series.Empty() {
			out[sym] = series
		}
	}
	return out
}
