package yahoo

import (
	"context"
	"errors"
	"math"

	finance "github.com/piquette/finance-go"

	"github.com/wonny/screener/internal/contracts"
)

// ErrNoQuote is returned when Yahoo has no quote for the symbol
var ErrNoQuote = errors.New("no quote")

// Fundamentals downloads the quote summary for symbol.
// Metrics Yahoo does not report stay NaN.
func (c *Client) Fundamentals(ctx context.Context, symbol string) (contracts.Fundamentals, *contracts.TickerMeta, error) {
	symbol = contracts.NormalizeSymbol(symbol)

	var eq *finance.Equity
	err := c.withRetry(ctx, "equity "+symbol, func() error {
		var fetchErr error
		eq, fetchErr = c.equity(symbol)
		if fetchErr == nil && eq == nil {
			return ErrNoQuote
		}
		return fetchErr
	})
	if err != nil {
		return contracts.EmptyFundamentals(), nil, err
	}

	f := contracts.EmptyFundamentals()
	f["trailingPE"] = positive(eq.TrailingPE)
	f["forwardPE"] = positive(eq.ForwardPE)
	f["pb"] = positive(eq.PriceToBook)
	f["dividendYield"] = nonNegative(eq.TrailingAnnualDividendYield)
	f["marketCap"] = positive(float64(eq.MarketCap))
	f["averageVolume"] = positive(float64(eq.AverageDailyVolume3Month))

	name := eq.LongName
	if name == "" {
		name = eq.ShortName
	}
	meta := &contracts.TickerMeta{
		Symbol:    symbol,
		Name:      name,
		Exchange:  eq.FullExchangeName,
		Currency:  eq.CurrencyID,
		MarketCap: float64(eq.MarketCap),
	}

	return f, meta, nil
}

// positive maps Yahoo's zero placeholder to NaN
func positive(v float64) float64 {
	if v <= 0 || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
