package contracts

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownPeriod is returned for history lengths the data source cannot serve
var ErrUnknownPeriod = errors.New("unknown period")

// Periods lists the accepted history lengths
var Periods = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// PeriodStart returns the first day of history covered by period, relative to now
func PeriodStart(period string, now time.Time) (time.Time, error) {
	now = now.UTC()
	switch period {
	case "1mo":
		return now.AddDate(0, -1, 0), nil
	case "3mo":
		return now.AddDate(0, -3, 0), nil
	case "6mo":
		return now.AddDate(0, -6, 0), nil
	case "1y":
		return now.AddDate(-1, 0, 0), nil
	case "2y":
		return now.AddDate(-2, 0, 0), nil
	case "5y":
		return now.AddDate(-5, 0, 0), nil
	case "10y":
		return now.AddDate(-10, 0, 0), nil
	case "ytd":
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), nil
	case "max":
		return time.Date(1970, time.January, 2, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}

// ValidatePeriod checks that period is one of Periods
func ValidatePeriod(period string) error {
	_, err := PeriodStart(period, time.Now())
	return err
}
