package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/wonny/screener/internal/contracts"
)

// csvTime stores timestamps as RFC3339 in UTC
type csvTime struct {
	time.Time
}

func (t csvTime) MarshalCSV() (string, error) {
	return t.UTC().Format(time.RFC3339Nano), nil
}

func (t *csvTime) UnmarshalCSV(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

type barRecord struct {
	Date   csvTime `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// writeSeriesFile replaces path atomically: readers see the old file or the new one
func writeSeriesFile(path string, series contracts.Series) (err error) {
	records := make([]*barRecord, len(series.Bars))
	for i, b := range series.Bars {
		records[i] = &barRecord{
			Date:   csvTime{b.Time},
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = gocsv.Marshal(records, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode csv: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readSeriesFile(path string) (contracts.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return contracts.Series{}, err
	}
	defer f.Close()

	var records []*barRecord
	if err := gocsv.Unmarshal(f, &records); err != nil {
		return contracts.Series{}, fmt.Errorf("decode csv: %w", err)
	}

	bars := make([]contracts.Bar, len(records))
	for i, r := range records {
		bars[i] = contracts.Bar{
			Time:   r.Date.Time,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return contracts.Series{Bars: bars}, nil
}
