// Package export writes scan output as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/wonny/screener/internal/contracts"
)

// Document is the JSON export of one scan
type Document struct {
	Strategy    string                  `json:"strategy"`
	Period      string                  `json:"period"`
	GeneratedAt time.Time               `json:"generated_at"`
	Summary     contracts.ScanSummary   `json:"summary"`
	Results     []*contracts.ScanResult `json:"results"`
	Signals     []contracts.TradeSignal `json:"signals,omitempty"`
}

// WriteJSON writes doc as indented JSON
func WriteJSON(w io.Writer, doc Document) error {
	if doc.Results == nil {
		doc.Results = []*contracts.ScanResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

const reasonSeparator = " | "

// WriteResultsCSV writes one row per result with metrics flattened as metric_<name>
func WriteResultsCSV(w io.Writer, results []*contracts.ScanResult) error {
	metricNames := metricColumns(results)

	header := []string{"symbol", "score", "last_price", "as_of", "reasons"}
	for _, name := range metricNames {
		header = append(header, "metric_"+name)
	}

	out := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	if err := out.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		row := []string{
			r.Symbol,
			formatFloat(r.Score),
			formatFloat(r.LastPrice),
			formatTime(r.AsOf),
			strings.Join(r.Reasons, reasonSeparator),
		}
		for _, name := range metricNames {
			v, ok := r.Metrics[name]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, formatFloat(v))
		}
		if err := out.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", r.Symbol, err)
		}
	}

	out.Flush()
	return out.Error()
}

type signalRecord struct {
	Symbol     string  `csv:"symbol"`
	Timestamp  string  `csv:"timestamp"`
	Side       string  `csv:"side"`
	Confidence float64 `csv:"confidence"`
	Reason     string  `csv:"reason"`
	ScenarioID string  `csv:"scenario_id"`
}

// WriteSignalsCSV writes one row per signal
func WriteSignalsCSV(w io.Writer, signals []contracts.TradeSignal) error {
	records := make([]*signalRecord, len(signals))
	for i, s := range signals {
		records[i] = &signalRecord{
			Symbol:     s.Symbol,
			Timestamp:  formatTime(s.Timestamp),
			Side:       string(s.Side),
			Confidence: s.Confidence,
			Reason:     s.Reason,
			ScenarioID: s.ScenarioID,
		}
	}
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	return nil
}

// Save writes doc to path. JSON holds everything; CSV writes results to path
// and signals, when present, to <name>_signals.csv beside it.
// Returns the files written.
func Save(path string, doc Document) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := writeFile(path, func(w io.Writer) error { return WriteJSON(w, doc) }); err != nil {
			return nil, err
		}
		return []string{path}, nil

	case ".csv":
		if err := writeFile(path, func(w io.Writer) error { return WriteResultsCSV(w, doc.Results) }); err != nil {
			return nil, err
		}
		written := []string{path}
		if len(doc.Signals) > 0 {
			sigPath := strings.TrimSuffix(path, filepath.Ext(path)) + "_signals.csv"
			if err := writeFile(sigPath, func(w io.Writer) error { return WriteSignalsCSV(w, doc.Signals) }); err != nil {
				return written, err
			}
			written = append(written, sigPath)
		}
		return written, nil

	default:
		return nil, fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}

// FileName builds <strategy>_<yyyymmdd-hhmmss>.<format>
func FileName(strategy string, at time.Time, format string) string {
	return fmt.Sprintf("%s_%s.%s", strategy, at.UTC().Format("20060102-150405"), format)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func metricColumns(results []*contracts.ScanResult) []string {
	seen := map[string]struct{}{}
	for _, r := range results {
		if r == nil {
			continue
		}
		for name := range r.Metrics {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
