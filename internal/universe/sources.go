package universe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocarina/gocsv"
)

// listingRow covers both nasdaqtrader files: nasdaqtraded.txt names the
// column "Symbol", otherlisted.txt names it "ACT Symbol".
type listingRow struct {
	Symbol    string `csv:"Symbol"`
	ACTSymbol string `csv:"ACT Symbol"`
	TestIssue string `csv:"Test Issue"`
}

// parseListing reads a pipe-delimited nasdaqtrader symbol directory
func parseListing(body []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = '|'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []*listingRow
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	symbols := make([]string, 0, len(rows))
	for _, row := range rows {
		sym := strings.TrimSpace(row.Symbol)
		if sym == "" {
			sym = strings.TrimSpace(row.ACTSymbol)
		}
		// trailing "File Creation Time: ..." footer and blank rows
		if sym == "" || strings.ContainsAny(sym, " :") {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(row.TestIssue), "Y") {
			continue
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

func (l *Loader) loadSP500(ctx context.Context) ([]string, error) {
	body, err := l.download(ctx, SP500URL)
	if err != nil {
		return nil, err
	}
	return parseSP500(body)
}

// parseSP500 reads the first column of the constituents table.
// Share-class dots become dashes (BRK.B -> BRK-B) to match Yahoo symbols.
func parseSP500(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var symbols []string
	doc.Find("table#constituents tbody tr").Each(func(_ int, row *goquery.Selection) {
		sym := strings.TrimSpace(row.Find("td").First().Text())
		if sym == "" {
			return
		}
		symbols = append(symbols, strings.ReplaceAll(sym, ".", "-"))
	})

	if len(symbols) == 0 {
		return nil, fmt.Errorf("constituents table not found")
	}
	return symbols, nil
}

// ReadTickerFile reads one symbol per line. Blank lines, '#' comments and a
// leading "symbol" header are ignored; for CSV lines the first field is used.
func ReadTickerFile(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("ticker file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		if i := strings.IndexAny(line, ",;\t"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if first {
			first = false
			if strings.EqualFold(line, "symbol") || strings.EqualFold(line, "ticker") {
				continue
			}
		}
		if line != "" {
			symbols = append(symbols, strings.ToUpper(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return symbols, nil
}
