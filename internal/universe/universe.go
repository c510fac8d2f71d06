// Package universe builds symbol lists from public listings and local files.
package universe

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
)

// Universe names
const (
	USAll  = "us-all"
	Nasdaq = "nasdaq"
	NYSE   = "nyse"
	SP500  = "sp500"
	Custom = "custom"
)

// Source URLs
const (
	NasdaqTradedURL = "https://ftp.nasdaqtrader.com/dynamic/SymDir/nasdaqtraded.txt"
	OtherListedURL  = "https://ftp.nasdaqtrader.com/dynamic/SymDir/otherlisted.txt"
	SP500URL        = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"
)

// ErrUnknownUniverse is returned for names outside the supported set
var ErrUnknownUniverse = errors.New("unknown universe")

// Fetcher downloads a URL body (pkg/httputil.Client)
type Fetcher interface {
	GetBody(ctx context.Context, url string) ([]byte, error)
}

// Spec selects a universe
type Spec struct {
	Name     string
	MaxCount int    // 0 = all
	File     string // custom universe source
}

// Loader resolves universes with a CSV cache per name
// ⭐ SSOT: 종목 유니버스 구성은 여기서만
type Loader struct {
	dir     string
	refresh time.Duration
	http    Fetcher
	logger  *logger.Logger
	now     func() time.Time
	urls    map[string]string
}

// Option configures a Loader
type Option func(*Loader)

// WithClock overrides the time source used for cache age
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithURL overrides a source URL (NasdaqTradedURL, OtherListedURL, SP500URL)
func WithURL(source, url string) Option {
	return func(l *Loader) { l.urls[source] = url }
}

// New creates a loader caching under cfg.Dir
func New(cfg config.UniverseConfig, http Fetcher, log *logger.Logger, opts ...Option) (*Loader, error) {
	if cfg.Dir == "" {
		return nil, errors.New("universe dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create universe dir: %w", err)
	}

	l := &Loader{
		dir:     cfg.Dir,
		refresh: cfg.Refresh,
		http:    http,
		logger:  log,
		now:     time.Now,
		urls: map[string]string{
			NasdaqTradedURL: NasdaqTradedURL,
			OtherListedURL:  OtherListedURL,
			SP500URL:        SP500URL,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load returns the cleaned, sorted symbols of spec
func (l *Loader) Load(ctx context.Context, spec Spec) ([]string, error) {
	if spec.Name == Custom {
		symbols, err := ReadTickerFile(spec.File)
		if err != nil {
			return nil, fmt.Errorf("custom universe: %w", err)
		}
		return truncate(Clean(symbols), spec.MaxCount), nil
	}

	cachePath := filepath.Join(l.dir, spec.Name+".csv")
	if symbols, ok := l.readCache(cachePath); ok {
		return truncate(symbols, spec.MaxCount), nil
	}

	var (
		raw []string
		err error
	)
	switch spec.Name {
	case USAll:
		raw, err = l.loadUSAll(ctx)
	case Nasdaq:
		raw, err = l.loadListing(ctx, NasdaqTradedURL)
	case NYSE:
		raw, err = l.loadListing(ctx, OtherListedURL)
	case SP500:
		raw, err = l.loadSP500(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownUniverse, spec.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", spec.Name, err)
	}

	symbols := Clean(raw)
	if err := writeSymbols(cachePath, symbols); err != nil {
		l.logger.WithError(err).WithField("universe", spec.Name).Warn("Failed to cache universe")
	}

	l.logger.WithFields(map[string]interface{}{
		"universe": spec.Name,
		"symbols":  len(symbols),
	}).Info("Universe downloaded")

	return truncate(symbols, spec.MaxCount), nil
}

func (l *Loader) loadUSAll(ctx context.Context) ([]string, error) {
	nasdaq, err := l.loadListing(ctx, NasdaqTradedURL)
	if err != nil {
		return nil, err
	}
	other, err := l.loadListing(ctx, OtherListedURL)
	if err != nil {
		return nil, err
	}
	return append(nasdaq, other...), nil
}

func (l *Loader) loadListing(ctx context.Context, source string) ([]string, error) {
	body, err := l.download(ctx, source)
	if err != nil {
		return nil, err
	}
	return parseListing(body)
}

func (l *Loader) download(ctx context.Context, source string) ([]byte, error) {
	if l.http == nil {
		return nil, errors.New("no http client configured")
	}
	body, err := l.http.GetBody(ctx, l.urls[source])
	if err != nil {
		return nil, err
	}
	return gunzipIfNeeded(body)
}

// readCache returns the cached list when younger than the refresh age
func (l *Loader) readCache(path string) ([]string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if l.refresh > 0 && l.now().Sub(info.ModTime()) >= l.refresh {
		return nil, false
	}

	symbols, err := readSymbols(path)
	if err != nil || len(symbols) == 0 {
		return nil, false
	}
	return symbols, true
}

// Clean upper-cases, drops share-class and special symbols (^ = $ .), dedupes and sorts
func Clean(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, sym := range contracts.NormalizeSymbols(symbols) {
		if strings.ContainsAny(sym, "^=$.") {
			continue
		}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func truncate(symbols []string, max int) []string {
	if max > 0 && len(symbols) > max {
		return symbols[:max]
	}
	return symbols
}

func gunzipIfNeeded(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

type symbolRecord struct {
	Symbol string `csv:"symbol"`
}

func writeSymbols(path string, symbols []string) error {
	records := make([]*symbolRecord, len(symbols))
	for i, s := range symbols {
		records[i] = &symbolRecord{Symbol: s}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&records, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []*symbolRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Symbol)
	}
	return out, nil
}
