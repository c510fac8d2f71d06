// Package runner executes one scan at a time over a bounded worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/loader"
	"github.com/wonny/screener/internal/scans"
	"github.com/wonny/screener/pkg/logger"
)

var (
	// ErrBusy is returned by Start while another scan is active
	ErrBusy = errors.New("a scan is already running")
	// ErrInvalidWorkers is returned by New for a non-positive pool width
	ErrInvalidWorkers = errors.New("workers must be > 0")
	// ErrClosed is returned by Start after Shutdown
	ErrClosed = errors.New("runner is shut down")
	// ErrUnknownStrategy is returned by Start for an unregistered strategy id
	ErrUnknownStrategy = scans.ErrUnknownStrategy
)

const (
	DefaultWorkers = 4
	DefaultPeriod  = "1y"
)

// PriceLoader resolves price series for a scan
type PriceLoader interface {
	Load(ctx context.Context, symbols []string, period string) loader.Result
}

// Status describes the runner for status endpoints
type Status struct {
	State     State                  `json:"state"`
	ScanID    string                 `json:"scan_id,omitempty"`
	Strategy  string                 `json:"strategy,omitempty"`
	Period    string                 `json:"period,omitempty"`
	StartedAt time.Time              `json:"started_at,omitempty"`
	Progress  contracts.ScanProgress `json:"progress"`
}

// Runner owns the single active scan slot
// ⭐ SSOT: 스캔 실행/취소는 이 러너에서만
type Runner struct {
	loader        PriceLoader
	fundamentals  contracts.FundamentalsProvider
	registry      *scans.Registry
	workers       int
	defaultPeriod string
	logger        *logger.Logger
	now           func() time.Time

	mu     sync.Mutex
	active *Handle
	last   *Handle
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Runner
type Option func(*Runner)

// WithWorkers sets the worker pool width
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithRegistry sets the scenario registry used to resolve strategy ids
func WithRegistry(reg *scans.Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(r *Runner) { r.logger = log }
}

// WithDefaultPeriod sets the period used when a request leaves it empty
func WithDefaultPeriod(period string) Option {
	return func(r *Runner) { r.defaultPeriod = period }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a runner. fundamentals may be nil.
func New(ld PriceLoader, fundamentals contracts.FundamentalsProvider, opts ...Option) (*Runner, error) {
	r := &Runner{
		loader:        ld,
		fundamentals:  fundamentals,
		registry:      scans.Default(),
		workers:       DefaultWorkers,
		defaultPeriod: DefaultPeriod,
		logger:        logger.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkers, r.workers)
	}
	if r.loader == nil {
		return nil, errors.New("price loader is required")
	}
	return r, nil
}

// Start validates req, claims the active slot and runs the scan in the background
func (r *Runner) Start(req contracts.ScanRequest, onResult contracts.ResultFunc, onProgress contracts.ProgressFunc) (*Handle, error) {
	scenario := req.Scenario
	if scenario == nil {
		var err error
		scenario, err = r.registry.Lookup(req.Strategy)
		if err != nil {
			return nil, err
		}
	}

	period := req.Period
	if period == "" {
		period = r.defaultPeriod
	}
	if err := contracts.ValidatePeriod(period); err != nil {
		return nil, err
	}

	params := contracts.Merge(scenario.DefaultParams(), req.Params)
	symbols := contracts.NormalizeSymbols(req.Symbols)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if r.active != nil {
		r.mu.Unlock()
		return nil, ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(uuid.New().String(), scenario.ID(), period, r.now(), len(symbols), cancel)
	r.active = h
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"scan_id":  h.ID,
		"strategy": h.Strategy,
		"period":   period,
		"symbols":  len(symbols),
		"workers":  r.workers,
	}).Info("Scan started")

	go r.run(ctx, h, scenario, params, symbols, onResult, onProgress)
	return h, nil
}

// Stop cancels the active scan; no-op when idle
func (r *Runner) Stop() {
	r.mu.Lock()
	h := r.active
	r.mu.Unlock()

	if h != nil {
		h.Stop()
	}
}

// Shutdown stops the active scan, waits for it and rejects further starts
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	h := r.active
	r.mu.Unlock()

	if h != nil {
		h.Stop()
	}
	r.wg.Wait()
}

// Status returns the active scan state, Idle when nothing runs
func (r *Runner) Status() Status {
	r.mu.Lock()
	h := r.active
	r.mu.Unlock()

	if h == nil {
		return Status{State: StateIdle}
	}
	return Status{
		State:     StateRunning,
		ScanID:    h.ID,
		Strategy:  h.Strategy,
		Period:    h.Period,
		StartedAt: h.StartedAt,
		Progress:  h.Progress(),
	}
}

// Last returns the most recently finished scan, nil when none
func (r *Runner) Last() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Runner) run(
	ctx context.Context,
	h *Handle,
	scenario contracts.Scenario,
	params contracts.Params,
	symbols []string,
	onResult contracts.ResultFunc,
	onProgress contracts.ProgressFunc,
) {
	defer r.wg.Done()

	start := r.now()
	summary := contracts.ScanSummary{Total: len(symbols)}
	var runErr error

	defer func() {
		if p := recover(); p != nil {
			runErr = fmt.Errorf("scan %s panicked: %v", h.ID, p)
			progress := h.Progress()
			summary.Processed = progress.Processed
			summary.Skipped = progress.Skipped
			summary.Errors = progress.Errors
		}
		summary.Cancelled = h.Cancelled()
		summary.Duration = r.now().Sub(start)
		r.finish(h, summary, runErr)
	}()

	summary = r.execute(ctx, h, scenario, params, symbols, onResult, onProgress)
}

// finish frees the slot before signalling waiters so a waiter can start the next scan
func (r *Runner) finish(h *Handle, summary contracts.ScanSummary, err error) {
	h.complete(summary, err)

	r.mu.Lock()
	if r.active == h {
		r.active = nil
	}
	r.last = h
	r.mu.Unlock()

	h.cancel()
	close(h.done)

	log := r.logger.WithFields(map[string]interface{}{
		"scan_id":   h.ID,
		"strategy":  h.Strategy,
		"total":     summary.Total,
		"processed": summary.Processed,
		"matched":   summary.Matched(),
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
		"hits":      summary.CacheHits,
		"misses":    summary.CacheMisses,
		"cancelled": summary.Cancelled,
		"duration":  summary.Duration.String(),
	})
	if err != nil {
		log.WithError(err).Error("Scan failed")
		return
	}
	log.Info("Scan finished")
}

func (r *Runner) execute(
	ctx context.Context,
	h *Handle,
	scenario contracts.Scenario,
	params contracts.Params,
	symbols []string,
	onResult contracts.ResultFunc,
	onProgress contracts.ProgressFunc,
) contracts.ScanSummary {
	summary := contracts.ScanSummary{Total: len(symbols)}

	r.emitProgress(h, onProgress, h.Progress())

	if len(symbols) == 0 || h.Cancelled() {
		return summary
	}

	loaded := r.loader.Load(ctx, symbols, h.Period)
	summary.CacheHits = loaded.CacheHits
	summary.CacheMisses = loaded.CacheMisses

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				r.process(ctx, h, scenario, params, sym, loaded.Series, onResult, onProgress)
			}
		}()
	}

dispatch:
	for _, sym := range symbols {
		if h.Cancelled() {
			break
		}
		select {
		case jobs <- sym:
		case <-h.stopCh:
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	progress := h.Progress()
	summary.Processed = progress.Processed
	summary.Skipped = progress.Skipped
	summary.Errors = progress.Errors
	return summary
}

// process evaluates one symbol, delivers its result and reports progress
func (r *Runner) process(
	ctx context.Context,
	h *Handle,
	scenario contracts.Scenario,
	params contracts.Params,
	symbol string,
	series map[string]contracts.Series,
	onResult contracts.ResultFunc,
	onProgress contracts.ProgressFunc,
) {
	result, signals, o := r.evaluate(ctx, h, scenario, params, symbol, series)

	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	if o == outcomeMatched && onResult != nil {
		r.safeCall("result", h, func() { onResult(result, signals) })
	}

	progress := h.record(o)
	if onProgress != nil {
		r.safeCall("progress", h, func() { onProgress(progress) })
	}
}

func (r *Runner) evaluate(
	ctx context.Context,
	h *Handle,
	scenario contracts.Scenario,
	params contracts.Params,
	symbol string,
	series map[string]contracts.Series,
) (result *contracts.ScanResult, signals []contracts.TradeSignal, o outcome) {
	if h.Cancelled() {
		return nil, nil, outcomeSkipped
	}

	data, ok := series[symbol]
	if !ok || data.Empty() {
		return nil, nil, outcomeSkipped
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.WithFields(map[string]interface{}{
				"scan_id": h.ID,
				"symbol":  symbol,
				"panic":   fmt.Sprint(p),
			}).Error("Scenario panicked")
			result, signals, o = nil, nil, outcomeError
		}
	}()

	var fundamentals contracts.Fundamentals
	if r.fundamentals != nil {
		if f, ok := r.fundamentals(ctx, symbol); ok {
			fundamentals = f
		}
	}
	if fundamentals == nil {
		fundamentals = contracts.Fundamentals{}
	}

	result, signals, err := scenario.Evaluate(data, fundamentals, params)
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"scan_id": h.ID,
			"symbol":  symbol,
		}).Warn("Scenario failed")
		return nil, nil, outcomeError
	}
	if result == nil && len(signals) == 0 {
		return nil, nil, outcomeSkipped
	}
	if result != nil && result.Symbol == "" {
		result.Symbol = symbol
	}
	return result, signals, outcomeMatched
}

func (r *Runner) safeCall(kind string, h *Handle, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.WithFields(map[string]interface{}{
				"scan_id":  h.ID,
				"callback": kind,
				"panic":    fmt.Sprint(p),
			}).Error("Callback panicked")
		}
	}()
	fn()
}

func (r *Runner) emitProgress(h *Handle, onProgress contracts.ProgressFunc, progress contracts.ScanProgress) {
	if onProgress == nil {
		return
	}
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	r.safeCall("progress", h, func() { onProgress(progress) })
}
