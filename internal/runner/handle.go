package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/screener/internal/contracts"
)

// State is the lifecycle state of a scan
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Handle tracks one started scan
type Handle struct {
	ID        string
	Strategy  string
	Period    string
	StartedAt time.Time

	done      chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	cancelled atomic.Bool
	cancel    context.CancelFunc

	// serializes user callbacks
	emitMu sync.Mutex

	mu       sync.Mutex
	state    State
	progress contracts.ScanProgress
	summary  contracts.ScanSummary
	err      error
}

func newHandle(id, strategy, period string, startedAt time.Time, total int, cancel context.CancelFunc) *Handle {
	return &Handle{
		ID:        id,
		Strategy:  strategy,
		Period:    period,
		StartedAt: startedAt,
		done:      make(chan struct{}),
		stopCh:    make(chan struct{}),
		cancel:    cancel,
		state:     StateRunning,
		progress:  contracts.ScanProgress{Total: total},
	}
}

// Done is closed once the summary is available
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the scan finishes or ctx ends.
// A stopped scan returns its partial summary with Cancelled set and a nil error.
func (h *Handle) Wait(ctx context.Context) (contracts.ScanSummary, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.summary, h.err
	case <-ctx.Done():
		return contracts.ScanSummary{}, ctx.Err()
	}
}

// Stop requests cooperative cancellation; safe to call repeatedly
func (h *Handle) Stop() {
	h.cancelled.Store(true)
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.cancel != nil {
			h.cancel()
		}
	})
}

// Cancelled reports whether Stop was requested
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Progress returns the current progress snapshot
func (h *Handle) Progress() contracts.ScanProgress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// State returns the lifecycle state
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

type outcome int

const (
	outcomeMatched outcome = iota
	outcomeSkipped
	outcomeError
)

// record counts one finished unit and returns the new snapshot
func (h *Handle) record(o outcome) contracts.ScanProgress {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.progress.Processed++
	switch o {
	case outcomeSkipped:
		h.progress.Skipped++
	case outcomeError:
		h.progress.Errors++
	}
	return h.progress
}

func (h *Handle) complete(summary contracts.ScanSummary, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.summary = summary
	h.err = err
	switch {
	case err != nil:
		h.state = StateFailed
	case summary.Cancelled:
		h.state = StateCancelled
	default:
		h.state = StateCompleted
	}
}
