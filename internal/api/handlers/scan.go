package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/export"
	"github.com/wonny/screener/internal/recorder"
	"github.com/wonny/screener/internal/runner"
	"github.com/wonny/screener/internal/scans"
	"github.com/wonny/screener/internal/universe"
	"github.com/wonny/screener/pkg/logger"
)

// Event types pushed to stream subscribers
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventSummary  = "summary"
)

// Scanner is the runner surface the handler drives
type Scanner interface {
	Start(req contracts.ScanRequest, onResult contracts.ResultFunc, onProgress contracts.ProgressFunc) (*runner.Handle, error)
	Stop()
	Status() runner.Status
}

// SymbolSource resolves a universe into symbols
type SymbolSource interface {
	Load(ctx context.Context, spec universe.Spec) ([]string, error)
}

// Broadcaster fans scan events out to subscribers
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// ScanRequest is the POST /api/scans body
type ScanRequest struct {
	Strategy     string           `json:"strategy"`
	Symbols      []string         `json:"symbols"`
	Universe     string           `json:"universe"`
	UniverseFile string           `json:"universe_file"`
	MaxCount     int              `json:"max_count"`
	Period       string           `json:"period"`
	Params       contracts.Params `json:"params"`
}

// ScanReport is the outcome of a finished scan
type ScanReport struct {
	ScanID    string                  `json:"scan_id"`
	Strategy  string                  `json:"strategy"`
	Period    string                  `json:"period"`
	StartedAt time.Time               `json:"started_at"`
	Summary   contracts.ScanSummary   `json:"summary"`
	Error     string                  `json:"error,omitempty"`
	Results   []*contracts.ScanResult `json:"results"`
}

// ScanHandler handles scan API endpoints
// ⭐ SSOT: 스캔 API 핸들러는 이 구조체에서만
type ScanHandler struct {
	scanner  Scanner
	registry *scans.Registry
	symbols  SymbolSource
	recorder recorder.Recorder
	events   Broadcaster
	logger   *logger.Logger

	mu   sync.RWMutex
	last *ScanReport
	wg   sync.WaitGroup
}

// NewScanHandler creates a new scan handler. rec and events may be nil.
func NewScanHandler(scanner Scanner, registry *scans.Registry, symbols SymbolSource, rec recorder.Recorder, events Broadcaster, log *logger.Logger) *ScanHandler {
	if rec == nil {
		rec = recorder.Noop{}
	}
	return &ScanHandler{
		scanner:  scanner,
		registry: registry,
		symbols:  symbols,
		recorder: rec,
		events:   events,
		logger:   log,
	}
}

// ListStrategies returns the registered scenarios
// GET /api/strategies
func (h *ScanHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    h.registry.Infos(),
	})
}

// StartScan starts a scan in the background
// POST /api/scans
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Strategy == "" {
		respondError(w, http.StatusBadRequest, "strategy is required")
		return
	}
	if !h.registry.Has(req.Strategy) {
		respondError(w, http.StatusBadRequest, "unknown strategy: "+req.Strategy)
		return
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		if req.Universe == "" {
			respondError(w, http.StatusBadRequest, "symbols or universe is required")
			return
		}
		var err error
		symbols, err = h.symbols.Load(r.Context(), universe.Spec{
			Name:     req.Universe,
			MaxCount: req.MaxCount,
			File:     req.UniverseFile,
		})
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, universe.ErrUnknownUniverse) {
				status = http.StatusBadRequest
			}
			h.logger.WithError(err).WithField("universe", req.Universe).Warn("Failed to load universe")
			respondError(w, status, err.Error())
			return
		}
	}

	collector := export.NewCollector()
	onResult := func(result *contracts.ScanResult, signals []contracts.TradeSignal) {
		collector.OnResult(result, signals)
		h.broadcast(EventResult, map[string]interface{}{
			"result":  result,
			"signals": signals,
		})
	}
	onProgress := func(p contracts.ScanProgress) {
		h.broadcast(EventProgress, p)
	}

	handle, err := h.scanner.Start(contracts.ScanRequest{
		Strategy: req.Strategy,
		Symbols:  symbols,
		Params:   req.Params,
		Period:   req.Period,
	}, onResult, onProgress)
	if err != nil {
		switch {
		case errors.Is(err, runner.ErrBusy):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, scans.ErrUnknownStrategy), errors.Is(err, contracts.ErrUnknownPeriod):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, runner.ErrClosed):
			respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			h.logger.WithError(err).Error("Failed to start scan")
			respondError(w, http.StatusInternalServerError, "failed to start scan")
		}
		return
	}

	h.wg.Add(1)
	go h.collect(handle, collector)

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"scan_id":  handle.ID,
			"strategy": handle.Strategy,
			"period":   handle.Period,
			"total":    handle.Progress().Total,
		},
	})
}

// collect waits for a scan, keeps it as the last report and records it
func (h *ScanHandler) collect(handle *runner.Handle, collector *export.Collector) {
	defer h.wg.Done()

	summary, err := handle.Wait(context.Background())
	report := &ScanReport{
		ScanID:    handle.ID,
		Strategy:  handle.Strategy,
		Period:    handle.Period,
		StartedAt: handle.StartedAt,
		Summary:   summary,
		Results:   collector.Results(),
	}
	if err != nil {
		report.Error = err.Error()
	}

	h.mu.Lock()
	h.last = report
	h.mu.Unlock()

	h.broadcast(EventSummary, map[string]interface{}{
		"scan_id": report.ScanID,
		"summary": report.Summary,
		"error":   report.Error,
	})

	run := recorder.Run{
		ID:        report.ScanID,
		Strategy:  report.Strategy,
		Period:    report.Period,
		StartedAt: report.StartedAt,
		Summary:   summary,
		Error:     report.Error,
		Results:   report.Results,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.recorder.Record(ctx, run); err != nil {
		h.logger.WithError(err).WithField("scan_id", run.ID).Warn("Failed to record scan run")
	}
}

// StopScan cancels the active scan
// DELETE /api/scans/active
func (h *ScanHandler) StopScan(w http.ResponseWriter, r *http.Request) {
	status := h.scanner.Status()
	if status.State != runner.StateRunning {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"stopped": false,
		})
		return
	}

	h.scanner.Stop()
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"stopped": true,
		"scan_id": status.ScanID,
	})
}

// GetActive returns the runner status
// GET /api/scans/active
func (h *ScanHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    h.scanner.Status(),
	})
}

// GetLast returns the last finished scan
// GET /api/scans/last
func (h *ScanHandler) GetLast(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	last := h.last
	h.mu.RUnlock()

	if last == nil {
		respondError(w, http.StatusNotFound, "no scan has finished yet")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    last,
	})
}

// GetHistory returns recorded scan runs
// GET /api/scans/history?limit=20
func (h *ScanHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	runs, err := h.recorder.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load scan history")
		respondError(w, http.StatusInternalServerError, "failed to load scan history")
		return
	}
	if runs == nil {
		runs = []recorder.RunInfo{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    runs,
	})
}

// Wait blocks until every started scan has been collected
func (h *ScanHandler) Wait() {
	h.wg.Wait()
}

func (h *ScanHandler) broadcast(eventType string, data interface{}) {
	if h.events != nil {
		h.events.Broadcast(eventType, data)
	}
}
