// Package recorder keeps a history of finished scans.
package recorder

import (
	"context"
	"time"

	"github.com/wonny/screener/internal/contracts"
)

// Run is one finished scan
type Run struct {
	ID         string
	Strategy   string
	Period     string
	Preset     string
	ConfigHash string
	StartedAt  time.Time
	Summary    contracts.ScanSummary
	Error      string
	Results    []*contracts.ScanResult
}

// RunInfo is a stored run without its results
type RunInfo struct {
	ID         string        `json:"id"`
	Strategy   string        `json:"strategy"`
	Period     string        `json:"period"`
	Preset     string        `json:"preset,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Matched    int           `json:"matched"`
	Errors     int           `json:"errors"`
	Cancelled  bool          `json:"cancelled"`
	Error      string        `json:"error,omitempty"`
	ConfigHash string        `json:"config_hash,omitempty"`
}

// Recorder persists scan history
// ⭐ SSOT: 스캔 이력 저장 인터페이스
type Recorder interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]RunInfo, error)
}

// Noop discards history
type Noop struct{}

// Record does nothing
func (Noop) Record(context.Context, Run) error { return nil }

// Recent returns nothing
func (Noop) Recent(context.Context, int) ([]RunInfo, error) { return nil, nil }

func infoFromRun(run Run) RunInfo {
	return RunInfo{
		ID:         run.ID,
		Strategy:   run.Strategy,
		Period:     run.Period,
		Preset:     run.Preset,
		StartedAt:  run.StartedAt,
		Duration:   run.Summary.Duration,
		Total:      run.Summary.Total,
		Processed:  run.Summary.Processed,
		Matched:    run.Summary.Matched(),
		Errors:     run.Summary.Errors,
		Cancelled:  run.Summary.Cancelled,
		Error:      run.Error,
		ConfigHash: run.ConfigHash,
	}
}
