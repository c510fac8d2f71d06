package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/export"
	"github.com/wonny/screener/internal/recorder"
	"github.com/wonny/screener/internal/runner"
	"github.com/wonny/screener/internal/scheduler"
	"github.com/wonny/screener/internal/strategyconfig"
	"github.com/wonny/screener/internal/universe"
	"github.com/wonny/screener/pkg/logger"
)

// SymbolSource resolves a universe into symbols
type SymbolSource interface {
	Load(ctx context.Context, spec universe.Spec) ([]string, error)
}

// ScanStarter starts scans; *runner.Runner satisfies it
type ScanStarter interface {
	Start(req contracts.ScanRequest, onResult contracts.ResultFunc, onProgress contracts.ProgressFunc) (*runner.Handle, error)
}

// ScanJob runs a preset on its schedule
// ⭐ SSOT: 프리셋 기반 정기 스캔은 이 Job에서만
type ScanJob struct {
	preset     strategyconfig.Preset
	configHash string
	symbols    SymbolSource
	runner     ScanStarter
	recorder   recorder.Recorder
	logger     *logger.Logger
	now        func() time.Time
}

// NewScanJob creates a scan job for preset. rec may be nil.
func NewScanJob(preset strategyconfig.Preset, configHash string, symbols SymbolSource, r ScanStarter, rec recorder.Recorder, log *logger.Logger) *ScanJob {
	if rec == nil {
		rec = recorder.Noop{}
	}
	return &ScanJob{
		preset:     preset,
		configHash: configHash,
		symbols:    symbols,
		runner:     r,
		recorder:   rec,
		logger:     log,
		now:        time.Now,
	}
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "scan:" + j.preset.Name
}

// Schedule returns the preset schedule
func (j *ScanJob) Schedule() string {
	return j.preset.Schedule
}

// Run loads the preset universe, scans it, exports and records the outcome.
// A busy runner fails the attempt so the scheduler retries it later.
func (j *ScanJob) Run(ctx context.Context) error {
	log := j.logger.WithFields(map[string]interface{}{
		"preset":   j.preset.Name,
		"strategy": j.preset.Strategy,
	})
	log.Info("Starting scheduled scan")

	symbols := j.preset.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = j.symbols.Load(ctx, universe.Spec{
			Name:     j.preset.Universe,
			MaxCount: j.preset.MaxCount,
			File:     j.preset.UniverseFile,
		})
		if err != nil {
			return fmt.Errorf("load universe %s: %w", j.preset.Universe, err)
		}
	}

	collector := export.NewCollector()
	h, err := j.runner.Start(contracts.ScanRequest{
		Strategy: j.preset.Strategy,
		Symbols:  symbols,
		Params:   contracts.Params(j.preset.Params),
		Period:   j.preset.Period,
	}, collector.OnResult, nil)
	if err != nil {
		if errors.Is(err, runner.ErrBusy) {
			return fmt.Errorf("preset %s: %w", j.preset.Name, err)
		}
		return fmt.Errorf("start scan: %w", err)
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-stopped:
		}
	}()

	summary, runErr := h.Wait(context.Background())
	scheduler.ReportScan(ctx, scheduler.ScanOutcome{
		ScanID:    h.ID,
		Strategy:  h.Strategy,
		Total:     summary.Total,
		Matched:   summary.Matched(),
		Errors:    summary.Errors,
		Cancelled: summary.Cancelled,
	})

	doc := export.Document{
		Strategy:    h.Strategy,
		Period:      h.Period,
		GeneratedAt: j.now(),
		Summary:     summary,
		Results:     collector.Results(),
		Signals:     collector.Signals(),
	}

	if j.preset.Export != nil {
		path := filepath.Join(j.preset.Export.Dir, export.FileName(j.preset.Name, h.StartedAt, j.preset.Export.Format))
		files, err := export.Save(path, doc)
		if err != nil {
			log.WithError(err).Error("Failed to export scan results")
		} else {
			log.WithField("files", files).Info("Scan results exported")
		}
	}

	run := recorder.Run{
		ID:         h.ID,
		Strategy:   h.Strategy,
		Period:     h.Period,
		Preset:     j.preset.Name,
		ConfigHash: j.configHash,
		StartedAt:  h.StartedAt,
		Summary:    summary,
		Results:    doc.Results,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := j.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).Warn("Failed to record scan run")
	}

	log.WithFields(map[string]interface{}{
		"scan_id":   h.ID,
		"total":     summary.Total,
		"matched":   summary.Matched(),
		"errors":    summary.Errors,
		"cancelled": summary.Cancelled,
		"duration":  summary.Duration,
	}).Info("Scheduled scan finished")

	if runErr != nil {
		return fmt.Errorf("scan %s failed: %w", h.ID, runErr)
	}
	return nil
}
