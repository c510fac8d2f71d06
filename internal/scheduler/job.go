package scheduler

import (
	"context"
	"sync"
	"time"
)

// historyLimit is the number of results kept per job
const historyLimit = 100

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name, e.g. "scan:daily-golden-cross"
	Name() string

	// Run executes the job. Scan jobs call ReportScan with their summary.
	Run(ctx context.Context) error

	// Schedule returns the cron expression, seconds optional
	// Examples: "0 30 16 * * 1-5" (weekdays after the US close)
	//           "@daily", "@every 6h"
	Schedule() string
}

// ScanOutcome is the scan summary a job attaches to its result
type ScanOutcome struct {
	ScanID    string `json:"scan_id"`
	Strategy  string `json:"strategy"`
	Total     int    `json:"total"`
	Matched   int    `json:"matched"`
	Errors    int    `json:"errors"`
	Cancelled bool   `json:"cancelled"`
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Scan      *ScanOutcome  `json:"scan,omitempty"`
}

type outcomeKey struct{}

// outcomeSlot collects the last scan reported during one job execution
type outcomeSlot struct {
	mu   sync.Mutex
	scan *ScanOutcome
}

func (s *outcomeSlot) get() *ScanOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scan
}

func withOutcome(ctx context.Context) (context.Context, *outcomeSlot) {
	slot := &outcomeSlot{}
	return context.WithValue(ctx, outcomeKey{}, slot), slot
}

// ReportScan attaches a scan outcome to the running job's result.
// Outside a scheduler execution it does nothing; a retry overwrites the earlier attempt.
func ReportScan(ctx context.Context, outcome ScanOutcome) {
	slot, ok := ctx.Value(outcomeKey{}).(*outcomeSlot)
	if !ok {
		return
	}
	slot.mu.Lock()
	slot.scan = &outcome
	slot.mu.Unlock()
}

// JobHistory stores job execution history
type JobHistory struct {
	Results []JobResult
}

// AddResult adds a job result to history
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	if len(h.Results) > historyLimit {
		h.Results = h.Results[len(h.Results)-historyLimit:]
	}
}

// GetLatestResults returns the latest N results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}

	if n == 0 {
		return []JobResult{}
	}

	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns all failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// LastScan returns the most recent scan outcome, nil for jobs that never scanned
func (h *JobHistory) LastScan() *ScanOutcome {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if h.Results[i].Scan != nil {
			return h.Results[i].Scan
		}
	}
	return nil
}

// GetSuccessRate returns the success rate (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}

	successCount := 0
	for _, result := range h.Results {
		if result.Success {
			successCount++
		}
	}

	return float64(successCount) / float64(len(h.Results))
}
