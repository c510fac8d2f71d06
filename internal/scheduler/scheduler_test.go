package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	failures int32
	calls    atomic.Int32
	block    bool
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if j.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if n <= j.failures {
		return errors.New("upstream unavailable")
	}
	return nil
}

func history(t *testing.T, s *Scheduler, name string) []JobResult {
	t.Helper()
	h, err := s.GetJobHistory(name)
	require.NoError(t, err)
	return h.Results
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "0 30 16 * * 1-5"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "*/5 * * * *"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "c", schedule: "@daily"}))

	err := s.AddJob(&fakeJob{name: "a", schedule: "@hourly"})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob(&fakeJob{name: "d", schedule: "not a schedule"})
	assert.ErrorContains(t, err, "failed to schedule job d")

	assert.Equal(t, []string{"a", "b", "c"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))

	_, ok := s.NextRun("a")
	assert.False(t, ok)
}

func TestRunJobRetries(t *testing.T) {
	s := New(logger.Nop(), WithRetry(2, time.Millisecond))
	job := &fakeJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	require.Eventually(t, func() bool { return len(history(t, s, "flaky")) == 1 }, time.Second, 5*time.Millisecond)

	results := history(t, s, "flaky")
	assert.True(t, results[0].Success)
	assert.Equal(t, int32(3), job.calls.Load())

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
	require.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestRunJobGivesUp(t *testing.T) {
	s := New(logger.Nop(), WithRetry(1, time.Millisecond))
	job := &fakeJob{name: "broken", schedule: "@daily", failures: 10}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("broken"))
	require.Eventually(t, func() bool { return len(history(t, s, "broken")) == 1 }, time.Second, 5*time.Millisecond)

	results := history(t, s, "broken")
	assert.False(t, results[0].Success)
	assert.Equal(t, "upstream unavailable", results[0].Error)
	assert.Equal(t, int32(2), job.calls.Load())

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
}

// reportingJob reports a scan on every attempt and fails the first one
type reportingJob struct {
	calls atomic.Int32
}

func (j *reportingJob) Name() string     { return "scan:watchlist" }
func (j *reportingJob) Schedule() string { return "@daily" }

func (j *reportingJob) Run(ctx context.Context) error {
	n := int(j.calls.Add(1))
	ReportScan(ctx, ScanOutcome{ScanID: fmt.Sprintf("run-%d", n), Strategy: "golden_cross", Total: 10, Matched: n})
	if n == 1 {
		return errors.New("busy")
	}
	return nil
}

func TestRunJobRecordsScanOutcome(t *testing.T) {
	s := New(logger.Nop(), WithRetry(1, time.Millisecond))
	require.NoError(t, s.AddJob(&reportingJob{}))
	require.NoError(t, s.AddJob(&fakeJob{name: "cleanup", schedule: "@daily"}))

	require.NoError(t, s.RunJob("scan:watchlist"))
	require.NoError(t, s.RunJob("cleanup"))
	require.Eventually(t, func() bool {
		return len(history(t, s, "scan:watchlist")) == 1 && len(history(t, s, "cleanup")) == 1
	}, time.Second, 5*time.Millisecond)

	result := history(t, s, "scan:watchlist")[0]
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	require.NotNil(t, result.Scan)
	assert.Equal(t, "run-2", result.Scan.ScanID, "last attempt wins")
	assert.Equal(t, 2, result.Scan.Matched)

	assert.Nil(t, history(t, s, "cleanup")[0].Scan)

	stats := s.GetJobStats()
	require.NotNil(t, stats["scan:watchlist"].LastScan)
	assert.Equal(t, 10, stats["scan:watchlist"].LastScan.Total)
	assert.Nil(t, stats["cleanup"].LastScan)
}

func TestReportScanOutsideScheduler(t *testing.T) {
	assert.NotPanics(t, func() {
		ReportScan(context.Background(), ScanOutcome{ScanID: "x"})
	})
}

func TestRunJobUnknown(t *testing.T) {
	s := New(logger.Nop())
	assert.Error(t, s.RunJob("missing"))
}

func TestStopCancelsRunningJobs(t *testing.T) {
	s := New(logger.Nop(), WithRetry(3, time.Hour))
	job := &fakeJob{name: "long", schedule: "@daily", block: true}
	require.NoError(t, s.AddJob(job))
	s.Start()

	require.NoError(t, s.RunJob("long"))
	require.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	results := history(t, s, "long")
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestNextRun(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}))

	_, ok := s.NextRun("a")
	assert.False(t, ok, "entries have no next run before Start")

	s.Start()
	defer s.Stop()

	next, ok := s.NextRun("a")
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))
}

func TestJobHistoryKeepsLast100(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 120; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}
