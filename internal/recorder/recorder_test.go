package recorder

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/database"
)

func sampleRun(strategy string, startedAt time.Time) Run {
	return Run{
		ID:        uuid.NewString(),
		Strategy:  strategy,
		Period:    "1y",
		Preset:    "daily-" + strategy,
		StartedAt: startedAt,
		Summary: contracts.ScanSummary{
			Total:     10,
			Processed: 10,
			Skipped:   6,
			Errors:    1,
			Duration:  1500 * time.Millisecond,
		},
		Results: []*contracts.ScanResult{
			{Symbol: "AAPL", Score: 72.5, LastPrice: 190.1, Metrics: map[string]float64{"rsi": 28}, Reasons: []string{"RSI oversold"}},
			{Symbol: "MSFT", Score: 61, LastPrice: 410},
			nil,
		},
	}
}

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}
	require.NoError(t, r.Record(context.Background(), sampleRun("golden_cross", time.Now())))

	runs, err := r.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	base := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	_, ok := m.Last()
	assert.False(t, ok)

	for i, strategy := range []string{"golden_cross", "momentum_breakout", "classic_oversold"} {
		require.NoError(t, m.Record(ctx, sampleRun(strategy, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := m.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "classic_oversold", runs[0].Strategy)
	assert.Equal(t, "momentum_breakout", runs[1].Strategy)
	assert.Equal(t, 3, runs[0].Matched)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)

	runs, err = m.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	last, ok := m.Last()
	require.True(t, ok)
	assert.Len(t, last.Results, 3)
}

func TestPostgresRecord(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Default()
	cfg.Database.URL = url

	db, err := database.New(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgres(db.Pool)
	require.NoError(t, p.Migrate(ctx))

	run := sampleRun("golden_cross", time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond))
	require.NoError(t, p.Record(ctx, run))

	runs, err := p.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, 3, runs[0].Matched)
	assert.Equal(t, run.Summary.Duration, runs[0].Duration)

	// Duplicate id is rejected and rolled back
	assert.Error(t, p.Record(ctx, run))

	_, err = db.Pool.Exec(ctx, "DELETE FROM scan_runs WHERE id = $1", run.ID)
	require.NoError(t, err)
}
