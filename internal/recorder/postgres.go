package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the recorder uses
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres stores runs in scan_runs and matches in scan_results
type Postgres struct {
	db DB
}

// NewPostgres creates a Postgres recorder
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id           UUID PRIMARY KEY,
	strategy     TEXT        NOT NULL,
	period       TEXT        NOT NULL,
	preset       TEXT        NOT NULL DEFAULT '',
	config_hash  TEXT        NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT      NOT NULL,
	total        INTEGER     NOT NULL,
	processed    INTEGER     NOT NULL,
	skipped      INTEGER     NOT NULL,
	errors       INTEGER     NOT NULL,
	cache_hits   INTEGER     NOT NULL,
	cache_misses INTEGER     NOT NULL,
	cancelled    BOOLEAN     NOT NULL,
	error        TEXT        NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS scan_results (
	run_id     UUID   NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
	symbol     TEXT   NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	last_price DOUBLE PRECISION NOT NULL,
	as_of      TIMESTAMPTZ,
	metrics    JSONB  NOT NULL,
	reasons    TEXT[] NOT NULL,
	PRIMARY KEY (run_id, symbol)
);
CREATE INDEX IF NOT EXISTS scan_runs_started_at_idx ON scan_runs (started_at DESC);
`

// Migrate creates the history tables
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate scan history: %w", err)
	}
	return nil
}

// Record stores run and its results in one transaction
func (p *Postgres) Record(ctx context.Context, run Run) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	s := run.Summary
	_, err = tx.Exec(ctx, `
		INSERT INTO scan_runs (
			id, strategy, period, preset, config_hash, started_at, duration_ms,
			total, processed, skipped, errors, cache_hits, cache_misses, cancelled, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		run.ID, run.Strategy, run.Period, run.Preset, run.ConfigHash, run.StartedAt, s.Duration.Milliseconds(),
		s.Total, s.Processed, s.Skipped, s.Errors, s.CacheHits, s.CacheMisses, s.Cancelled, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan run: %w", err)
	}

	if len(run.Results) > 0 {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO scan_results (run_id, symbol, score, last_price, as_of, metrics, reasons)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (run_id, symbol) DO NOTHING`

		queued := 0
		for _, r := range run.Results {
			if r == nil {
				continue
			}
			metrics, err := json.Marshal(r.Metrics)
			if err != nil {
				return fmt.Errorf("failed to marshal metrics for %s: %w", r.Symbol, err)
			}
			reasons := r.Reasons
			if reasons == nil {
				reasons = []string{}
			}
			var asOf *time.Time
			if !r.AsOf.IsZero() {
				asOf = &r.AsOf
			}
			batch.Queue(query, run.ID, r.Symbol, r.Score, r.LastPrice, asOf, metrics, reasons)
			queued++
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < queued; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert scan result: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first
func (p *Postgres) Recent(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.Query(ctx, `
		SELECT id::text, strategy, period, preset, config_hash, started_at, duration_ms,
		       total, processed, skipped, errors, cancelled, error
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			info       RunInfo
			durationMs int64
			skipped    int
		)
		err := rows.Scan(&info.ID, &info.Strategy, &info.Period, &info.Preset, &info.ConfigHash,
			&info.StartedAt, &durationMs, &info.Total, &info.Processed, &skipped, &info.Errors,
			&info.Cancelled, &info.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		info.Duration = time.Duration(durationMs) * time.Millisecond
		info.Matched = max(info.Processed-skipped-info.Errors, 0)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}
