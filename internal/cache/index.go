package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wonny/screener/internal/contracts"
)

// index tracks (symbol, period) -> updated_at, rows in SQLite
type index struct {
	db *sql.DB
}

func openIndex(path string) (*index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes index writes inside the process.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	ix := &index{db: db}
	if err := ix.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return ix, nil
}

func (ix *index) migrate() error {
	_, err := ix.db.Exec(`CREATE TABLE IF NOT EXISTS cache_index (
		symbol     TEXT    NOT NULL,
		period     TEXT    NOT NULL,
		updated_at INTEGER NOT NULL,
		rows       INTEGER NOT NULL,
		PRIMARY KEY (symbol, period)
	)`)
	return err
}

func (ix *index) upsert(e contracts.CacheEntry) error {
	_, err := ix.db.Exec(`INSERT INTO cache_index (symbol, period, updated_at, rows)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, period) DO UPDATE SET
			updated_at = excluded.updated_at,
			rows = excluded.rows`,
		e.Symbol, e.Period, e.UpdatedAt.UTC().UnixNano(), e.Rows)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", e.Symbol, e.Period, err)
	}
	return nil
}

func (ix *index) lookup(symbol, period string) (contracts.CacheEntry, bool, error) {
	var (
		updated int64
		entry   = contracts.CacheEntry{Symbol: symbol, Period: period}
	)
	err := ix.db.QueryRow(
		`SELECT updated_at, rows FROM cache_index WHERE symbol = ? AND period = ?`,
		symbol, period,
	).Scan(&updated, &entry.Rows)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, fmt.Errorf("lookup %s/%s: %w", symbol, period, err)
	}
	entry.UpdatedAt = time.Unix(0, updated).UTC()
	return entry, true, nil
}

// list returns entries for symbol (all when empty) updated before cutoff (any when zero)
func (ix *index) list(symbol string, before time.Time) ([]contracts.CacheEntry, error) {
	var (
		where []string
		args  []any
	)
	if symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, symbol)
	}
	if !before.IsZero() {
		where = append(where, "updated_at < ?")
		args = append(args, before.UTC().UnixNano())
	}

	query := `SELECT symbol, period, updated_at, rows FROM cache_index`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY symbol, period"

	rows, err := ix.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []contracts.CacheEntry
	for rows.Next() {
		var (
			e       contracts.CacheEntry
			updated int64
		)
		if err := rows.Scan(&e.Symbol, &e.Period, &updated, &e.Rows); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.UpdatedAt = time.Unix(0, updated).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (ix *index) remove(symbol, period string) error {
	_, err := ix.db.Exec(`DELETE FROM cache_index WHERE symbol = ? AND period = ?`, symbol, period)
	return err
}

func (ix *index) close() error {
	return ix.db.Close()
}
