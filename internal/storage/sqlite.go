// Package storage implements the C9 append-only OHLC bar store: a
// SQLite-backed replacement for the original's per-file Parquet layout
// (no Parquet library exists anywhere in the retrieval pack; see
// DESIGN.md), keyed by (symbol, interval), with 365-day retention. Every
// SaveBars call writes its bars; there is no cache of unchanged bars.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kkim/hanaro-trader/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
    symbol    TEXT    NOT NULL,
    interval  TEXT    NOT NULL,
    ts        INTEGER NOT NULL,
    open      REAL    NOT NULL,
    high      REAL    NOT NULL,
    low       REAL    NOT NULL,
    close     REAL    NOT NULL,
    volume    REAL    NOT NULL,
    value     REAL    NOT NULL,
    PRIMARY KEY (symbol, interval, ts)
);

CREATE INDEX IF NOT EXISTS idx_bars_lookup ON bars(symbol, interval, ts);
`

// retentionWindow is the 1-year retention enforced on every save (spec §4.5).
const retentionWindow = domain.StorageRetentionDays * 24 * time.Hour

// BarStore is a SQLite-backed implementation of ports.BarStore.
type BarStore struct {
	db *sql.DB

	mu        sync.Mutex
	lastMaxTS map[string]int64 // "symbol/interval" -> max ts; allocated by Open but not read or updated by any method
}

// Open creates (or opens) the database at path, applies the schema, and
// runs an initial pruning pass.
func Open(path string) (*BarStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.Open: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.Open: apply schema: %w", err)
	}

	s := &BarStore{db: db, lastMaxTS: make(map[string]int64)}
	if err := s.PruneExpired(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SaveBars merges bars into the store for (symbol, interval): last write
// wins per timestamp via UPSERT, then rows older than the retention
// cutoff are dropped (spec §4.5 "load existing, merge ... drop ... sort
// ... write back", reinterpreted as row-level upsert rather than whole
// file rewrite since SQLite makes that redundant).
func (s *BarStore) SaveBars(ctx context.Context, symbol, interval string, bars []domain.OHLC) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("storage.SaveBars: %s %s: %w", symbol, interval, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveBars: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, interval, ts, open, high, low, close, volume, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume, value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveBars: prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, interval, b.Timestamp.Unix(),
			b.Open, b.High, b.Low, b.Close, b.Volume, b.Value); err != nil {
			return fmt.Errorf("storage.SaveBars: upsert %s@%d: %w", symbol, b.Timestamp.Unix(), err)
		}
	}

	cutoff := time.Now().Add(-retentionWindow).Unix()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bars WHERE symbol = ? AND interval = ? AND ts < ?`, symbol, interval, cutoff,
	); err != nil {
		return fmt.Errorf("storage.SaveBars: prune: %w", err)
	}

	return tx.Commit()
}

// LoadBars returns bars for (symbol, interval) with timestamp in
// [start,end], ascending, using column projection and predicate
// pushdown directly via the SQL WHERE clause and column list.
func (s *BarStore) LoadBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.OHLC, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume, value
		FROM bars
		WHERE symbol = ? AND interval = ? AND ts BETWEEN ? AND ?
		ORDER BY ts ASC
	`, symbol, interval, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("storage.LoadBars: query: %w", err)
	}
	defer rows.Close()

	var out []domain.OHLC
	for rows.Next() {
		var ts int64
		var b domain.OHLC
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Value); err != nil {
			return nil, fmt.Errorf("storage.LoadBars: scan: %w", err)
		}
		b.Symbol = symbol
		b.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, rows.Err()
}

// PruneExpired deletes any row older than the retention cutoff, across
// every (symbol, interval) series — the background eviction pass from
// spec §4.5, run at startup and safe to call again on any schedule.
func (s *BarStore) PruneExpired(ctx context.Context) error {
	cutoff := time.Now().Add(-retentionWindow).Unix()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bars WHERE ts < ?`, cutoff); err != nil {
		return fmt.Errorf("storage.PruneExpired: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *BarStore) Close() error {
	return s.db.Close()
}
