package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
	pkgch "SessionLens/pkg/clickhouse"
	applogger "SessionLens/pkg/logger"
)

const insertChunk = 5000

// CHSnapshotStore keeps enriched datasets in ClickHouse: one metadata row per
// dataset and one row per candle.
type CHSnapshotStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHSnapshotStore(ch *pkgch.Client) *CHSnapshotStore {
	return &CHSnapshotStore{db: ch.DB(), database: ch.Database(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSnapshotStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHSnapshotStore) candlesTable() string { return s.database + ".enriched_candles" }

func (s *CHSnapshotStore) datasetsTable() string { return s.database + ".datasets" }

// SchemaStatements returns the idempotent DDL for database db.
func SchemaStatements(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.datasets (
			dataset     String,
			source      String,
			fingerprint String,
			candles     UInt64,
			warnings    Array(String),
			saved_at    DateTime('UTC')
		) ENGINE = ReplacingMergeTree(saved_at)
		ORDER BY dataset`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.enriched_candles (
			dataset String,
			ts      DateTime('UTC'),
			open    Float64,
			high    Float64,
			low     Float64,
			close   Float64,
			volume  Int64,
			date    String,
			weekday UInt8,
			session LowCardinality(String),
			range   Float64,
			missing Array(LowCardinality(String))
		) ENGINE = MergeTree
		ORDER BY (dataset, ts)`, db),
	}
}

func (s *CHSnapshotStore) Init(ctx context.Context) error {
	for _, stmt := range SchemaStatements(s.database) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init snapshot schema: %w", err)
		}
	}
	return nil
}

// Save replaces any stored copy of ds.
func (s *CHSnapshotStore) Save(ctx context.Context, ds *models.Dataset) error {
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE dataset = ?", s.candlesTable()), ds.ID); err != nil {
		s.l.Error("clickhouse snapshot delete error", applogger.String("dataset", ds.ID), applogger.Error(err))
		return fmt.Errorf("clear snapshot %s: %w", ds.ID, err)
	}

	for from := 0; from < len(ds.Candles); from += insertChunk {
		to := min(from+insertChunk, len(ds.Candles))
		if err := s.insertCandles(ctx, ds.ID, ds.Candles[from:to]); err != nil {
			s.l.Error("clickhouse snapshot insert error",
				applogger.String("dataset", ds.ID),
				applogger.Int("offset", from),
				applogger.Error(err),
			)
			return fmt.Errorf("save snapshot %s: %w", ds.ID, err)
		}
	}

	q := fmt.Sprintf("INSERT INTO %s (dataset, source, fingerprint, candles, warnings, saved_at) VALUES (?, ?, ?, ?, ?, ?)", s.datasetsTable())
	warnings := ds.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	if _, err := s.db.ExecContext(ctx, q, ds.ID, ds.Source, ds.Fingerprint, uint64(len(ds.Candles)), warnings, time.Now().UTC()); err != nil {
		return fmt.Errorf("save snapshot meta %s: %w", ds.ID, err)
	}

	s.l.Info("clickhouse snapshot saved",
		applogger.String("dataset", ds.ID),
		applogger.Int("rows", len(ds.Candles)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// insertCandles sends one chunk as a single native batch.
func (s *CHSnapshotStore) insertCandles(ctx context.Context, id string, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (dataset, ts, open, high, low, close, volume, date, weekday, session, range, missing)", s.candlesTable()))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, candleArgs(id, c)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func candleArgs(id string, c models.Candle) []any {
	missing := c.Missing
	if missing == nil {
		missing = []string{}
	}
	return []any{
		id, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume,
		c.Date, uint8(c.Weekday), string(c.Session), c.Range, missing,
	}
}

// Load returns the stored dataset, wrapping models.ErrRunNotFound when absent.
func (s *CHSnapshotStore) Load(ctx context.Context, id string) (*models.Dataset, error) {
	start := time.Now()
	ds := &models.Dataset{ID: id}
	q := fmt.Sprintf("SELECT source, fingerprint, warnings FROM %s FINAL WHERE dataset = ? LIMIT 1", s.datasetsTable())
	err := s.db.QueryRowContext(ctx, q, id).Scan(&ds.Source, &ds.Fingerprint, &ds.Warnings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", id, models.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot meta %s: %w", id, err)
	}

	q = fmt.Sprintf(`
		SELECT ts, open, high, low, close, volume, date, weekday, session, range, missing
		FROM %s
		WHERE dataset = ?
		ORDER BY ts ASC`, s.candlesTable())
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		s.l.Error("clickhouse snapshot query error", applogger.String("dataset", id), applogger.Error(err))
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	defer rows.Close()

	ds.Candles = make([]models.Candle, 0, 4096)
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		ds.Candles = append(ds.Candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(ds.Candles) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", id, models.ErrEmptyDataset)
	}

	s.l.Info("clickhouse snapshot loaded",
		applogger.String("dataset", id),
		applogger.Int("rows", len(ds.Candles)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return ds, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCandle(sc scanner) (models.Candle, error) {
	var (
		c       models.Candle
		weekday uint8
		session string
	)
	if err := sc.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Date, &weekday, &session, &c.Range, &c.Missing); err != nil {
		return c, err
	}
	if len(c.Missing) == 0 {
		c.Missing = nil
	}
	c.Timestamp = c.Timestamp.UTC()
	c.Weekday = time.Weekday(weekday)
	c.Session = models.Session(session)
	return c, nil
}

func (s *CHSnapshotStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT dataset FROM %s FINAL ORDER BY dataset", s.datasetsTable()))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dataset id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *CHSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHSnapshotStore) Close() error { return nil }

var _ drepo.SnapshotStore = (*CHSnapshotStore)(nil)
