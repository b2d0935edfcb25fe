package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ETFSentinel/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *slog.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets dashboards read while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS metric_snapshots (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id            TEXT NOT NULL,
			timestamp         INTEGER NOT NULL,
			symbol            TEXT NOT NULL,
			benchmark         TEXT,
			period            TEXT,
			observations      INTEGER,
			volatility        REAL,
			tracking_error    REAL,
			sharpe_ratio      REAL,
			sortino_ratio     REAL,
			max_drawdown      REAL,
			alpha             REAL,
			beta              REAL,
			information_ratio REAL,
			up_capture        REAL,
			down_capture      REAL,
			avg_volume        REAL,
			liquidity_score   REAL,
			one_way_cost      REAL,
			premium_pct       REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_symbol_ts ON metric_snapshots(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS validation_records (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL,
			timestamp      INTEGER NOT NULL,
			symbol         TEXT NOT NULL,
			metric         TEXT NOT NULL,
			our_value      REAL,
			external_value REAL,
			difference     REAL,
			severity       TEXT,
			source         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_validation_symbol_ts ON validation_records(symbol, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func stamp(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Unix()
}

func (r *SQLiteRecorder) RecordMetrics(ctx context.Context, snap *MetricSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := snap.Metrics
	_, err := r.db.ExecContext(ctx, `INSERT INTO metric_snapshots
		(run_id, timestamp, symbol, benchmark, period, observations,
		 volatility, tracking_error, sharpe_ratio, sortino_ratio, max_drawdown,
		 alpha, beta, information_ratio, up_capture, down_capture,
		 avg_volume, liquidity_score, one_way_cost, premium_pct)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		snap.RunID, stamp(snap.At), snap.Symbol, m.Benchmark, snap.Period, m.Observations,
		m.Volatility, m.TrackingError, m.Sharpe, m.Sortino, m.MaxDrawdown,
		m.Alpha, m.Beta, m.InformationRatio, m.UpCapture, m.DownCapture,
		m.AvgVolume, m.Liquidity.Total, snap.OneWayCost, snap.PremiumPct,
	)
	return err
}

func (r *SQLiteRecorder) RecordValidation(ctx context.Context, evt *ValidationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := stamp(evt.At)
	for _, rec := range evt.Records {
		var severity sql.NullString
		if sev, ok := rec.Severity(); ok {
			severity = sql.NullString{String: string(sev), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO validation_records
			(run_id, timestamp, symbol, metric, our_value, external_value, difference, severity, source)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			evt.RunID, ts, evt.Symbol, rec.Metric, rec.Our, rec.External, rec.Difference, severity, rec.Source,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", rec.Metric, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) LastSeverities(ctx context.Context, symbol string) (map[string]model.Severity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `SELECT metric, severity FROM validation_records
		WHERE run_id = (SELECT run_id FROM validation_records WHERE symbol = ? ORDER BY id DESC LIMIT 1)
		AND symbol = ? AND severity IS NOT NULL`, symbol, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]model.Severity)
	for rows.Next() {
		var metric, sev string
		if err := rows.Scan(&metric, &sev); err != nil {
			return nil, err
		}
		out[metric] = model.Severity(sev)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
