package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"WedgeSentinel/internal/model"
)

// SQLiteRecorder persists the scan run log to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id    TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			duration_ms INTEGER,
			units       INTEGER,
			failures    INTEGER,
			patterns    INTEGER,
			breakouts   INTEGER,
			alerts      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_runs_started ON scan_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS scan_failures (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id  TEXT NOT NULL,
			stage     TEXT,
			symbol    TEXT,
			timeframe TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_failures_cycle ON scan_failures(cycle_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordScan stores one cycle. Failures are kept as stage and unit only.
func (r *SQLiteRecorder) RecordScan(rep *model.ScanReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO scan_runs
		(cycle_id, started_at, duration_ms, units, failures, patterns, breakouts, alerts)
		VALUES (?,?,?,?,?,?,?,?)`,
		rep.CycleID, rep.StartedAt.UnixMilli(), rep.Duration.Milliseconds(),
		rep.Units, rep.Failures, rep.Patterns, rep.Breakouts, rep.Alerts,
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}

	for _, ue := range rep.Errors {
		if _, err := tx.Exec(`INSERT INTO scan_failures (cycle_id, stage, symbol, timeframe) VALUES (?,?,?,?)`,
			rep.CycleID, ue.Stage, ue.Unit.Symbol, ue.Unit.Interval); err != nil {
			return fmt.Errorf("insert scan failure: %w", err)
		}
	}
	return tx.Commit()
}

// LatestScan returns the most recent cycle. Errors carry the failed stage
// and unit; the original error text is not stored.
func (r *SQLiteRecorder) LatestScan() (*model.ScanReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		rep        model.ScanReport
		startedMs  int64
		durationMs int64
	)
	err := r.db.QueryRow(`SELECT cycle_id, started_at, duration_ms, units, failures, patterns, breakouts, alerts
		FROM scan_runs ORDER BY id DESC LIMIT 1`).
		Scan(&rep.CycleID, &startedMs, &durationMs, &rep.Units, &rep.Failures, &rep.Patterns, &rep.Breakouts, &rep.Alerts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoScans
	}
	if err != nil {
		return nil, fmt.Errorf("query latest scan: %w", err)
	}
	rep.StartedAt = time.UnixMilli(startedMs)
	rep.Duration = time.Duration(durationMs) * time.Millisecond

	rows, err := r.db.Query(`SELECT stage, symbol, timeframe FROM scan_failures WHERE cycle_id = ? ORDER BY id`, rep.CycleID)
	if err != nil {
		return nil, fmt.Errorf("query scan failures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		ue := &model.UnitError{Err: errRecorded}
		if err := rows.Scan(&ue.Stage, &ue.Unit.Symbol, &ue.Unit.Interval); err != nil {
			return nil, fmt.Errorf("scan failure row: %w", err)
		}
		ue.Unit.Label = ue.Unit.Interval
		rep.Errors = append(rep.Errors, ue)
	}
	return &rep, rows.Err()
}

var errRecorded = errors.New("recorded failure")

// DB returns the underlying database for health checks.
func (r *SQLiteRecorder) DB() *sql.DB { return r.db }

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
