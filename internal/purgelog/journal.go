package purgelog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"slcache/internal/diskcache"
	"slcache/internal/logging"
)

// Journal persists eviction pass summaries in SQLite.
type Journal struct {
	db       *sql.DB
	path     string
	keepRuns int
	logger   *slog.Logger
}

// Run is one journaled eviction pass.
type Run struct {
	PassID      string        `json:"pass_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Scanned     int           `json:"scanned"`
	Kept        int           `json:"kept"`
	Deleted     int           `json:"deleted"`
	Protected   int           `json:"protected"`
	Failed      int           `json:"failed"`
	BytesBefore int64         `json:"bytes_before"`
	BytesAfter  int64         `json:"bytes_after"`
	Budget      int64         `json:"budget"`
}

// Open creates or connects to the journal at path and applies migrations.
// keepRuns bounds the number of retained rows; 0 keeps everything.
func Open(path string, keepRuns int, logger *slog.Logger) (*Journal, error) {
	if path == "" {
		return nil, errors.New("purgelog: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	journal := &Journal{
		db:       db,
		path:     path,
		keepRuns: keepRuns,
		logger:   logging.NewComponentLogger(logger, "purgelog"),
	}
	if err := journal.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return journal, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

// Record inserts a pass summary.
func (j *Journal) Record(ctx context.Context, result diskcache.PassResult) error {
	if result.PassID == "" {
		return errors.New("purgelog: pass has no id")
	}
	_, err := j.db.ExecContext(
		ctx,
		`INSERT INTO purge_runs (
            pass_id, started_at, duration_ms, scanned, kept, deleted,
            protected, failed, bytes_before, bytes_after, budget
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.PassID,
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.Duration.Milliseconds(),
		result.Scanned,
		result.Kept,
		result.Deleted,
		result.Protected,
		result.Failed,
		result.BytesBefore,
		result.BytesAfter,
		result.Budget,
	)
	if err != nil {
		return fmt.Errorf("insert purge run: %w", err)
	}
	return nil
}

// ObservePass records result and trims old rows. Failures are logged.
func (j *Journal) ObservePass(ctx context.Context, result diskcache.PassResult) {
	if err := j.Record(ctx, result); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, j.logger), "journal purge pass failed", "purgelog_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "pass is missing from purge history"),
			logging.String(logging.FieldErrorHint, "check the state directory and purge.db permissions"),
		)
		return
	}
	if j.keepRuns <= 0 {
		return
	}
	if _, err := j.Prune(ctx, j.keepRuns); err != nil {
		logging.WarnWithContext(j.logger, "trim purge history failed", "purgelog_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "purge history grows past retention"),
			logging.String(logging.FieldErrorHint, "check purge.db for corruption"),
		)
	}
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(
		ctx,
		`SELECT pass_id, started_at, duration_ms, scanned, kept, deleted,
                protected, failed, bytes_before, bytes_after, budget
         FROM purge_runs ORDER BY started_at DESC, pass_id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query purge runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(
			&run.PassID, &startedAt, &durationMS, &run.Scanned, &run.Kept, &run.Deleted,
			&run.Protected, &run.Failed, &run.BytesBefore, &run.BytesAfter, &run.Budget,
		); err != nil {
			return nil, fmt.Errorf("scan purge run: %w", err)
		}
		run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Count returns the number of journaled runs.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var count int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM purge_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count purge runs: %w", err)
	}
	return count, nil
}

// Prune deletes all but the newest keep runs and returns the number removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := j.db.ExecContext(
		ctx,
		`DELETE FROM purge_runs WHERE pass_id NOT IN (
            SELECT pass_id FROM purge_runs ORDER BY started_at DESC, pass_id DESC LIMIT ?
        )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune purge runs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}
