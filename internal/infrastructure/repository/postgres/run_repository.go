package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

// RunRepository mirrors finished run reports into Postgres so runs can be
// queried across hosts.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent pipeline invocations.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	run_id TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	dry_run BOOLEAN NOT NULL DEFAULT FALSE,
	input_files INTEGER NOT NULL,
	success INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	duplicates INTEGER NOT NULL,
	manual_review INTEGER NOT NULL,
	report JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_run_files (
	run_id TEXT NOT NULL REFERENCES pipeline_runs(run_id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	state TEXT NOT NULL,
	stage TEXT NOT NULL,
	entry_id TEXT,
	category TEXT,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, source)
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_pipeline_run_files_entry ON pipeline_run_files(entry_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveReport writes the run row and its per-file outcomes in one transaction.
// Saving the same run twice is refused.
func (r *RunRepository) SaveReport(ctx context.Context, report *domain.RunReport) error {
	if report == nil {
		return domain.WrapError(domain.ErrInvalidInput, "save run report", errors.New("nil report"))
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO pipeline_runs (
	run_id, started_at, completed_at, dry_run, input_files, success, failed, skipped, duplicates, manual_review, report
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (run_id) DO NOTHING
`,
		report.RunID, report.StartedAt, report.CompletedAt, report.DryRun, report.InputFiles,
		report.Results.Success, report.Results.Failed, report.Results.Skipped,
		report.Results.Duplicates, report.Results.ManualReview, payload,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert run rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "save run report", fmt.Errorf("run %s already stored", report.RunID))
	}

	for _, o := range report.Outcomes {
		_, err := tx.ExecContext(ctx, `
INSERT INTO pipeline_run_files (run_id, source, state, stage, entry_id, category, duration_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, report.RunID, o.Source, string(o.State), o.Stage, nullString(o.RecordID), nullString(o.Category), o.DurationMS)
		if err != nil {
			return fmt.Errorf("insert run file %s: %w", o.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report tx: %w", err)
	}
	return nil
}

// LatestRunID returns the most recently started run.
func (r *RunRepository) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
SELECT run_id FROM pipeline_runs ORDER BY started_at DESC LIMIT 1
`).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrRecordNotFound, "latest run", errors.New("no runs stored"))
		}
		return "", fmt.Errorf("scan latest run: %w", err)
	}
	return id, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
