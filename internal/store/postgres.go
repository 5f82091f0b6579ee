package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Schema creates the runs table. Applied idempotently on connect.
const Schema = `
CREATE TABLE IF NOT EXISTS macrobrief_runs (
    id            UUID PRIMARY KEY,
    run_date      DATE NOT NULL,
    status        TEXT NOT NULL,
    bundle        JSONB NOT NULL,
    narratives    JSONB NOT NULL DEFAULT '[]',
    findings      JSONB NOT NULL DEFAULT '[]',
    finding_count INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_macrobrief_runs_run_date ON macrobrief_runs (run_date DESC);
`

// PostgresRunRepo is the sqlx-backed run repository.
type PostgresRunRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresRunRepo connects, applies the schema, and returns the repo.
func NewPostgresRunRepo(dsn string) (*PostgresRunRepo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply run schema: %w", err)
	}
	return &PostgresRunRepo{db: db, timeout: 10 * time.Second}, nil
}

// Close releases the pool.
func (r *PostgresRunRepo) Close() error { return r.db.Close() }

// SaveRun upserts one run record keyed by ID.
func (r *PostgresRunRepo) SaveRun(ctx context.Context, rec *RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO macrobrief_runs (id, run_date, status, bundle, narratives, findings, finding_count, created_at)
		VALUES (:id, :run_date, :status, :bundle, :narratives, :findings, :finding_count, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			narratives = EXCLUDED.narratives,
			findings = EXCLUDED.findings,
			finding_count = EXCLUDED.finding_count`

	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

// LatestRun returns the most recent run, or nil when none exist.
func (r *PostgresRunRepo) LatestRun(ctx context.Context) (*RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rec RunRecord
	const query = `SELECT * FROM macrobrief_runs ORDER BY run_date DESC, created_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &rec, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	return &rec, nil
}

// GetRun returns one run by ID, or nil when absent.
func (r *PostgresRunRepo) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rec RunRecord
	const query = `SELECT * FROM macrobrief_runs WHERE id = $1`
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *PostgresRunRepo) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var recs []*RunRecord
	const query = `SELECT * FROM macrobrief_runs ORDER BY run_date DESC, created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return recs, nil
}
