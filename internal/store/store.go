// Package store persists run artifacts so past briefs stay inspectable:
// the ground-truth bundle, each provider's final narrative, and the audit
// findings. Persistence is optional; without a DSN the pipeline runs
// file-only.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	ID           string          `db:"id" json:"id"`
	RunDate      string          `db:"run_date" json:"run_date"`
	Status       string          `db:"status" json:"status"`
	Bundle       json.RawMessage `db:"bundle" json:"bundle"`
	Narratives   json.RawMessage `db:"narratives" json:"narratives"`
	Findings     json.RawMessage `db:"findings" json:"findings"`
	FindingCount int             `db:"finding_count" json:"finding_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// RunRepository stores and retrieves run records.
type RunRepository interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	LatestRun(ctx context.Context) (*RunRecord, error)
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
}
