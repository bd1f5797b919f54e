package migration

import (
	"context"

	"neurodyn/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every step is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, step := range r.steps() {
		if _, err := db.ExecContext(ctx, step.sql); err != nil {
			return errors.Wrapf(err, "failed to %s", step.name)
		}
	}
	return nil
}

// Reset drops every table owned by the migrations
func (r *MigrationRunner) Reset(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS distance_rule_runs CASCADE`); err != nil {
		return errors.Wrap(err, "failed to drop distance_rule_runs")
	}
	return nil
}

type step struct {
	name string
	sql  string
}

func (r *MigrationRunner) steps() []step {
	return []step{
		{"create distance_rule_runs table", `
			CREATE TABLE IF NOT EXISTS distance_rule_runs (
				id UUID PRIMARY KEY,
				subject_id VARCHAR(255) NOT NULL,
				group_label VARCHAR(50) NOT NULL DEFAULT '',
				fingerprint CHAR(64) NOT NULL,
				params JSONB NOT NULL,
				regions INTEGER NOT NULL,
				fitted_lambda DOUBLE PRECISION NOT NULL DEFAULT 0,
				lambda DOUBLE PRECISION NOT NULL,
				bins JSONB NOT NULL DEFAULT '[]',
				long_range JSONB NOT NULL DEFAULT '[]',
				connections INTEGER NOT NULL DEFAULT 0,
				total_pairs INTEGER NOT NULL DEFAULT 0,
				percent DOUBLE PRECISION NOT NULL DEFAULT 0,
				matrices JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)
		`},
		{"create fingerprint index", `
			CREATE INDEX IF NOT EXISTS idx_distance_rule_runs_fingerprint
			ON distance_rule_runs (fingerprint, created_at DESC)
		`},
		{"create subject index", `
			CREATE INDEX IF NOT EXISTS idx_distance_rule_runs_subject
			ON distance_rule_runs (subject_id, created_at DESC)
		`},
		{"create group index", `
			CREATE INDEX IF NOT EXISTS idx_distance_rule_runs_group
			ON distance_rule_runs (group_label)
		`},
	}
}
