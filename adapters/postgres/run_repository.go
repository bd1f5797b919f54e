package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"neurodyn/domain/core"
	"neurodyn/domain/run"
	"neurodyn/models"
	"neurodyn/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const runColumns = `id, subject_id, group_label, fingerprint, params, regions, fitted_lambda, lambda,
	bins, long_range, connections, total_pairs, percent, matrices, created_at`

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// Save inserts the run, or overwrites it when the ID already exists
func (r *RunRepositoryImpl) Save(ctx context.Context, result *run.Result) error {
	if result == nil || core.ID(result.ID).IsEmpty() {
		return core.NewConfigurationError("run", "must have an id")
	}
	if _, err := uuid.Parse(result.ID.String()); err != nil {
		return core.NewConfigurationError("run id", "must be a UUID")
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO distance_rule_runs (`+runColumns+`)
		VALUES (:id, :subject_id, :group_label, :fingerprint, :params, :regions, :fitted_lambda, :lambda,
			:bins, :long_range, :connections, :total_pairs, :percent, :matrices, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			subject_id = EXCLUDED.subject_id,
			group_label = EXCLUDED.group_label,
			fingerprint = EXCLUDED.fingerprint,
			params = EXCLUDED.params,
			regions = EXCLUDED.regions,
			fitted_lambda = EXCLUDED.fitted_lambda,
			lambda = EXCLUDED.lambda,
			bins = EXCLUDED.bins,
			long_range = EXCLUDED.long_range,
			connections = EXCLUDED.connections,
			total_pairs = EXCLUDED.total_pairs,
			percent = EXCLUDED.percent,
			matrices = EXCLUDED.matrices
	`, models.NewRunRecord(result))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.ID, err)
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *RunRepositoryImpl) GetByID(ctx context.Context, id core.RunID) (*run.Result, error) {
	if _, err := uuid.Parse(id.String()); err != nil {
		return nil, core.ErrRunNotFound
	}
	var rec models.RunRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+runColumns+` FROM distance_rule_runs WHERE id = $1`, id.String())
	if err != nil {
		return nil, notFound(err)
	}
	return rec.ToResult(), nil
}

// GetByFingerprint retrieves the most recent run with the fingerprint
func (r *RunRepositoryImpl) GetByFingerprint(ctx context.Context, fingerprint core.InputHash) (*run.Result, error) {
	var rec models.RunRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT `+runColumns+`
		FROM distance_rule_runs
		WHERE fingerprint = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, fingerprint.String())
	if err != nil {
		return nil, notFound(err)
	}
	return rec.ToResult(), nil
}

// List returns runs newest first, optionally filtered by subject and group
func (r *RunRepositoryImpl) List(ctx context.Context, filters ports.RunFilters) ([]*run.Result, error) {
	query, args := buildListQuery(filters)

	var recs []models.RunRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	out := make([]*run.Result, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].ToResult())
	}
	return out, nil
}

func buildListQuery(filters ports.RunFilters) (string, []interface{}) {
	var where []string
	var args []interface{}
	if filters.SubjectID != "" {
		args = append(args, filters.SubjectID.String())
		where = append(where, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if filters.Group != "" {
		args = append(args, filters.Group.String())
		where = append(where, fmt.Sprintf("group_label = $%d", len(args)))
	}

	query := `SELECT ` + runColumns + ` FROM distance_rule_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrRunNotFound
	}
	return err
}
