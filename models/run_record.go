package models

import (
	"time"

	"neurodyn/domain/core"
	"neurodyn/domain/run"
)

// RunRecord is the distance_rule_runs row
type RunRecord struct {
	ID           string                   `db:"id"`
	SubjectID    string                   `db:"subject_id"`
	GroupLabel   string                   `db:"group_label"`
	Fingerprint  string                   `db:"fingerprint"`
	Params       JSONB[run.Params]        `db:"params"`
	Regions      int                      `db:"regions"`
	FittedLambda float64                  `db:"fitted_lambda"`
	Lambda       float64                  `db:"lambda"`
	Bins         JSONB[[]run.BinRow]      `db:"bins"`
	LongRange    JSONB[[]run.Edge]        `db:"long_range"`
	Connections  int                      `db:"connections"`
	TotalPairs   int                      `db:"total_pairs"`
	Percent      float64                  `db:"percent"`
	Matrices     JSONB[[]run.MatrixStats] `db:"matrices"`
	CreatedAt    time.Time                `db:"created_at"`
}

// NewRunRecord converts a domain result into a row
func NewRunRecord(r *run.Result) *RunRecord {
	return &RunRecord{
		ID:           r.ID.String(),
		SubjectID:    r.SubjectID.String(),
		GroupLabel:   r.Group.String(),
		Fingerprint:  r.Fingerprint.String(),
		Params:       NewJSONB(r.Params),
		Regions:      r.Regions,
		FittedLambda: r.FittedLambda,
		Lambda:       r.Lambda,
		Bins:         NewJSONB(r.Bins),
		LongRange:    NewJSONB(r.LongRange),
		Connections:  r.Connections,
		TotalPairs:   r.TotalPairs,
		Percent:      r.Percent,
		Matrices:     NewJSONB(r.Matrices),
		CreatedAt:    r.CreatedAt.Time(),
	}
}

// ToResult converts the row back into a domain result
func (rec *RunRecord) ToResult() *run.Result {
	return &run.Result{
		ID:           core.RunID(rec.ID),
		SubjectID:    core.SubjectID(rec.SubjectID),
		Group:        core.GroupLabel(rec.GroupLabel),
		Fingerprint:  core.InputHash(rec.Fingerprint),
		Params:       rec.Params.V,
		Regions:      rec.Regions,
		FittedLambda: rec.FittedLambda,
		Lambda:       rec.Lambda,
		Bins:         rec.Bins.V,
		LongRange:    rec.LongRange.V,
		Connections:  rec.Connections,
		TotalPairs:   rec.TotalPairs,
		Percent:      rec.Percent,
		Matrices:     rec.Matrices.V,
		CreatedAt:    core.NewTimestamp(rec.CreatedAt.UTC()),
	}
}
