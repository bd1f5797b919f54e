package ports

import (
	"context"

	"neurodyn/domain/core"
	"neurodyn/domain/run"
)

// RunRepository persists distance-rule run results
type RunRepository interface {
	Save(ctx context.Context, result *run.Result) error
	GetByID(ctx context.Context, id core.RunID) (*run.Result, error)
	// GetByFingerprint returns the most recent result with the fingerprint,
	// or an error matching core.ErrRunNotFound.
	GetByFingerprint(ctx context.Context, fingerprint core.InputHash) (*run.Result, error)
	List(ctx context.Context, filters RunFilters) ([]*run.Result, error)
}

// RunFilters for querying runs
type RunFilters struct {
	SubjectID core.SubjectID
	Group     core.GroupLabel
	Limit     int
	Offset    int
}
