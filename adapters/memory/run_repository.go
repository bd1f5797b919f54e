// Package memory provides in-process repositories for the CLI and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"neurodyn/domain/core"
	"neurodyn/domain/run"
	"neurodyn/ports"
)

// RunRepositoryImpl keeps run results in a map guarded by a RWMutex
type RunRepositoryImpl struct {
	mu   sync.RWMutex
	runs map[core.RunID]*run.Result
}

// NewRunRepository creates an empty in-memory run repository
func NewRunRepository() ports.RunRepository {
	return &RunRepositoryImpl{runs: make(map[core.RunID]*run.Result)}
}

// Save stores a copy of result, replacing any run with the same ID
func (r *RunRepositoryImpl) Save(ctx context.Context, result *run.Result) error {
	if result == nil || core.ID(result.ID).IsEmpty() {
		return core.NewConfigurationError("run", "must have an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *result
	r.runs[result.ID] = &cp
	return nil
}

// GetByID returns the run or core.ErrRunNotFound
func (r *RunRepositoryImpl) GetByID(ctx context.Context, id core.RunID) (*run.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.runs[id]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	cp := *res
	return &cp, nil
}

// GetByFingerprint returns the most recent run with the fingerprint
func (r *RunRepositoryImpl) GetByFingerprint(ctx context.Context, fingerprint core.InputHash) (*run.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *run.Result
	for _, res := range r.runs {
		if res.Fingerprint != fingerprint {
			continue
		}
		if best == nil || best.CreatedAt.Before(res.CreatedAt) {
			best = res
		}
	}
	if best == nil {
		return nil, core.ErrRunNotFound
	}
	cp := *best
	return &cp, nil
}

// List returns runs newest first
func (r *RunRepositoryImpl) List(ctx context.Context, filters ports.RunFilters) ([]*run.Result, error) {
	r.mu.RLock()
	out := make([]*run.Result, 0, len(r.runs))
	for _, res := range r.runs {
		if filters.SubjectID != "" && res.SubjectID != filters.SubjectID {
			continue
		}
		if filters.Group != "" && res.Group != filters.Group {
			continue
		}
		cp := *res
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Time().Equal(out[j].CreatedAt.Time()) {
			return out[i].ID > out[j].ID
		}
		return out[j].CreatedAt.Before(out[i].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return []*run.Result{}, nil
		}
		out = out[filters.Offset:]
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}
