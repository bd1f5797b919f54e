package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"neurodyn/domain/core"
	"neurodyn/domain/run"
	"neurodyn/internal"
	"neurodyn/internal/distrule"
	"neurodyn/internal/errors"
	"neurodyn/ports"

	"gonum.org/v1/gonum/mat"
)

// DistanceRuleService runs the distance-rule pipeline for one subject:
// normalise SC, build rr and c_exp, bin, fit lambda, extract Clong and
// assemble EDR+Clong. Results are cached by input fingerprint.
type DistanceRuleService struct {
	repo      ports.RunRepository
	logger    *internal.Logger
	workers   int
	publisher ports.EventPublisher

	mu    sync.Mutex
	cache map[core.InputHash]*Outcome
}

// ServiceOption configures a DistanceRuleService
type ServiceOption func(*DistanceRuleService)

// WithLogger sets the service logger
func WithLogger(logger *internal.Logger) ServiceOption {
	return func(s *DistanceRuleService) { s.logger = logger }
}

// WithWorkers bounds the number of subjects RunCohort computes concurrently
func WithWorkers(n int) ServiceOption {
	return func(s *DistanceRuleService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPublisher sends cohort progress events to p
func WithPublisher(p ports.EventPublisher) ServiceOption {
	return func(s *DistanceRuleService) { s.publisher = p }
}

// NewDistanceRuleService creates the service on top of a run repository
func NewDistanceRuleService(repo ports.RunRepository, opts ...ServiceOption) *DistanceRuleService {
	s := &DistanceRuleService{
		repo:    repo,
		logger:  internal.DefaultLogger,
		workers: 4,
		cache:   make(map[core.InputHash]*Outcome),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunRequest defines the inputs of one subject run
type RunRequest struct {
	SubjectID core.SubjectID
	Group     core.GroupLabel
	Coords    mat.Matrix // N×3
	SC        mat.Matrix // N×N
	Params    run.Params
	// ForceCompute bypasses both the in-process cache and stored runs.
	ForceCompute bool
}

// Outcome is a run result with its dense matrices. Matrices are shared with
// the cache and must be treated as read-only.
type Outcome struct {
	Result   *run.Result
	Matrices *run.Matrices
	Cached   bool
}

func (r RunRequest) validate() error {
	if core.ID(r.SubjectID).IsEmpty() {
		return core.NewConfigurationError("subject_id", "cannot be empty")
	}
	if r.Coords == nil {
		return core.NewConfigurationError("coordinates", "are required")
	}
	if r.SC == nil {
		return core.NewConfigurationError("SC", "is required")
	}
	return r.Params.Validate()
}

// Run computes one subject, or returns the cached outcome for identical inputs
// unless ForceCompute is set.
func (s *DistanceRuleService) Run(ctx context.Context, req RunRequest) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid run request")
	}
	log := s.logger.With("subject", req.SubjectID.String())
	fp := run.Fingerprint(req.SubjectID, req.Group, req.Params, req.Coords, req.SC)

	if !req.ForceCompute {
		if out := s.lookup(ctx, req, fp); out != nil {
			log.Debug("cache hit for fingerprint %s", fp.String()[:12])
			return out, nil
		}
	}

	start := time.Now()
	result, matrices, err := s.compute(req, fp)
	if err != nil {
		if core.IsCallerError(err) {
			log.Debug("distance rule rejected input: %v", err)
		} else {
			log.Warn("distance rule failed: %v", err)
		}
		return nil, errors.Wrapf(err, "subject %s", req.SubjectID)
	}
	if err := s.repo.Save(ctx, result); err != nil {
		return nil, errors.DatabaseError("failed to save run", err)
	}

	out := &Outcome{Result: result, Matrices: matrices}
	s.remember(fp, out)
	log.Info("lambda=%.4f long-range=%d/%d (%.2f%%) in %s",
		result.Lambda, result.Connections, result.TotalPairs, result.Percent, time.Since(start).Round(time.Millisecond))
	return out, nil
}

// lookup checks the in-process cache, then stored runs. A stored run is
// rehydrated by recomputing rr and c_exp and rebuilding Clong from its edges.
func (s *DistanceRuleService) lookup(ctx context.Context, req RunRequest, fp core.InputHash) *Outcome {
	s.mu.Lock()
	out, ok := s.cache[fp]
	s.mu.Unlock()
	if ok {
		cp := *out
		cp.Cached = true
		return &cp
	}

	stored, err := s.repo.GetByFingerprint(ctx, fp)
	if err != nil {
		if !core.IsNotFoundError(err) {
			s.logger.Warn("run lookup failed for %s: %v", req.SubjectID, err)
		}
		return nil
	}
	matrices, err := restoreMatrices(req.Coords, stored)
	if err != nil {
		s.logger.Warn("stored run %s could not be restored: %v", stored.ID, err)
		return nil
	}
	out = &Outcome{Result: stored, Matrices: matrices}
	s.remember(fp, out)
	cp := *out
	cp.Cached = true
	return &cp
}

func (s *DistanceRuleService) publish(ev run.CohortEvent) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}

func (s *DistanceRuleService) remember(fp core.InputHash, out *Outcome) {
	s.mu.Lock()
	s.cache[fp] = out
	s.mu.Unlock()
}

// Get returns a stored run by ID
func (s *DistanceRuleService) Get(ctx context.Context, id core.RunID) (*run.Result, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns stored runs
func (s *DistanceRuleService) List(ctx context.Context, filters ports.RunFilters) ([]*run.Result, error) {
	return s.repo.List(ctx, filters)
}

func (s *DistanceRuleService) compute(req RunRequest, fp core.InputHash) (*run.Result, *run.Matrices, error) {
	p := req.Params

	sc := mat.DenseCopyOf(req.SC)
	if !p.SkipNormalize {
		var err error
		if sc, err = distrule.NormalizeByMax(req.SC); err != nil {
			return nil, nil, err
		}
	}

	rule := distrule.NewDistanceRule(p.Lambda)
	rr, cExp, err := rule.Compute(req.Coords)
	if err != nil {
		return nil, nil, err
	}

	var weights mat.Matrix = sc
	if p.Histogram == run.HistogramDecay {
		weights = cExp
	}
	bins, err := rule.ComputeHist(weights, rr, p.Bins, histOptions(p))
	if err != nil {
		return nil, nil, err
	}

	lambda, fitted := p.Lambda, 0.0
	if !p.SkipFit {
		fitted, err = rule.FitExponential(bins.Centers(), bins.Means, distrule.FitOptions{
			InitialLambda: p.InitialLambda,
			MaxIterations: p.MaxIterations,
		})
		if err != nil {
			return nil, nil, err
		}
		lambda = fitted
	}

	ld := &distrule.LongDistance{LambdaVal: lambda, NSTD: p.NSTD}
	opts := clongOptions(p)
	report, err := ld.BinReport(rr, sc, bins, opts)
	if err != nil {
		return nil, nil, err
	}
	clong, err := ld.ComputeClong(rr, sc, bins, opts)
	if err != nil {
		return nil, nil, err
	}
	edr, err := ld.Compute(rr, clong)
	if err != nil {
		return nil, nil, err
	}

	summary := distrule.Summarize(clong)
	n, _ := rr.Dims()
	result := &run.Result{
		ID:           core.RunID(core.NewID()),
		SubjectID:    req.SubjectID,
		Group:        req.Group,
		Fingerprint:  fp,
		Params:       p,
		Regions:      n,
		FittedLambda: fitted,
		Lambda:       lambda,
		Bins:         binRows(bins, report),
		LongRange:    longRangeEdges(clong),
		Connections:  summary.Connections,
		TotalPairs:   summary.Total,
		Percent:      summary.Percent,
		Matrices: []run.MatrixStats{
			matrixStats("c_exp", cExp),
			matrixStats("Clong", clong),
			matrixStats("EDR+Clong", edr),
		},
		CreatedAt: core.Now(),
	}
	return result, &run.Matrices{RR: rr, CExp: cExp, Clong: clong, EDRClong: edr}, nil
}

func histOptions(p run.Params) distrule.HistOptions {
	opts := distrule.DefaultHistOptions()
	opts.IncludeDiagonal = !p.ExcludeDiagonal
	opts.IgnoreNaNs = p.IgnoreNaNs
	if p.Edges != "" {
		opts.Edges = distrule.EdgeConvention(p.Edges)
	}
	return opts
}

func clongOptions(p run.Params) distrule.ClongOptions {
	return distrule.ClongOptions{
		NRini:     p.NRini,
		NRfin:     p.NRfin,
		DistRange: p.DistRange,
		A1:        p.A1,
		Binary:    p.Binary,
	}
}

func binRows(bins *distrule.BinStats, report []distrule.BinConnections) []run.BinRow {
	rows := make([]run.BinRow, bins.NumBins())
	for i := range rows {
		rows[i] = run.BinRow{
			Bin:   i + 1,
			Lo:    bins.Edges[i],
			Hi:    bins.Edges[i+1],
			Count: bins.Counts[i],
			Mean:  run.Stat(bins.Means[i]),
			Std:   run.Stat(bins.Stds[i]),
			Max:   run.Stat(bins.Maxs[i]),
		}
	}
	for _, b := range report {
		row := &rows[b.Bin-1]
		row.Selected = true
		row.Threshold = run.Stat(b.Threshold)
		row.Connections = b.Connections
	}
	return rows
}

func longRangeEdges(clong mat.Matrix) []run.Edge {
	n, _ := clong.Dims()
	edges := []run.Edge{}
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if v := clong.At(p, q); p != q && v != 0 {
				edges = append(edges, run.Edge{P: p, Q: q, Weight: v})
			}
		}
	}
	return edges
}

func matrixStats(name string, m mat.Matrix) run.MatrixStats {
	s := distrule.SummarizeMatrix(m)
	return run.MatrixStats{Name: name, Min: s.Min, Max: s.Max, Mean: s.Mean, Std: s.Std}
}

// restoreMatrices rebuilds the dense outputs of a stored run from the
// coordinates it was computed on.
func restoreMatrices(coords mat.Matrix, stored *run.Result) (*run.Matrices, error) {
	rr, cExp, err := distrule.NewDistanceRule(stored.Params.Lambda).Compute(coords)
	if err != nil {
		return nil, err
	}
	n, _ := rr.Dims()
	if n != stored.Regions {
		return nil, fmt.Errorf("%w: stored run has %d regions, coordinates have %d",
			core.ErrShapeMismatch, stored.Regions, n)
	}
	clong := mat.NewDense(n, n, nil)
	for _, e := range stored.LongRange {
		if e.P < 0 || e.P >= n || e.Q < 0 || e.Q >= n {
			return nil, core.NewBoundsError("stored edge (%d,%d) outside %d regions", e.P, e.Q, n)
		}
		clong.Set(e.P, e.Q, e.Weight)
	}
	edr, err := (&distrule.LongDistance{LambdaVal: stored.Lambda}).Compute(rr, clong)
	if err != nil {
		return nil, err
	}
	return &run.Matrices{RR: rr, CExp: cExp, Clong: clong, EDRClong: edr}, nil
}
