package app

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"neurodyn/domain/core"
	"neurodyn/domain/run"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// SubjectInput is one subject of a cohort
type SubjectInput struct {
	ID    core.SubjectID
	Group core.GroupLabel
	SC    mat.Matrix
}

// CohortRequest runs every subject on shared coordinates and parameters
type CohortRequest struct {
	// ID tags progress events; one is generated when empty.
	ID           core.CohortID
	Coords       mat.Matrix
	Subjects     []SubjectInput
	Params       run.Params
	ForceCompute bool
}

// SubjectOutcome holds either the outcome or the error of one subject
type SubjectOutcome struct {
	SubjectID core.SubjectID
	Group     core.GroupLabel
	Outcome   *Outcome
	Err       error
}

// GroupSummary aggregates the successful runs of one group. Means and
// population standard deviations are NaN when no subject succeeded.
// FitFailures counts the failed subjects whose decay fit had no positive
// minimum, as opposed to unreadable or malformed input.
type GroupSummary struct {
	Group           core.GroupLabel `json:"group"`
	Subjects        int             `json:"subjects"`
	Failed          int             `json:"failed"`
	FitFailures     int             `json:"fit_failures"`
	LambdaMean      run.Stat        `json:"lambda_mean"`
	LambdaStd       run.Stat        `json:"lambda_std"`
	PercentMean     run.Stat        `json:"percent_mean"`
	PercentStd      run.Stat        `json:"percent_std"`
	ConnectionsMean run.Stat        `json:"connections_mean"`
}

// CohortOutcome lists subject outcomes in request order with group summaries
// in first-seen group order.
type CohortOutcome struct {
	ID       core.CohortID
	Subjects []SubjectOutcome
	Groups   []GroupSummary
}

// RunCohort computes all subjects concurrently, bounded by the service's
// worker count. A failing subject is recorded and does not stop the others;
// only cancellation of ctx aborts the cohort.
func (s *DistanceRuleService) RunCohort(ctx context.Context, req CohortRequest) (*CohortOutcome, error) {
	id := req.ID
	if core.ID(id).IsEmpty() {
		id = core.CohortID(core.NewID())
	}
	total := len(req.Subjects)
	out := &CohortOutcome{ID: id, Subjects: make([]SubjectOutcome, total)}
	var failed atomic.Int64

	// progress serialises publishing so Done increases in event order
	var progress sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, subj := range req.Subjects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.Run(gctx, RunRequest{
				SubjectID:    subj.ID,
				Group:        subj.Group,
				Coords:       req.Coords,
				SC:           subj.SC,
				Params:       req.Params,
				ForceCompute: req.ForceCompute,
			})
			out.Subjects[i] = SubjectOutcome{SubjectID: subj.ID, Group: subj.Group, Outcome: res, Err: err}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
			}
			progress.Lock()
			done++
			s.publish(subjectEvent(id, out.Subjects[i], done, total))
			progress.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Groups = SummarizeGroups(out.Subjects)
	s.publish(run.CohortEvent{
		CohortID:  id,
		EventType: run.EventCohortComplete,
		Done:      total,
		Total:     total,
		Progress:  100,
		Timestamp: time.Now(),
	})
	s.logger.Info("cohort complete: %d subjects, %d failed, %d groups",
		len(req.Subjects), failed.Load(), len(out.Groups))
	return out, nil
}

func subjectEvent(id core.CohortID, so SubjectOutcome, done, total int) run.CohortEvent {
	ev := run.CohortEvent{
		CohortID:  id,
		SubjectID: so.SubjectID,
		Group:     so.Group,
		Done:      done,
		Total:     total,
		Progress:  100 * float64(done) / float64(total),
		Timestamp: time.Now(),
	}
	switch {
	case so.Err != nil:
		ev.EventType = run.EventSubjectFailed
		ev.Error = so.Err.Error()
	case so.Outcome.Cached:
		ev.EventType = run.EventSubjectCached
	default:
		ev.EventType = run.EventSubjectComputed
	}
	if so.Outcome != nil {
		ev.RunID = so.Outcome.Result.ID
		ev.Lambda = so.Outcome.Result.Lambda
	}
	return ev
}

// SummarizeGroups computes per-group mean and population std of the fitted
// lambda and the long-range percentage.
func SummarizeGroups(subjects []SubjectOutcome) []GroupSummary {
	type acc struct {
		lambdas, percents, connections []float64
		failed, fitFailures            int
	}
	var order []core.GroupLabel
	groups := make(map[core.GroupLabel]*acc)
	for _, so := range subjects {
		a, ok := groups[so.Group]
		if !ok {
			a = &acc{}
			groups[so.Group] = a
			order = append(order, so.Group)
		}
		if so.Err != nil || so.Outcome == nil {
			a.failed++
			if core.IsFitError(so.Err) {
				a.fitFailures++
			}
			continue
		}
		r := so.Outcome.Result
		a.lambdas = append(a.lambdas, r.Lambda)
		a.percents = append(a.percents, r.Percent)
		a.connections = append(a.connections, float64(r.Connections))
	}

	summaries := make([]GroupSummary, 0, len(order))
	for _, label := range order {
		a := groups[label]
		lm, ls := meanStd(a.lambdas)
		pm, ps := meanStd(a.percents)
		cm, _ := meanStd(a.connections)
		summaries = append(summaries, GroupSummary{
			Group:           label,
			Subjects:        len(a.lambdas),
			Failed:          a.failed,
			FitFailures:     a.fitFailures,
			LambdaMean:      run.Stat(lm),
			LambdaStd:       run.Stat(ls),
			PercentMean:     run.Stat(pm),
			PercentStd:      run.Stat(ps),
			ConnectionsMean: run.Stat(cm),
		})
	}
	return summaries
}

func meanStd(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return math.NaN(), math.NaN()
	}
	mean, err := stats.Mean(vals)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	std, err := stats.StandardDeviationPopulation(vals)
	if err != nil {
		return mean, math.NaN()
	}
	return mean, std
}
