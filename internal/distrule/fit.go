package distrule

import (
	"fmt"
	"math"

	"neurodyn/domain/core"

	"gonum.org/v1/gonum/optimize"
)

// FitOptions configures the exponential decay fit.
type FitOptions struct {
	// InitialLambda is the starting guess handed to the optimizer.
	InitialLambda float64 `json:"initial_lambda" yaml:"initial_lambda"`
	// MaxIterations caps the optimizer's major iterations; 0 keeps gonum's default.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
}

// DefaultFitOptions returns the usual starting point
func DefaultFitOptions() FitOptions {
	return FitOptions{InitialLambda: 0.1, MaxIterations: 1000}
}

// FitExponential fits f(d) = means[0]*exp(-lambda*d) to (centers, means) by
// nonlinear least squares and returns lambda. Bins whose mean is NaN are
// skipped. The amplitude is pinned to the first bin's mean, so a NaN first bin
// is a fit error.
//
// L-BFGS runs first. Where it stops short of a minimum, Nelder-Mead restarts
// from InitialLambda. The result must be a strict local minimum of the squared
// error at a relative resolution of minimumStep, otherwise the fit fails with
// ErrFit.
func (r *DistanceRule) FitExponential(centers, means []float64, opts FitOptions) (float64, error) {
	return FitExponential(centers, means, opts)
}

// FitExponential is the stateless form of DistanceRule.FitExponential.
func FitExponential(centers, means []float64, opts FitOptions) (float64, error) {
	if len(centers) != len(means) {
		return 0, core.NewShapeError("bin means", 1, len(centers), 1, len(means))
	}
	if len(means) == 0 || !isFinite(means[0]) {
		return 0, core.NewFitError("first bin mean is not finite", nil)
	}
	if !isFinite(opts.InitialLambda) {
		return 0, core.NewConfigurationError("initial_lambda", "must be finite")
	}

	amp := means[0]
	xs := make([]float64, 0, len(means))
	ys := make([]float64, 0, len(means))
	for i, m := range means {
		if !isFinite(m) || !isFinite(centers[i]) {
			continue
		}
		xs = append(xs, centers[i])
		ys = append(ys, m)
	}
	if len(xs) < 2 {
		return 0, core.NewFitError("fewer than 2 non-NaN bins", nil)
	}

	sse := func(lambda float64) float64 {
		sum := 0.0
		for i, d := range xs {
			res := amp*math.Exp(-lambda*d) - ys[i]
			sum += res * res
		}
		return sum
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return sse(x[0]) },
		Grad: func(grad, x []float64) {
			g := 0.0
			for i, d := range xs {
				e := amp * math.Exp(-x[0]*d)
				g += 2 * (e - ys[i]) * (-d * e)
			}
			grad[0] = g
		},
	}

	lambda, err := search(problem, opts.InitialLambda, opts.MaxIterations, &optimize.LBFGS{})
	if !isMinimum(sse, lambda) {
		lambda, err = search(problem, opts.InitialLambda, opts.MaxIterations, &optimize.NelderMead{})
	}
	if !isMinimum(sse, lambda) {
		if err == nil {
			err = fmt.Errorf("stopped at lambda=%g", lambda)
		}
		return 0, core.NewFitError("optimizer did not reach a minimum", err)
	}
	if lambda <= 0 {
		return 0, core.NewFitError("fitted lambda is not positive", nil)
	}
	return lambda, nil
}

// minimumStep is the relative step at which isMinimum probes both sides.
const minimumStep = 1e-4

// search runs method from start and returns the best lambda it reached. Line
// searches that stall on the flat floor around the optimum report an error
// but still return their best location.
func search(p optimize.Problem, start float64, maxIter int, method optimize.Method) (float64, error) {
	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: 1e-12,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-15,
			Relative:   1e-15,
			Iterations: 50,
		},
	}
	result, err := optimize.Minimize(p, []float64{start}, settings, method)
	if result == nil || len(result.X) == 0 {
		return math.NaN(), err
	}
	if err == nil && !converged(result.Status) {
		err = fmt.Errorf("optimizer stopped with status %s", result.Status)
	}
	return result.X[0], err
}

// isMinimum reports whether both neighbours of lambda at a relative step of
// minimumStep are strictly above f(lambda). A plateau is not a minimum.
func isMinimum(f func(float64) float64, lambda float64) bool {
	if !isFinite(lambda) {
		return false
	}
	f0 := f(lambda)
	if !isFinite(f0) {
		return false
	}
	h := minimumStep * math.Max(math.Abs(lambda), 1e-3)
	return f(lambda-h) > f0 && f(lambda+h) > f0
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionThreshold, optimize.FunctionConvergence,
		optimize.GradientThreshold, optimize.StepConvergence, optimize.MethodConverge:
		return true
	}
	return false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
