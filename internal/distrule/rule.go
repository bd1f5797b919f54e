// Package distrule implements the exponential distance rule (EDR) of
// structural connectivity: pairwise distances, the exp(-lambda*d) decay model,
// distance-binned weight statistics, the decay-rate fit and the long-range
// connection matrix built from outliers above the binned envelope.
//
// Every function is a pure transform. Inputs are never modified and each call
// returns freshly allocated matrices.
package distrule

import (
	"math"

	"neurodyn/domain/core"

	"gonum.org/v1/gonum/mat"
)

// DistanceRule computes the EDR decay model and fits its rate parameter.
type DistanceRule struct {
	LambdaVal float64
}

// NewDistanceRule creates a distance rule with the given decay rate
func NewDistanceRule(lambda float64) *DistanceRule {
	return &DistanceRule{LambdaVal: lambda}
}

// Compute returns the pairwise distance matrix of coords (N×3) and the decay
// matrix exp(-LambdaVal*rr).
func (r *DistanceRule) Compute(coords mat.Matrix) (rr, cExp *mat.Dense, err error) {
	if err := validateLambda(r.LambdaVal); err != nil {
		return nil, nil, err
	}
	rr, err = PairwiseDistances(coords)
	if err != nil {
		return nil, nil, err
	}
	return rr, decayMatrix(rr, r.LambdaVal), nil
}

// PairwiseDistances returns the N×N Euclidean distance matrix of an N×3
// coordinate set. The result is exactly symmetric with a zero diagonal.
func PairwiseDistances(coords mat.Matrix) (*mat.Dense, error) {
	if coords == nil {
		return nil, core.NewConfigurationError("coordinates", "are required")
	}
	n, c := coords.Dims()
	if c != 3 {
		return nil, core.NewShapeError("coordinates", n, 3, n, c)
	}
	if err := checkFinite("coordinates", coords); err != nil {
		return nil, err
	}

	rr := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := coords.At(i, 0) - coords.At(j, 0)
			dy := coords.At(i, 1) - coords.At(j, 1)
			dz := coords.At(i, 2) - coords.At(j, 2)
			d := math.Sqrt(dx*dx + dy*dy + dz*dz)
			rr.Set(i, j, d)
			rr.Set(j, i, d)
		}
	}
	return rr, nil
}

func decayMatrix(rr mat.Matrix, lambda float64) *mat.Dense {
	r, c := rr.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return math.Exp(-lambda * v)
	}, rr)
	return out
}

func validateLambda(lambda float64) error {
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) || lambda <= 0 {
		return core.NewConfigurationError("lambda_val", "must be a positive finite number")
	}
	return nil
}

// checkSquare verifies m is n×n and returns n.
func checkSquare(what string, m mat.Matrix) (int, error) {
	if m == nil {
		return 0, core.NewConfigurationError(what, "is required")
	}
	r, c := m.Dims()
	if r != c {
		return 0, core.NewShapeError(what, r, r, r, c)
	}
	return r, nil
}

// checkSameShape verifies b has the shape of a.
func checkSameShape(whatA string, a mat.Matrix, whatB string, b mat.Matrix) error {
	if b == nil {
		return core.NewConfigurationError(whatB, "is required")
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return core.NewShapeError(whatB+" (vs "+whatA+")", ar, ac, br, bc)
	}
	return nil
}

func checkFinite(what string, m mat.Matrix) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nonFinite(what, i, j, v)
			}
		}
	}
	return nil
}
