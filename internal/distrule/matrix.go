package distrule

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// NormalizeByMax returns sc divided by its global maximum. NaN entries are
// carried through unchanged and ignored when taking the maximum. A matrix whose
// maximum is not positive is returned as an unscaled copy.
func NormalizeByMax(sc mat.Matrix) (*mat.Dense, error) {
	n, err := checkSquare("SC", sc)
	if err != nil {
		return nil, err
	}
	out := mat.DenseCopyOf(sc)
	peak := math.Inf(-1)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := out.At(i, j)
			if math.IsInf(v, 0) {
				return nil, nonFinite("SC", i, j, v)
			}
			if v > peak {
				peak = v
			}
		}
	}
	if peak > 0 {
		out.Scale(1/peak, out)
	}
	return out, nil
}

// MatrixSummary holds the element statistics printed for diagnostic matrices.
type MatrixSummary struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// SummarizeMatrix computes min, max, mean and population std over every element.
func SummarizeMatrix(m mat.Matrix) MatrixSummary {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		nan := math.NaN()
		return MatrixSummary{Min: nan, Max: nan, Mean: nan, Std: nan}
	}
	vals := mat.DenseCopyOf(m).RawMatrix().Data
	mean, std := stat.PopMeanStdDev(vals, nil)
	return MatrixSummary{
		Min:  floats.Min(vals),
		Max:  floats.Max(vals),
		Mean: mean,
		Std:  std,
	}
}

// MaskComparison compares the off-diagonal long-range masks (entries > 0) of
// two matrices of equal shape.
type MaskComparison struct {
	CountA       int     `json:"count_a"`
	CountB       int     `json:"count_b"`
	PercentA     float64 `json:"percent_a"`
	PercentB     float64 `json:"percent_b"`
	Intersection int     `json:"intersection"`
	Union        int     `json:"union"`
	Jaccard      float64 `json:"jaccard"`
}

// CompareMasks computes the connection counts of both masks and their Jaccard
// overlap. Two empty masks have a Jaccard overlap of 0.
func CompareMasks(a, b mat.Matrix) (MaskComparison, error) {
	n, err := checkSquare("mask A", a)
	if err != nil {
		return MaskComparison{}, err
	}
	if err := checkSameShape("mask A", a, "mask B", b); err != nil {
		return MaskComparison{}, err
	}

	var cmp MaskComparison
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if p == q {
				continue
			}
			inA, inB := a.At(p, q) > 0, b.At(p, q) > 0
			if inA {
				cmp.CountA++
			}
			if inB {
				cmp.CountB++
			}
			if inA && inB {
				cmp.Intersection++
			}
			if inA || inB {
				cmp.Union++
			}
		}
	}
	if total := n * (n - 1); total > 0 {
		cmp.PercentA = 100 * float64(cmp.CountA) / float64(total)
		cmp.PercentB = 100 * float64(cmp.CountB) / float64(total)
	}
	if cmp.Union > 0 {
		cmp.Jaccard = float64(cmp.Intersection) / float64(cmp.Union)
	}
	return cmp, nil
}
