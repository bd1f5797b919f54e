package distrule

import (
	"math"

	"neurodyn/domain/core"

	"gonum.org/v1/gonum/mat"
)

// DefaultNSTD is the outlier threshold, in standard deviations above the bin
// mean, used for ADNI connectomes.
const DefaultNSTD = 5.0

// LongDistance identifies connections lying far above the distance-binned
// envelope and assembles them into the long-range matrix Clong.
type LongDistance struct {
	LambdaVal float64
	NSTD      float64
}

// NewLongDistance creates an estimator with the default NSTD
func NewLongDistance(lambda float64) *LongDistance {
	return &LongDistance{LambdaVal: lambda, NSTD: DefaultNSTD}
}

// ClongOptions selects the bins and the output form of ComputeClong.
type ClongOptions struct {
	// NRini and NRfin are 1-indexed, inclusive bin numbers.
	NRini int `json:"nr_ini" yaml:"nr_ini"`
	NRfin int `json:"nr_fin" yaml:"nr_fin"`
	// DistRange is the minimum distance (exclusive) of a long-range pair.
	DistRange float64 `json:"dist_range" yaml:"dist_range"`
	// A1 scales the SC weight written into Clong.
	A1 float64 `json:"a1" yaml:"a1"`
	// Binary writes 1 instead of A1*SC for every long-range pair.
	Binary bool `json:"binary" yaml:"binary"`
}

// BinConnections reports the long-range criterion of one bin.
type BinConnections struct {
	Bin         int     `json:"bin"` // 1-indexed
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	Threshold   float64 `json:"threshold"`
	Connections int     `json:"connections"` // off-diagonal only
}

// ComputeClong returns the N×N long-range matrix. A pair (p,q), p != q, is
// included when its distance falls in a bin i within [NRini-1, NRfin-1], its
// SC weight exceeds Means[i] + NSTD*Stds[i] and its distance exceeds
// DistRange. Included pairs carry A1*SC[p][q] (or 1 in binary mode); all
// other entries are zero.
//
// NRini > NRfin selects no bins and yields an all-zero matrix. Bins with a NaN
// statistic never include a pair.
func (l *LongDistance) ComputeClong(rr, sc mat.Matrix, bins *BinStats, opts ClongOptions) (*mat.Dense, error) {
	clong, _, err := l.scan(rr, sc, bins, opts)
	return clong, err
}

// BinReport returns, for every selected bin, its threshold and the number of
// off-diagonal long-range connections it contributes.
func (l *LongDistance) BinReport(rr, sc mat.Matrix, bins *BinStats, opts ClongOptions) ([]BinConnections, error) {
	_, report, err := l.scan(rr, sc, bins, opts)
	return report, err
}

// Compute returns exp(-LambdaVal*rr) + clong. No normalisation is applied.
func (l *LongDistance) Compute(rr, clong mat.Matrix) (*mat.Dense, error) {
	if err := validateLambda(l.LambdaVal); err != nil {
		return nil, err
	}
	if _, err := checkSquare("distance matrix", rr); err != nil {
		return nil, err
	}
	if err := checkSameShape("distance matrix", rr, "Clong", clong); err != nil {
		return nil, err
	}
	out := decayMatrix(rr, l.LambdaVal)
	out.Add(out, clong)
	return out, nil
}

func (l *LongDistance) scan(rr, sc mat.Matrix, bins *BinStats, opts ClongOptions) (*mat.Dense, []BinConnections, error) {
	n, err := checkSquare("distance matrix", rr)
	if err != nil {
		return nil, nil, err
	}
	if err := checkSameShape("distance matrix", rr, "SC", sc); err != nil {
		return nil, nil, err
	}
	if bins == nil {
		return nil, nil, core.NewConfigurationError("bin statistics", "are required")
	}
	if err := bins.validate(); err != nil {
		return nil, nil, err
	}
	if math.IsNaN(l.NSTD) || math.IsInf(l.NSTD, 0) || l.NSTD < 0 {
		return nil, nil, core.NewConfigurationError("NSTD", "must be a non-negative finite number")
	}
	if !isFinite(opts.A1) || math.IsNaN(opts.DistRange) {
		return nil, nil, core.NewConfigurationError("A1/DistRange", "must be finite")
	}

	nr := bins.NumBins()
	if opts.NRini < 1 || opts.NRini > nr+1 {
		return nil, nil, core.NewBoundsError("NRini=%d outside [1, %d]", opts.NRini, nr)
	}
	if opts.NRfin < 0 || opts.NRfin > nr {
		return nil, nil, core.NewBoundsError("NRfin=%d outside [0, %d]", opts.NRfin, nr)
	}

	clong := mat.NewDense(n, n, nil)
	lo, hi := opts.NRini-1, opts.NRfin-1
	if lo > hi {
		return clong, []BinConnections{}, nil
	}

	report := make([]BinConnections, 0, hi-lo+1)
	thresholds := make([]float64, nr)
	for i := lo; i <= hi; i++ {
		thresholds[i] = bins.Means[i] + l.NSTD*bins.Stds[i]
		report = append(report, BinConnections{
			Bin:       i + 1,
			Mean:      bins.Means[i],
			Std:       bins.Stds[i],
			Threshold: thresholds[i],
		})
	}

	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if p == q {
				continue
			}
			d := rr.At(p, q)
			if !(d > opts.DistRange) {
				continue
			}
			b := bins.Index(d)
			if b < lo || b > hi {
				continue
			}
			w := sc.At(p, q)
			// NaN on either side compares false
			if !(w > thresholds[b]) {
				continue
			}
			if opts.Binary {
				clong.Set(p, q, 1)
			} else {
				clong.Set(p, q, opts.A1*w)
			}
			report[b-lo].Connections++
		}
	}
	return clong, report, nil
}

// LongRangeSummary counts long-range connections outside the diagonal.
type LongRangeSummary struct {
	Regions     int     `json:"regions"`
	Connections int     `json:"connections"`
	Total       int     `json:"total"`
	Percent     float64 `json:"percent"`
}

// Summarize counts the non-zero off-diagonal entries of clong against the
// N*(N-1) possible directed pairs.
func Summarize(clong mat.Matrix) LongRangeSummary {
	n, _ := clong.Dims()
	s := LongRangeSummary{Regions: n, Total: n * (n - 1)}
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if p != q && clong.At(p, q) != 0 {
				s.Connections++
			}
		}
	}
	if s.Total > 0 {
		s.Percent = 100 * float64(s.Connections) / float64(s.Total)
	}
	return s
}
