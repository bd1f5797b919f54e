package distrule

import (
	"fmt"
	"math"
	"sort"

	"neurodyn/domain/core"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// EdgeConvention selects how bin edges partition the distance range.
type EdgeConvention string

const (
	// EdgeEqualWidth splits [min(rr), max(rr)] into equal-width bins.
	EdgeEqualWidth EdgeConvention = "equal_width"
	// EdgeQuantile places edges at the quantiles of the binned distances.
	EdgeQuantile EdgeConvention = "quantile"
)

// HistOptions controls which samples enter the histogram and how it is cut.
type HistOptions struct {
	// IncludeDiagonal keeps the zero-distance self pairs; they land in bin 0.
	IncludeDiagonal bool           `json:"include_diagonal" yaml:"include_diagonal"`
	Edges           EdgeConvention `json:"edges" yaml:"edges"`
	// IgnoreNaNs skips NaN weights instead of rejecting the input.
	IgnoreNaNs bool `json:"ignore_nans" yaml:"ignore_nans"`
}

// DefaultHistOptions uses equal-width edges with the diagonal included.
func DefaultHistOptions() HistOptions {
	return HistOptions{
		IncludeDiagonal: true,
		Edges:           EdgeEqualWidth,
	}
}

// BinStats holds per-bin weight statistics over the distance range.
// Bins with no samples carry NaN in Means, Stds and Maxs.
type BinStats struct {
	Means  []float64 `json:"means"`
	Stds   []float64 `json:"stds"`
	Maxs   []float64 `json:"maxs"`
	Counts []int     `json:"counts"`
	Edges  []float64 `json:"edges"`
}

// NumBins returns the number of bins
func (b *BinStats) NumBins() int {
	return len(b.Means)
}

// Centers returns the midpoint of every bin
func (b *BinStats) Centers() []float64 {
	centers := make([]float64, b.NumBins())
	for i := range centers {
		centers[i] = (b.Edges[i] + b.Edges[i+1]) / 2
	}
	return centers
}

// TotalCount returns the number of samples that fell in any bin
func (b *BinStats) TotalCount() int {
	total := 0
	for _, c := range b.Counts {
		total += c
	}
	return total
}

// Index returns the bin holding distance d, or -1 when d is outside the edges.
// Bins are half-open [e_i, e_i+1) except the last, which also holds max(rr).
func (b *BinStats) Index(d float64) int {
	return binIndex(b.Edges, d)
}

func (b *BinStats) validate() error {
	nr := len(b.Means)
	if nr == 0 {
		return core.NewConfigurationError("bin statistics", "have no bins")
	}
	if len(b.Stds) != nr || len(b.Edges) != nr+1 {
		return fmt.Errorf("%w: bin statistics have %d means, %d stds and %d edges",
			core.ErrShapeMismatch, nr, len(b.Stds), len(b.Edges))
	}
	return nil
}

func binIndex(edges []float64, d float64) int {
	n := len(edges) - 1
	if n < 1 || math.IsNaN(d) || d < edges[0] || d > edges[n] {
		return -1
	}
	// first edge strictly greater than d, as numpy.digitize does
	i := sort.Search(len(edges), func(k int) bool { return edges[k] > d })
	if i > n {
		return n - 1
	}
	return i - 1
}

// ComputeHist bins every entry of weights by the matching entry of distances
// into numBins bins and returns the mean, population standard deviation and
// maximum of the weights in each bin together with the bin edges.
func (r *DistanceRule) ComputeHist(weights, distances mat.Matrix, numBins int, opts HistOptions) (*BinStats, error) {
	return ComputeHist(weights, distances, numBins, opts)
}

// ComputeHist is the stateless form of DistanceRule.ComputeHist.
func ComputeHist(weights, distances mat.Matrix, numBins int, opts HistOptions) (*BinStats, error) {
	n, err := checkSquare("distance matrix", distances)
	if err != nil {
		return nil, err
	}
	if err := checkSameShape("distance matrix", distances, "weights matrix", weights); err != nil {
		return nil, err
	}
	if numBins <= 0 {
		return nil, core.NewConfigurationError("num_bins", "must be positive")
	}
	if err := checkFinite("distance matrix", distances); err != nil {
		return nil, err
	}
	if opts.Edges == "" {
		opts.Edges = EdgeEqualWidth
	}

	ds := make([]float64, 0, n*n)
	ws := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j && !opts.IncludeDiagonal {
				continue
			}
			w := weights.At(i, j)
			if math.IsInf(w, 0) {
				return nil, nonFinite("weights matrix", i, j, w)
			}
			if math.IsNaN(w) {
				if !opts.IgnoreNaNs {
					return nil, nonFinite("weights matrix", i, j, w)
				}
				continue
			}
			ds = append(ds, distances.At(i, j))
			ws = append(ws, w)
		}
	}
	if len(ds) == 0 {
		return nil, core.NewConfigurationError("weights matrix", "has no usable samples")
	}

	sorted := append([]float64(nil), ds...)
	sort.Float64s(sorted)
	if distinct := countDistinct(sorted); numBins > distinct {
		return nil, core.NewConfigurationError("num_bins",
			fmt.Sprintf("(%d) exceeds the %d distinct distances", numBins, distinct))
	}

	edges, err := buildEdges(distances, sorted, numBins, opts.Edges)
	if err != nil {
		return nil, err
	}

	samples := make([][]float64, numBins)
	for k, d := range ds {
		if b := binIndex(edges, d); b >= 0 {
			samples[b] = append(samples[b], ws[k])
		}
	}

	out := &BinStats{
		Means:  make([]float64, numBins),
		Stds:   make([]float64, numBins),
		Maxs:   make([]float64, numBins),
		Counts: make([]int, numBins),
		Edges:  edges,
	}
	for b, vals := range samples {
		out.Counts[b] = len(vals)
		out.Means[b], out.Stds[b], out.Maxs[b] = binMoments(vals)
	}
	return out, nil
}

// binMoments returns NaN for all three statistics of an empty bin.
func binMoments(vals []float64) (mean, std, peak float64) {
	nan := math.NaN()
	if len(vals) == 0 {
		return nan, nan, nan
	}
	var err error
	if mean, err = stats.Mean(vals); err != nil {
		return nan, nan, nan
	}
	if std, err = stats.StandardDeviationPopulation(vals); err != nil {
		std = nan
	}
	if peak, err = stats.Max(vals); err != nil {
		peak = nan
	}
	return mean, std, peak
}

func buildEdges(distances mat.Matrix, sorted []float64, numBins int, convention EdgeConvention) ([]float64, error) {
	edges := make([]float64, numBins+1)
	switch convention {
	case EdgeEqualWidth:
		lo, hi := matrixRange(distances)
		if !(hi > lo) {
			return nil, core.NewConfigurationError("distance matrix", "has a degenerate range")
		}
		floats.Span(edges, lo, hi)
		// Span accumulates rounding error; the outer edges must be exact
		edges[0], edges[numBins] = lo, hi
	case EdgeQuantile:
		lo, hi := sorted[0], sorted[len(sorted)-1]
		if !(hi > lo) {
			return nil, core.NewConfigurationError("distance matrix", "has a degenerate range")
		}
		edges[0], edges[numBins] = lo, hi
		for k := 1; k < numBins; k++ {
			edges[k] = stat.Quantile(float64(k)/float64(numBins), stat.LinInterp, sorted, nil)
		}
	default:
		return nil, core.NewConfigurationError("edges", fmt.Sprintf("convention %q is not supported", convention))
	}
	return edges, nil
}

func matrixRange(m mat.Matrix) (lo, hi float64) {
	r, c := m.Dims()
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

func countDistinct(sorted []float64) int {
	if len(sorted) == 0 {
		return 0
	}
	count := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			count++
		}
	}
	return count
}

func nonFinite(what string, i, j int, v float64) error {
	return fmt.Errorf("%w: %s[%d][%d] = %v", core.ErrNonFinite, what, i, j, v)
}
