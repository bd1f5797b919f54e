package distrule

import (
	"math"
	"math/rand"
	"testing"

	"neurodyn/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// lineCoords places regions on the x axis at the given positions.
func lineCoords(xs ...float64) *mat.Dense {
	data := make([]float64, 0, 3*len(xs))
	for _, x := range xs {
		data = append(data, x, 0, 0)
	}
	return mat.NewDense(len(xs), 3, data)
}

// scenarioSC is identity plus a small off-diagonal weight, with one strong
// pair between the two farthest regions.
func scenarioSC() *mat.Dense {
	sc := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if i == j {
				sc.Set(i, j, 1)
			} else {
				sc.Set(i, j, 0.125)
			}
		}
	}
	sc.Set(0, 3, 0.875)
	sc.Set(3, 0, 0.875)
	return sc
}

func randomCoords(rng *rand.Rand, n int) *mat.Dense {
	data := make([]float64, 3*n)
	for i := range data {
		data[i] = rng.Float64() * 100
	}
	return mat.NewDense(n, 3, data)
}

func randomSC(rng *rand.Rand, rr *mat.Dense, lambda float64) *mat.Dense {
	n, _ := rr.Dims()
	sc := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			w := math.Exp(-lambda*rr.At(i, j)) * (0.5 + rng.Float64())
			if rng.Float64() < 0.02 {
				w += rng.Float64()
			}
			sc.Set(i, j, w)
			sc.Set(j, i, w)
		}
	}
	return sc
}

func TestPairwiseDistances_SymmetricZeroDiagonal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	coords := randomCoords(rng, 25)

	rr, err := PairwiseDistances(coords)
	require.NoError(t, err)

	n, c := rr.Dims()
	require.Equal(t, 25, n)
	require.Equal(t, 25, c)
	for i := 0; i < n; i++ {
		assert.Equal(t, 0.0, rr.At(i, i))
		for j := 0; j < n; j++ {
			assert.Equal(t, rr.At(i, j), rr.At(j, i))
		}
	}

	rr2, err := PairwiseDistances(lineCoords(0, 3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, rr2.At(0, 1))
}

func TestPairwiseDistances_RejectsBadCoordinates(t *testing.T) {
	_, err := PairwiseDistances(mat.NewDense(3, 2, nil))
	assert.ErrorIs(t, err, core.ErrShapeMismatch)

	coords := lineCoords(0, 1)
	coords.Set(1, 2, math.NaN())
	_, err = PairwiseDistances(coords)
	assert.ErrorIs(t, err, core.ErrNonFinite)
}

func TestCompute_RequiresPositiveLambda(t *testing.T) {
	for _, lambda := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		_, _, err := NewDistanceRule(lambda).Compute(lineCoords(0, 1, 2))
		assert.ErrorIs(t, err, core.ErrConfiguration, "lambda=%v", lambda)
	}
}

func TestCompute_DecayMatrixBoundedAndMonotone(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	rule := NewDistanceRule(0.18)

	rr, cExp, err := rule.Compute(randomCoords(rng, 30))
	require.NoError(t, err)

	n, _ := rr.Dims()
	type pair struct{ d, c float64 }
	var pairs []pair
	for i := 0; i < n; i++ {
		assert.Equal(t, 1.0, cExp.At(i, i))
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			v := cExp.At(i, j)
			assert.Greater(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			pairs = append(pairs, pair{rr.At(i, j), v})
		}
	}
	for _, a := range pairs[:200] {
		for _, b := range pairs[:200] {
			if a.d <= b.d {
				assert.GreaterOrEqual(t, a.c, b.c)
			}
		}
	}
}

func TestComputeHist_Scenario(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 2, 3))
	require.NoError(t, err)

	bins, err := ComputeHist(scenarioSC(), rr, 3, DefaultHistOptions())
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 1, 2, 3}, bins.Edges)
	assert.Equal(t, []int{4, 6, 6}, bins.Counts)
	assert.Equal(t, 16, bins.TotalCount())
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, bins.Centers())

	assert.InDelta(t, 1.0, bins.Means[0], 1e-12)
	assert.InDelta(t, 0.0, bins.Stds[0], 1e-12)
	assert.InDelta(t, 0.125, bins.Means[1], 1e-12)
	assert.InDelta(t, 0.375, bins.Means[2], 1e-12)
	assert.InDelta(t, math.Sqrt(0.125), bins.Stds[2], 1e-12)
	assert.InDelta(t, 0.875, bins.Maxs[2], 1e-12)
}

func TestComputeHist_CountsReconstructSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	coords := randomCoords(rng, 40)
	rule := NewDistanceRule(0.05)
	rr, cExp, err := rule.Compute(coords)
	require.NoError(t, err)

	for _, conv := range []EdgeConvention{EdgeEqualWidth, EdgeQuantile} {
		opts := DefaultHistOptions()
		opts.Edges = conv

		bins, err := rule.ComputeHist(cExp, rr, 20, opts)
		require.NoError(t, err, "convention %s", conv)

		require.Len(t, bins.Edges, 21)
		for i := 0; i < 20; i++ {
			assert.LessOrEqual(t, bins.Edges[i], bins.Edges[i+1], "convention %s", conv)
		}
		assert.Equal(t, 40*40, bins.TotalCount(), "convention %s", conv)

		// every sample lies inside the bin it was counted in
		for i := 0; i < 40; i++ {
			for j := 0; j < 40; j++ {
				b := bins.Index(rr.At(i, j))
				require.GreaterOrEqual(t, b, 0)
				assert.GreaterOrEqual(t, rr.At(i, j), bins.Edges[b])
				assert.LessOrEqual(t, rr.At(i, j), bins.Edges[b+1])
			}
		}
	}
}

func TestComputeHist_ExcludingDiagonal(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 2, 3))
	require.NoError(t, err)

	opts := DefaultHistOptions()
	opts.IncludeDiagonal = false
	bins, err := ComputeHist(scenarioSC(), rr, 3, opts)
	require.NoError(t, err)

	// edges still span the full matrix, so bin 0 only holds distance-1 pairs
	assert.Equal(t, []float64{0, 1, 2, 3}, bins.Edges)
	assert.Equal(t, []int{0, 6, 6}, bins.Counts)
	assert.True(t, math.IsNaN(bins.Means[0]))
	assert.Equal(t, 12, bins.TotalCount())
}

func TestComputeHist_EmptyBinsAreNaN(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 10))
	require.NoError(t, err)
	sc := mat.NewDense(3, 3, []float64{1, 0.5, 0.1, 0.5, 1, 0.2, 0.1, 0.2, 1})

	bins, err := ComputeHist(sc, rr, 4, DefaultHistOptions())
	require.NoError(t, err)

	assert.Equal(t, []int{5, 0, 0, 4}, bins.Counts)
	for _, b := range []int{1, 2} {
		assert.True(t, math.IsNaN(bins.Means[b]))
		assert.True(t, math.IsNaN(bins.Stds[b]))
		assert.True(t, math.IsNaN(bins.Maxs[b]))
	}
	assert.False(t, math.IsNaN(bins.Means[3]))
}

func TestComputeHist_NaNWeights(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 2, 3))
	require.NoError(t, err)
	sc := scenarioSC()
	sc.Set(1, 2, math.NaN())

	_, err = ComputeHist(sc, rr, 3, DefaultHistOptions())
	assert.ErrorIs(t, err, core.ErrNonFinite)

	opts := DefaultHistOptions()
	opts.IgnoreNaNs = true
	bins, err := ComputeHist(sc, rr, 3, opts)
	require.NoError(t, err)
	assert.Equal(t, 15, bins.TotalCount())
	assert.InDelta(t, 0.125, bins.Means[1], 1e-12)
}

func TestComputeHist_ConfigurationErrors(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 2, 3))
	require.NoError(t, err)
	sc := scenarioSC()

	_, err = ComputeHist(sc, rr, 0, DefaultHistOptions())
	assert.ErrorIs(t, err, core.ErrConfiguration)

	// only four distinct distances exist
	_, err = ComputeHist(sc, rr, 5, DefaultHistOptions())
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = ComputeHist(mat.NewDense(3, 3, nil), rr, 3, DefaultHistOptions())
	assert.ErrorIs(t, err, core.ErrShapeMismatch)

	opts := DefaultHistOptions()
	opts.Edges = "log"
	_, err = ComputeHist(sc, rr, 3, opts)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestFitExponential_RecoversLambda(t *testing.T) {
	const lambda = 0.18
	centers := make([]float64, 30)
	means := make([]float64, 30)
	for i := range centers {
		centers[i] = float64(i) * 1.5
		means[i] = 0.8 * math.Exp(-lambda*centers[i])
	}

	got, err := FitExponential(centers, means, DefaultFitOptions())
	require.NoError(t, err)
	assert.InEpsilon(t, lambda, got, 0.01)

	// empty bins are skipped
	means[3], means[7], means[20] = math.NaN(), math.NaN(), math.NaN()
	got, err = NewDistanceRule(0.1).FitExponential(centers, means, DefaultFitOptions())
	require.NoError(t, err)
	assert.InEpsilon(t, lambda, got, 0.01)
}

// gridLambda scans the pinned-amplitude squared error on a coarse grid over
// (0, hi], then on a fine grid around the coarse minimiser.
func gridLambda(centers, means []float64, hi float64) float64 {
	sse := func(lambda float64) float64 {
		sum := 0.0
		for i, d := range centers {
			res := means[0]*math.Exp(-lambda*d) - means[i]
			sum += res * res
		}
		return sum
	}
	scan := func(lo, hi, step float64) float64 {
		best, bestF := lo, sse(lo)
		for i := 1; lo+float64(i)*step <= hi; i++ {
			x := lo + float64(i)*step
			if f := sse(x); f < bestF {
				best, bestF = x, f
			}
		}
		return best
	}
	coarse := scan(1e-3, hi, 1e-3)
	return scan(math.Max(coarse-1e-3, 1e-6), coarse+1e-3, 1e-6)
}

func TestFitExponential_NoisyMeansMatchGridOptimum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const bins = 144
	for trial := 0; trial < 40; trial++ {
		lambda := 0.05 + 0.3*rng.Float64()
		offset := 0.5 * float64(trial%2)
		centers := make([]float64, bins)
		means := make([]float64, bins)
		for i := range centers {
			centers[i] = (float64(i) + offset) * 0.5
			means[i] = 0.8 * math.Exp(-lambda*centers[i]) * (1 + 0.05*rng.NormFloat64())
		}

		got, err := FitExponential(centers, means, DefaultFitOptions())
		require.NoError(t, err, "lambda=%.4f offset=%v", lambda, offset)
		assert.InEpsilon(t, gridLambda(centers, means, 1), got, 1e-3, "lambda=%.4f offset=%v", lambda, offset)
	}
}

func TestFitExponential_HalfBinCenters(t *testing.T) {
	for _, lambda := range []float64{0.02, 0.18, 0.5, 1.5} {
		centers := make([]float64, 144)
		means := make([]float64, 144)
		for i := range centers {
			centers[i] = (float64(i) + 0.5) * 0.5
			means[i] = math.Exp(-lambda * centers[i])
		}

		got, err := FitExponential(centers, means, DefaultFitOptions())
		require.NoError(t, err, "lambda=%v", lambda)
		assert.InEpsilon(t, gridLambda(centers, means, 3), got, 1e-3, "lambda=%v", lambda)
	}
}

func TestFitExponential_Failures(t *testing.T) {
	nan := math.NaN()

	_, err := FitExponential([]float64{0, 1, 2}, []float64{1, nan, nan}, DefaultFitOptions())
	assert.ErrorIs(t, err, core.ErrFit)

	_, err = FitExponential([]float64{0, 1, 2}, []float64{nan, 0.5, 0.2}, DefaultFitOptions())
	assert.ErrorIs(t, err, core.ErrFit)

	_, err = FitExponential([]float64{0, 1}, []float64{1}, DefaultFitOptions())
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestComputeClong_Scenario(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 2, 3))
	require.NoError(t, err)
	sc := scenarioSC()
	bins, err := ComputeHist(sc, rr, 3, DefaultHistOptions())
	require.NoError(t, err)

	ld := &LongDistance{LambdaVal: 0.18, NSTD: 1}
	opts := ClongOptions{NRini: 1, NRfin: 3, DistRange: 0, A1: 1}

	clong, err := ld.ComputeClong(rr, sc, bins, opts)
	require.NoError(t, err)

	for p := 0; p < 4; p++ {
		for q := 0; q < 4; q++ {
			if (p == 0 && q == 3) || (p == 3 && q == 0) {
				assert.Equal(t, 0.875, clong.At(p, q))
			} else {
				assert.Equal(t, 0.0, clong.At(p, q), "entry (%d,%d)", p, q)
			}
		}
	}

	summary := Summarize(clong)
	assert.Equal(t, 2, summary.Connections)
	assert.Equal(t, 12, summary.Total)
	assert.InDelta(t, 100.0/6, summary.Percent, 1e-9)

	report, err := ld.BinReport(rr, sc, bins, opts)
	require.NoError(t, err)
	require.Len(t, report, 3)
	assert.Equal(t, 3, report[2].Bin)
	assert.Equal(t, 2, report[2].Connections)
	assert.InDelta(t, 0.375+math.Sqrt(0.125), report[2].Threshold, 1e-12)
	assert.Equal(t, 0, report[0].Connections+report[1].Connections)

	opts.A1 = 2
	scaled, err := ld.ComputeClong(rr, sc, bins, opts)
	require.NoError(t, err)
	assert.Equal(t, 1.75, scaled.At(0, 3))

	opts.Binary = true
	binary, err := ld.ComputeClong(rr, sc, bins, opts)
	require.NoError(t, err)
	assert.Equal(t, 1.0, binary.At(3, 0), "flag ignores A1")
	assert.Equal(t, 1.0, binary.At(0, 3))
	assert.Equal(t, 0.0, binary.At(0, 1))
}

func TestComputeClong_EmptyRangeIsZero(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 2, 3))
	require.NoError(t, err)
	sc := scenarioSC()
	bins, err := ComputeHist(sc, rr, 3, DefaultHistOptions())
	require.NoError(t, err)

	ld := &LongDistance{LambdaVal: 0.18, NSTD: 0}
	for _, r := range [][2]int{{3, 2}, {3, 1}, {4, 3}, {2, 0}} {
		clong, err := ld.ComputeClong(rr, sc, bins, ClongOptions{NRini: r[0], NRfin: r[1], A1: 1})
		require.NoError(t, err, "range %v", r)
		n, c := clong.Dims()
		assert.Equal(t, 4, n)
		assert.Equal(t, 4, c)
		assert.Equal(t, 0.0, mat.Sum(clong), "range %v", r)
	}
}

func TestComputeClong_BoundsErrors(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 2, 3))
	require.NoError(t, err)
	sc := scenarioSC()
	bins, err := ComputeHist(sc, rr, 3, DefaultHistOptions())
	require.NoError(t, err)

	ld := NewLongDistance(0.18)
	for _, r := range [][2]int{{0, 2}, {1, 4}, {5, 3}, {1, -1}} {
		_, err := ld.ComputeClong(rr, sc, bins, ClongOptions{NRini: r[0], NRfin: r[1], A1: 1})
		assert.ErrorIs(t, err, core.ErrBounds, "range %v", r)
	}

	_, err = ld.ComputeClong(rr, mat.NewDense(3, 3, nil), bins, ClongOptions{NRini: 1, NRfin: 3, A1: 1})
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestComputeClong_NeverMarksDiagonal(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 2, 3))
	require.NoError(t, err)
	sc := scenarioSC()
	for i := 0; i < 4; i++ {
		sc.Set(i, i, 1000)
	}
	bins, err := ComputeHist(scenarioSC(), rr, 3, DefaultHistOptions())
	require.NoError(t, err)

	// a negative DistRange lets zero distances through the distance test
	ld := &LongDistance{LambdaVal: 0.18, NSTD: 0}
	clong, err := ld.ComputeClong(rr, sc, bins, ClongOptions{NRini: 1, NRfin: 3, DistRange: -1, A1: 1})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 0.0, clong.At(i, i))
	}
}

func TestComputeClong_NaNBinNeverIncludes(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 10))
	require.NoError(t, err)
	sc := mat.NewDense(3, 3, []float64{1, 0.5, 0.1, 0.5, 1, 0.2, 0.1, 0.2, 1})
	bins, err := ComputeHist(sc, rr, 4, DefaultHistOptions())
	require.NoError(t, err)

	ld := &LongDistance{LambdaVal: 0.1, NSTD: 0}
	report, err := ld.BinReport(rr, sc, bins, ClongOptions{NRini: 2, NRfin: 3, A1: 1})
	require.NoError(t, err)
	for _, b := range report {
		assert.True(t, math.IsNaN(b.Threshold))
		assert.Equal(t, 0, b.Connections)
	}
}

func TestComputeClong_MonotoneInNSTD(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rr, err := PairwiseDistances(randomCoords(rng, 60))
	require.NoError(t, err)
	sc, err := NormalizeByMax(randomSC(rng, rr, 0.05))
	require.NoError(t, err)
	bins, err := ComputeHist(sc, rr, 30, DefaultHistOptions())
	require.NoError(t, err)

	prev := math.MaxInt
	for _, nstd := range []float64{0, 0.5, 1, 2, 3, 5, 8} {
		ld := &LongDistance{LambdaVal: 0.05, NSTD: nstd}
		clong, err := ld.ComputeClong(rr, sc, bins, ClongOptions{NRini: 1, NRfin: 30, A1: 1})
		require.NoError(t, err)
		count := Summarize(clong).Connections
		assert.LessOrEqual(t, count, prev, "NSTD=%v", nstd)
		prev = count
	}
}

func TestLongDistanceCompute_AddsDecayModel(t *testing.T) {
	rr, err := PairwiseDistances(lineCoords(0, 1, 2, 3))
	require.NoError(t, err)
	clong := mat.NewDense(4, 4, nil)
	clong.Set(0, 3, 0.875)

	ld := NewLongDistance(0.5)
	combined, err := ld.Compute(rr, clong)
	require.NoError(t, err)

	assert.InDelta(t, math.Exp(-1.5)+0.875, combined.At(0, 3), 1e-12)
	assert.InDelta(t, math.Exp(-0.5), combined.At(1, 2), 1e-12)
	assert.Equal(t, 0.0, clong.At(1, 2), "input must not be mutated")

	_, err = (&LongDistance{LambdaVal: 0}).Compute(rr, clong)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	_, err = ld.Compute(rr, mat.NewDense(2, 2, nil))
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestNormalizeByMax(t *testing.T) {
	sc := mat.NewDense(2, 2, []float64{0, 4, 2, 8})
	norm, err := NormalizeByMax(sc)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 0.25, 1}, norm.RawMatrix().Data)
	assert.Equal(t, 8.0, sc.At(1, 1))

	zero, err := NormalizeByMax(mat.NewDense(2, 2, nil))
	require.NoError(t, err)
	assert.Equal(t, 0.0, mat.Sum(zero))
}

func TestSummarizeMatrix(t *testing.T) {
	s := SummarizeMatrix(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Std, 1e-12)
}

func TestCompareMasks(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{9, 1, 0, 1, 9, 0, 0, 0, 9})
	b := mat.NewDense(3, 3, []float64{0, 1, 1, 0, 0, 0, 0, 0, 0})

	cmp, err := CompareMasks(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, cmp.CountA)
	assert.Equal(t, 2, cmp.CountB)
	assert.Equal(t, 1, cmp.Intersection)
	assert.Equal(t, 3, cmp.Union)
	assert.InDelta(t, 1.0/3, cmp.Jaccard, 1e-12)
	assert.InDelta(t, 100.0/3, cmp.PercentA, 1e-12)

	empty, err := CompareMasks(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Jaccard)

	_, err = CompareMasks(a, mat.NewDense(2, 2, nil))
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestNormalizeByMax_CarriesNaN(t *testing.T) {
	sc := mat.NewDense(2, 2, []float64{math.NaN(), 2, 4, 1})
	norm, err := NormalizeByMax(sc)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(norm.At(0, 0)))
	assert.Equal(t, 1.0, norm.At(1, 0))

	sc.Set(0, 0, math.Inf(1))
	_, err = NormalizeByMax(sc)
	assert.ErrorIs(t, err, core.ErrNonFinite)
}
