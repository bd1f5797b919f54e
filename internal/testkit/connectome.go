package testkit

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ConnectomeSpec describes a synthetic subject: regions scattered in an
// ellipsoid with SC following exp(-Lambda*d) under log-normal noise, plus a
// few strong long-distance shortcuts.
type ConnectomeSpec struct {
	Regions   int
	Lambda    float64
	Noise     float64 // log-normal sigma
	Shortcuts int
	// ShortcutWeight is added to the SC weight of every shortcut pair.
	ShortcutWeight float64
	Radii          [3]float64
	Seed           uint64
}

// DefaultConnectomeSpec returns a brain-sized toy subject (mm scale)
func DefaultConnectomeSpec() ConnectomeSpec {
	return ConnectomeSpec{
		Regions:        80,
		Lambda:         0.18,
		Noise:          0.2,
		Shortcuts:      6,
		ShortcutWeight: 1,
		Radii:          [3]float64{70, 55, 50},
		Seed:           1,
	}
}

// Connectome is a generated subject
type Connectome struct {
	Coords *mat.Dense
	SC     *mat.Dense
	// Shortcuts lists the boosted pairs with p < q.
	Shortcuts [][2]int
}

// GenerateConnectome builds a deterministic synthetic subject from spec
func GenerateConnectome(spec ConnectomeSpec) *Connectome {
	src := SeededSource(spec.Seed)
	rng := rand.New(src)
	n := spec.Regions

	coords := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		// rejection sample the unit ball, then stretch to the ellipsoid
		for {
			x, y, z := 2*rng.Float64()-1, 2*rng.Float64()-1, 2*rng.Float64()-1
			if x*x+y*y+z*z <= 1 {
				coords.Set(i, 0, x*spec.Radii[0])
				coords.Set(i, 1, y*spec.Radii[1])
				coords.Set(i, 2, z*spec.Radii[2])
				break
			}
		}
	}

	sc := DecaySC(coords, spec.Lambda, spec.Noise, src)

	c := &Connectome{Coords: coords, SC: sc}
	for _, pair := range farthestPairs(coords, spec.Shortcuts) {
		w := sc.At(pair[0], pair[1]) + spec.ShortcutWeight
		sc.Set(pair[0], pair[1], w)
		sc.Set(pair[1], pair[0], w)
		c.Shortcuts = append(c.Shortcuts, pair)
	}
	return c
}

// DecaySC returns a symmetric SC matrix with a unit diagonal whose
// off-diagonal weights are exp(-lambda*d) times log-normal noise.
func DecaySC(coords *mat.Dense, lambda, sigma float64, src rand.Source) *mat.Dense {
	n, _ := coords.Dims()
	noise := distuv.LogNormal{Mu: 0, Sigma: sigma, Src: src}
	sc := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		sc.Set(i, i, 1)
		for j := i + 1; j < n; j++ {
			w := math.Exp(-lambda*distance(coords, i, j))
			if sigma > 0 {
				w *= noise.Rand()
			}
			sc.Set(i, j, w)
			sc.Set(j, i, w)
		}
	}
	return sc
}

// SeededSource returns a deterministic PCG source
func SeededSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// LineConnectome places n regions one unit apart on the x axis with uniform
// off-diagonal weight base and a unit diagonal.
func LineConnectome(n int, base float64) *Connectome {
	coords := mat.NewDense(n, 3, nil)
	sc := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		coords.Set(i, 0, float64(i))
		for j := 0; j < n; j++ {
			if i == j {
				sc.Set(i, j, 1)
			} else {
				sc.Set(i, j, base)
			}
		}
	}
	return &Connectome{Coords: coords, SC: sc}
}

// farthestPairs greedily picks k disjoint pairs with the largest distances
func farthestPairs(coords *mat.Dense, k int) [][2]int {
	n, _ := coords.Dims()
	used := make([]bool, n)
	var pairs [][2]int
	for len(pairs) < k {
		best, bp, bq := -1.0, -1, -1
		for p := 0; p < n; p++ {
			if used[p] {
				continue
			}
			for q := p + 1; q < n; q++ {
				if used[q] {
					continue
				}
				if d := distance(coords, p, q); d > best {
					best, bp, bq = d, p, q
				}
			}
		}
		if bp < 0 {
			break
		}
		used[bp], used[bq] = true, true
		pairs = append(pairs, [2]int{bp, bq})
	}
	return pairs
}

func distance(coords *mat.Dense, i, j int) float64 {
	dx := coords.At(i, 0) - coords.At(j, 0)
	dy := coords.At(i, 1) - coords.At(j, 1)
	dz := coords.At(i, 2) - coords.At(j, 2)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
