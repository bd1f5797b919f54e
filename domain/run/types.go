package run

import (
	"fmt"
	"math"
	"strconv"

	"neurodyn/domain/core"

	"gonum.org/v1/gonum/mat"
)

// HistogramSource selects which matrix is binned by distance
type HistogramSource string

const (
	// HistogramSC bins the (normalised) structural connectivity weights. A
	// zero SC diagonal leaves the first bin near zero; combine it with
	// ExcludeDiagonal.
	HistogramSC HistogramSource = "sc"
	// HistogramDecay bins the exp(-lambda*rr) decay model itself.
	HistogramDecay HistogramSource = "decay"
)

// Params configures one distance-rule run. Decoders should start from
// DefaultParams so that omitted fields keep their defaults; the boolean
// switches are phrased so that false is the default.
type Params struct {
	Lambda    float64         `json:"lambda" yaml:"lambda"`
	SkipFit   bool            `json:"skip_fit,omitempty" yaml:"skip_fit"`
	Bins      int             `json:"bins" yaml:"bins"`
	Histogram HistogramSource `json:"histogram" yaml:"histogram"`
	Edges     string          `json:"edges" yaml:"edges"`

	ExcludeDiagonal bool `json:"exclude_diagonal,omitempty" yaml:"exclude_diagonal"`
	IgnoreNaNs      bool `json:"ignore_nans,omitempty" yaml:"ignore_nans"`
	SkipNormalize   bool `json:"skip_normalize,omitempty" yaml:"skip_normalize"`

	InitialLambda float64 `json:"initial_lambda" yaml:"initial_lambda"`
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations"`

	NSTD      float64 `json:"nstd" yaml:"nstd"`
	NRini     int     `json:"nr_ini" yaml:"nr_ini"`
	NRfin     int     `json:"nr_fin" yaml:"nr_fin"`
	DistRange float64 `json:"dist_range" yaml:"dist_range"`
	A1        float64 `json:"a1" yaml:"a1"`
	Binary    bool    `json:"binary,omitempty" yaml:"binary"`
}

// DefaultParams returns the settings of the ADNI long-range analysis
func DefaultParams() Params {
	return Params{
		Lambda:        0.18,
		Bins:          144,
		Histogram:     HistogramDecay,
		Edges:         "equal_width",
		InitialLambda: 0.1,
		MaxIterations: 1000,
		NSTD:          5,
		NRini:         7,
		NRfin:         30,
		DistRange:     0,
		A1:            1,
	}
}

// Validate checks the parameters that do not depend on the input size.
// Bin-range bounds are checked against the histogram at compute time.
func (p Params) Validate() error {
	if !finite(p.Lambda) || p.Lambda <= 0 {
		return core.NewConfigurationError("lambda", "must be a positive finite number")
	}
	if p.Bins <= 0 {
		return core.NewConfigurationError("bins", "must be positive")
	}
	switch p.Histogram {
	case HistogramSC, HistogramDecay:
	default:
		return core.NewConfigurationError("histogram", fmt.Sprintf("source %q is not supported", p.Histogram))
	}
	switch p.Edges {
	case "", "equal_width", "quantile":
	default:
		return core.NewConfigurationError("edges", fmt.Sprintf("convention %q is not supported", p.Edges))
	}
	if !finite(p.NSTD) || p.NSTD < 0 {
		return core.NewConfigurationError("nstd", "must be a non-negative finite number")
	}
	if !finite(p.A1) {
		return core.NewConfigurationError("a1", "must be finite")
	}
	if math.IsNaN(p.DistRange) {
		return core.NewConfigurationError("dist_range", "must not be NaN")
	}
	if p.MaxIterations < 0 {
		return core.NewConfigurationError("max_iterations", "must not be negative")
	}
	return nil
}

// Map flattens the parameters for fingerprinting
func (p Params) Map() map[string]interface{} {
	return map[string]interface{}{
		"lambda":           p.Lambda,
		"skip_fit":         p.SkipFit,
		"bins":             p.Bins,
		"histogram":        string(p.Histogram),
		"edges":            p.Edges,
		"exclude_diagonal": p.ExcludeDiagonal,
		"ignore_nans":      p.IgnoreNaNs,
		"skip_normalize":   p.SkipNormalize,
		"initial_lambda":   p.InitialLambda,
		"max_iterations":   p.MaxIterations,
		"nstd":             p.NSTD,
		"nr_ini":           p.NRini,
		"nr_fin":           p.NRfin,
		"dist_range":       p.DistRange,
		"a1":               p.A1,
		"binary":           p.Binary,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Fingerprint identifies a run by subject, parameters and the exact input
// matrices. Two requests with the same fingerprint produce the same Result.
func Fingerprint(subject core.SubjectID, group core.GroupLabel, p Params, coords, sc mat.Matrix) core.InputHash {
	params := p.Map()
	params["subject_id"] = subject.String()
	params["group"] = group.String()
	return core.ComputeInputHash(params, flatten(coords), flatten(sc))
}

func flatten(m mat.Matrix) []float64 {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	out := make([]float64, 0, r*c+2)
	out = append(out, float64(r), float64(c))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

// BinRow is one row of the distance-binned statistics table. Threshold and
// Connections are only set for bins inside [NRini, NRfin].
type BinRow struct {
	Bin         int     `json:"bin"` // 1-indexed
	Lo          float64 `json:"lo"`
	Hi          float64 `json:"hi"`
	Count       int     `json:"count"`
	Mean        Stat    `json:"mean"`
	Std         Stat    `json:"std"`
	Max         Stat    `json:"max"`
	Selected    bool    `json:"selected"`
	Threshold   Stat    `json:"threshold"`
	Connections int     `json:"connections"`
}

// Stat is a statistic that may be undefined. NaN and infinities are encoded
// as JSON null and null decodes back to NaN.
type Stat float64

// Float returns s as a float64
func (s Stat) Float() float64 { return float64(s) }

func (s Stat) MarshalJSON() ([]byte, error) {
	v := float64(s)
	if !finite(v) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (s *Stat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = Stat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid statistic %s: %w", b, err)
	}
	*s = Stat(v)
	return nil
}

// Edge is one long-range connection (p != q) and its Clong value.
type Edge struct {
	P      int     `json:"p"`
	Q      int     `json:"q"`
	Weight float64 `json:"w"`
}

// MatrixStats summarises one derived matrix
type MatrixStats struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Result is the persisted record of one subject run.
type Result struct {
	ID          core.RunID      `json:"id"`
	SubjectID   core.SubjectID  `json:"subject_id"`
	Group       core.GroupLabel `json:"group"`
	Fingerprint core.InputHash  `json:"fingerprint"`
	Params      Params          `json:"params"`
	Regions     int             `json:"regions"`

	// FittedLambda is zero when the fit was skipped. Lambda is the rate used
	// for Clong and EDR+Clong.
	FittedLambda float64 `json:"fitted_lambda"`
	Lambda       float64 `json:"lambda"`

	Bins        []BinRow       `json:"bins"`
	LongRange   []Edge         `json:"long_range"`
	Connections int            `json:"connections"`
	TotalPairs  int            `json:"total_pairs"`
	Percent     float64        `json:"percent"`
	Matrices    []MatrixStats  `json:"matrices"`
	CreatedAt   core.Timestamp `json:"created_at"`
}

// Matrices holds the dense outputs of a run. They are not persisted; a
// stored Result is enough to rebuild them from the request inputs.
type Matrices struct {
	RR       *mat.Dense
	CExp     *mat.Dense
	Clong    *mat.Dense
	EDRClong *mat.Dense
}
