package main

import (
	"neurodyn/domain/run"
	"neurodyn/internal/config"

	"github.com/spf13/cobra"
)

// paramFlags registers one flag per run parameter. Flags the user did not set
// fall back to the EDR_* environment (see internal/config).
type paramFlags struct {
	p         run.Params
	histogram string
}

func addParamFlags(cmd *cobra.Command) *paramFlags {
	pf := &paramFlags{p: run.DefaultParams()}
	pf.histogram = string(pf.p.Histogram)

	f := cmd.Flags()
	f.Float64Var(&pf.p.Lambda, "lambda", pf.p.Lambda, "Decay rate (1/mm) used when --skip-fit is set")
	f.BoolVar(&pf.p.SkipFit, "skip-fit", false, "Use --lambda instead of fitting it")
	f.IntVar(&pf.p.Bins, "bins", pf.p.Bins, "Number of distance bins")
	f.StringVar(&pf.histogram, "histogram", pf.histogram, "Histogram source: sc|decay")
	f.StringVar(&pf.p.Edges, "edges", pf.p.Edges, "Bin edges: equal_width|quantile")
	f.BoolVar(&pf.p.ExcludeDiagonal, "exclude-diagonal", false, "Leave self-connections out of the histogram")
	f.BoolVar(&pf.p.IgnoreNaNs, "ignore-nans", false, "Skip NaN weights when binning")
	f.BoolVar(&pf.p.SkipNormalize, "skip-normalize", false, "Do not scale SC by its maximum")
	f.Float64Var(&pf.p.InitialLambda, "initial-lambda", pf.p.InitialLambda, "Starting guess for the fit")
	f.IntVar(&pf.p.MaxIterations, "max-iterations", pf.p.MaxIterations, "Optimizer iteration cap")
	f.Float64Var(&pf.p.NSTD, "nstd", pf.p.NSTD, "Standard deviations above the bin mean")
	f.IntVar(&pf.p.NRini, "nr-ini", pf.p.NRini, "First bin (1-indexed) scanned for long-range pairs")
	f.IntVar(&pf.p.NRfin, "nr-fin", pf.p.NRfin, "Last bin (1-indexed, inclusive)")
	f.Float64Var(&pf.p.DistRange, "dist-range", pf.p.DistRange, "Minimum distance of a long-range pair")
	f.Float64Var(&pf.p.A1, "a1", pf.p.A1, "Scale applied to long-range SC weights")
	f.BoolVar(&pf.p.Binary, "binary", false, "Write 1 instead of A1*SC in Clong")
	return pf
}

// resolve overlays the flags the user changed on the configured parameters
func (pf *paramFlags) resolve(cmd *cobra.Command) (run.Params, error) {
	cfg, err := config.Load()
	if err != nil {
		return run.Params{}, err
	}
	return pf.resolveOver(cmd, cfg.Distance)
}

// resolveOver overlays the flags the user changed on base
func (pf *paramFlags) resolveOver(cmd *cobra.Command, base run.Params) (run.Params, error) {
	out := base
	pf.p.Histogram = run.HistogramSource(pf.histogram)

	f := cmd.Flags()
	overlay := map[string]func(){
		"lambda":           func() { out.Lambda = pf.p.Lambda },
		"skip-fit":         func() { out.SkipFit = pf.p.SkipFit },
		"bins":             func() { out.Bins = pf.p.Bins },
		"histogram":        func() { out.Histogram = pf.p.Histogram },
		"edges":            func() { out.Edges = pf.p.Edges },
		"exclude-diagonal": func() { out.ExcludeDiagonal = pf.p.ExcludeDiagonal },
		"ignore-nans":      func() { out.IgnoreNaNs = pf.p.IgnoreNaNs },
		"skip-normalize":   func() { out.SkipNormalize = pf.p.SkipNormalize },
		"initial-lambda":   func() { out.InitialLambda = pf.p.InitialLambda },
		"max-iterations":   func() { out.MaxIterations = pf.p.MaxIterations },
		"nstd":             func() { out.NSTD = pf.p.NSTD },
		"nr-ini":           func() { out.NRini = pf.p.NRini },
		"nr-fin":           func() { out.NRfin = pf.p.NRfin },
		"dist-range":       func() { out.DistRange = pf.p.DistRange },
		"a1":               func() { out.A1 = pf.p.A1 },
		"binary":           func() { out.Binary = pf.p.Binary },
	}
	for name, apply := range overlay {
		if f.Changed(name) {
			apply()
		}
	}
	return out, out.Validate()
}
