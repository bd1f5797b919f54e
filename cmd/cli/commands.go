package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"neurodyn/adapters/excel"
	"neurodyn/adapters/memory"
	"neurodyn/app"
	"neurodyn/domain/core"
	"neurodyn/domain/run"
	"neurodyn/internal/distrule"
	"neurodyn/internal/report"
	"neurodyn/internal/testkit"
	"neurodyn/ports"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

func newReader() ports.ConnectomeReader {
	return excel.NewDataReader(excel.DefaultExcelConfig(), logger)
}

func newService(workers int) *app.DistanceRuleService {
	return app.NewDistanceRuleService(memory.NewRunRepository(), app.WithLogger(logger), app.WithWorkers(workers))
}

func readInputs(ctx context.Context, coordsPath, scPath string) (*mat.Dense, *mat.Dense, error) {
	reader := newReader()
	coords, err := reader.ReadCoordinates(ctx, coordsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("coordinates: %w", err)
	}
	sc, err := reader.ReadMatrix(ctx, scPath)
	if err != nil {
		return nil, nil, fmt.Errorf("SC: %w", err)
	}
	return coords, sc, nil
}

func newFitCmd() *cobra.Command {
	var coordsPath, scPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Bin SC by distance and fit the exponential decay rate",
		Long: `Compute the inter-region distance matrix, bin the SC weights by distance
and fit SC(d) = SC(0)*exp(-lambda*d) to the bin means.

Example: neurodyn fit --coords cog.csv --sc sc.csv --bins 144`,
		Args: cobra.NoArgs,
	}
	pf := addParamFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p, err := pf.resolve(cmd)
		if err != nil {
			return err
		}
		coords, sc, err := readInputs(cmd.Context(), coordsPath, scPath)
		if err != nil {
			return err
		}
		if !p.SkipNormalize {
			if sc, err = distrule.NormalizeByMax(sc); err != nil {
				return err
			}
		}

		rule := distrule.NewDistanceRule(p.Lambda)
		rr, cExp, err := rule.Compute(coords)
		if err != nil {
			return err
		}
		var weights mat.Matrix = sc
		if p.Histogram == run.HistogramDecay {
			weights = cExp
		}
		opts := distrule.DefaultHistOptions()
		opts.IncludeDiagonal = !p.ExcludeDiagonal
		opts.IgnoreNaNs = p.IgnoreNaNs
		if p.Edges != "" {
			opts.Edges = distrule.EdgeConvention(p.Edges)
		}
		bins, err := rule.ComputeHist(weights, rr, p.Bins, opts)
		if err != nil {
			return err
		}
		lambda, err := rule.FitExponential(bins.Centers(), bins.Means, distrule.FitOptions{
			InitialLambda: p.InitialLambda,
			MaxIterations: p.MaxIterations,
		})
		if err != nil {
			return err
		}

		if asJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
				"lambda": lambda,
				"edges":  bins.Edges,
				"counts": bins.Counts,
				"means":  statSlice(bins.Means),
				"stds":   statSlice(bins.Stds),
			})
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "bin\tlo\thi\tcount\tmean\tstd\t")
		for i := 0; i < bins.NumBins(); i++ {
			fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%d\t%.5g\t%.5g\t\n",
				i+1, bins.Edges[i], bins.Edges[i+1], bins.Counts[i], bins.Means[i], bins.Stds[i])
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nlambda = %.6f 1/mm\n", lambda)
		return nil
	}

	cmd.Flags().StringVar(&coordsPath, "coords", "", "Region centres of gravity (N×3, .csv or .xlsx)")
	cmd.Flags().StringVar(&scPath, "sc", "", "Structural connectivity (N×N, .csv or .xlsx)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print bin statistics as JSON")
	_ = cmd.MarkFlagRequired("coords")
	_ = cmd.MarkFlagRequired("sc")
	return cmd
}

func newClongCmd() *cobra.Command {
	var coordsPath, scPath, subject, group, out, csvDir string
	var html bool

	cmd := &cobra.Command{
		Use:   "clong",
		Short: "Run the full pipeline and extract long-range connections",
		Long: `Fit lambda, mark SC entries above mean + NSTD*std of their distance bin as
long-range, and build Clong and EDR+Clong. Prints a Markdown report.

Example: neurodyn clong --coords cog.csv --sc sc.csv --nstd 5 --nr-ini 7 --nr-fin 30 --out run.xlsx`,
		Args: cobra.NoArgs,
	}
	pf := addParamFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p, err := pf.resolve(cmd)
		if err != nil {
			return err
		}
		coords, sc, err := readInputs(cmd.Context(), coordsPath, scPath)
		if err != nil {
			return err
		}
		outcome, err := newService(1).Run(cmd.Context(), app.RunRequest{
			SubjectID: core.SubjectID(subject),
			Group:     core.GroupLabel(group),
			Coords:    coords,
			SC:        sc,
			Params:    p,
		})
		if err != nil {
			return err
		}

		if out != "" {
			if err := excel.NewWriter().WriteRun(cmd.Context(), out, outcome.Result, outcome.Matrices); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			logger.Info("wrote %s", out)
		}
		if csvDir != "" {
			if err := writeMatricesCSV(csvDir, outcome.Matrices); err != nil {
				return err
			}
		}

		md := report.RunMarkdown(outcome.Result)
		if html {
			_, err = cmd.OutOrStdout().Write(report.ToHTML(md))
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	}

	f := cmd.Flags()
	f.StringVar(&coordsPath, "coords", "", "Region centres of gravity (N×3)")
	f.StringVar(&scPath, "sc", "", "Structural connectivity (N×N)")
	f.StringVar(&subject, "subject", "subject", "Subject identifier")
	f.StringVar(&group, "group", "", "Group label (HC, MCI, AD)")
	f.StringVar(&out, "out", "", "Write an .xlsx workbook with the bin table and matrices")
	f.StringVar(&csvDir, "csv-dir", "", "Write Clong.csv and EDR_Clong.csv to this directory")
	f.BoolVar(&html, "html", false, "Render the report as HTML")
	_ = cmd.MarkFlagRequired("coords")
	_ = cmd.MarkFlagRequired("sc")
	return cmd
}

func newCompareCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "compare <clong-a> <clong-b>",
		Short: "Compare the long-range masks of two Clong matrices",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := newReader()
			a, err := reader.ReadMatrix(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			b, err := reader.ReadMatrix(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			cmp, err := distrule.CompareMasks(a, b)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cmp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "A: %d connections (%.2f%%)\nB: %d connections (%.2f%%)\n",
				cmp.CountA, cmp.PercentA, cmp.CountB, cmp.PercentB)
			fmt.Fprintf(cmd.OutOrStdout(), "shared %d, union %d, Jaccard %.4f\n",
				cmp.Intersection, cmp.Union, cmp.Jaccard)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the comparison as JSON")
	return cmd
}

func newCohortCmd() *cobra.Command {
	var workers int
	var outDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "cohort <manifest.yaml>",
		Short: "Run every subject of a cohort manifest and summarise by group",
		Long: `Run the pipeline for every subject listed in a YAML manifest. All subjects
share the manifest's coordinates and parameters; flags override parameters.

Example manifest:
  name: adni
  coordinates: cog.csv
  params:
    nstd: 5
  subjects:
    - id: 002_S_0413
      group: HC
      sc: sc/002_S_0413.csv`,
		Args: cobra.ExactArgs(1),
	}
	pf := addParamFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		m, err := run.LoadManifest(args[0])
		if err != nil {
			return err
		}
		// manifest params replace the environment defaults; flags override both
		params, err := pf.resolveOver(cmd, m.Params)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		reader := newReader()
		coords, err := reader.ReadCoordinates(ctx, m.Resolve(m.Coordinates))
		if err != nil {
			return fmt.Errorf("coordinates: %w", err)
		}
		req := app.CohortRequest{
			ID:           core.CohortID(m.Name),
			Coords:       coords,
			Params:       params,
			ForceCompute: force,
		}
		for _, s := range m.Subjects {
			sc, err := reader.ReadMatrix(ctx, m.Resolve(s.SC))
			if err != nil {
				return fmt.Errorf("subject %s: %w", s.ID, err)
			}
			req.Subjects = append(req.Subjects, app.SubjectInput{ID: s.ID, Group: s.Group, SC: sc})
		}

		out, err := newService(workers).RunCohort(ctx, req)
		if err != nil {
			return err
		}
		if outDir != "" {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			writer := excel.NewWriter()
			for _, so := range out.Subjects {
				if so.Err != nil {
					continue
				}
				path := filepath.Join(outDir, so.SubjectID.String()+".xlsx")
				if err := writer.WriteRun(ctx, path, so.Outcome.Result, so.Outcome.Matrices); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
			}
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), report.CohortMarkdown(m.Name, out))
		return err
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "Subjects computed concurrently")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write one workbook per subject to this directory")
	cmd.Flags().BoolVar(&force, "force", false, "Recompute even when an identical run is cached")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	spec := testkit.DefaultConnectomeSpec()
	var outDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic connectome (cog.csv and sc.csv) for demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			c := testkit.GenerateConnectome(spec)
			if err := excel.WriteMatrixCSV(filepath.Join(outDir, "cog.csv"), c.Coords); err != nil {
				return err
			}
			if err := excel.WriteMatrixCSV(filepath.Join(outDir, "sc.csv"), c.SC); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d regions to %s (lambda %.3f, %d planted shortcuts)\n",
				spec.Regions, outDir, spec.Lambda, len(c.Shortcuts))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&spec.Regions, "regions", spec.Regions, "Number of regions")
	f.Float64Var(&spec.Lambda, "lambda", spec.Lambda, "True decay rate")
	f.Float64Var(&spec.Noise, "noise", spec.Noise, "Log-normal noise sigma")
	f.IntVar(&spec.Shortcuts, "shortcuts", spec.Shortcuts, "Planted long-range pairs")
	f.Uint64Var(&spec.Seed, "seed", spec.Seed, "Random seed")
	f.StringVar(&outDir, "out-dir", ".", "Output directory")
	return cmd
}

func writeMatricesCSV(dir string, m *run.Matrices) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := excel.WriteMatrixCSV(filepath.Join(dir, "Clong.csv"), m.Clong); err != nil {
		return err
	}
	return excel.WriteMatrixCSV(filepath.Join(dir, "EDR_Clong.csv"), m.EDRClong)
}

func statSlice(vals []float64) []run.Stat {
	out := make([]run.Stat, len(vals))
	for i, v := range vals {
		out[i] = run.Stat(v)
	}
	return out
}
