// Package report renders run and cohort results as Markdown, and Markdown as
// HTML for the API.
package report

import (
	"fmt"
	"math"
	"strings"

	"neurodyn/app"
	"neurodyn/domain/run"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// RunMarkdown renders a single run: parameters, fit, long-range summary,
// the selected bins and matrix statistics.
func RunMarkdown(r *run.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Distance rule: %s\n\n", r.SubjectID)
	if r.Group != "" {
		fmt.Fprintf(&b, "Group **%s**, %d regions. Run `%s`, computed %s.\n\n",
			r.Group, r.Regions, r.ID, r.CreatedAt.Time().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintf(&b, "%d regions. Run `%s`, computed %s.\n\n",
			r.Regions, r.ID, r.CreatedAt.Time().Format("2006-01-02 15:04:05"))
	}

	b.WriteString("## Fit\n\n")
	if r.Params.SkipFit {
		fmt.Fprintf(&b, "Fit skipped; using configured lambda = %.4f mm^-1.\n\n", r.Lambda)
	} else {
		fmt.Fprintf(&b, "Fitted lambda = **%.4f** mm^-1 (initial guess %.3f, histogram of %s over %d bins).\n\n",
			r.FittedLambda, r.Params.InitialLambda, r.Params.Histogram, r.Params.Bins)
	}

	b.WriteString("## Long-range connections\n\n")
	fmt.Fprintf(&b, "%d of %d directed pairs (%.2f%%) exceed mean + %g std in bins %d to %d",
		r.Connections, r.TotalPairs, r.Percent, r.Params.NSTD, r.Params.NRini, r.Params.NRfin)
	if r.Params.DistRange > 0 {
		fmt.Fprintf(&b, " beyond %g mm", r.Params.DistRange)
	}
	b.WriteString(".\n\n")

	b.WriteString("| Bin | Range (mm) | Pairs | Mean | Std | Threshold | Long-range |\n")
	b.WriteString("|----:|-----------|------:|-----:|----:|----------:|-----------:|\n")
	for _, row := range r.Bins {
		if !row.Selected {
			continue
		}
		fmt.Fprintf(&b, "| %d | %.1f to %.1f | %d | %s | %s | %s | %d |\n",
			row.Bin, row.Lo, row.Hi, row.Count,
			num(row.Mean.Float()), num(row.Std.Float()), num(row.Threshold.Float()), row.Connections)
	}
	b.WriteString("\n")

	if len(r.Matrices) > 0 {
		b.WriteString("## Matrices\n\n")
		b.WriteString("| Matrix | Min | Max | Mean | Std |\n")
		b.WriteString("|--------|----:|----:|-----:|----:|\n")
		for _, m := range r.Matrices {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", m.Name, num(m.Min), num(m.Max), num(m.Mean), num(m.Std))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CohortMarkdown renders per-group summaries followed by a row per subject.
func CohortMarkdown(title string, out *app.CohortOutcome) string {
	var b strings.Builder
	if title == "" {
		title = "Cohort"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("| Group | Subjects | Failed | Lambda | Long-range % |\n")
	b.WriteString("|-------|---------:|-------:|--------|--------------|\n")
	for _, g := range out.Groups {
		fmt.Fprintf(&b, "| %s | %d | %d | %s ± %s | %s ± %s |\n",
			g.Group, g.Subjects, g.Failed,
			num(g.LambdaMean.Float()), num(g.LambdaStd.Float()),
			num(g.PercentMean.Float()), num(g.PercentStd.Float()))
	}
	b.WriteString("\n## Subjects\n\n")
	b.WriteString("| Subject | Group | Lambda | Long-range | % | Status |\n")
	b.WriteString("|---------|-------|-------:|-----------:|--:|--------|\n")
	for _, s := range out.Subjects {
		if s.Err != nil || s.Outcome == nil {
			fmt.Fprintf(&b, "| %s | %s | | | | failed: %s |\n", s.SubjectID, s.Group, escape(errText(s.Err)))
			continue
		}
		r := s.Outcome.Result
		status := "computed"
		if s.Outcome.Cached {
			status = "cached"
		}
		fmt.Fprintf(&b, "| %s | %s | %.4f | %d | %.2f | %s |\n",
			s.SubjectID, s.Group, r.Lambda, r.Connections, r.Percent, status)
	}
	return b.String()
}

// ToHTML converts Markdown to an HTML fragment
func ToHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(md), p, renderer)
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

func errText(err error) string {
	if err == nil {
		return "no result"
	}
	return err.Error()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
