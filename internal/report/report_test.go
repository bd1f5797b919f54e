package report

import (
	"errors"
	"math"
	"strings"
	"testing"

	"neurodyn/app"
	"neurodyn/domain/core"
	"neurodyn/domain/run"

	"github.com/stretchr/testify/assert"
)

func sampleResult() *run.Result {
	p := run.DefaultParams()
	p.NRini, p.NRfin = 2, 3
	return &run.Result{
		ID:           "run-1",
		SubjectID:    "s1",
		Group:        core.GroupHC,
		Params:       p,
		Regions:      4,
		FittedLambda: 0.1812,
		Lambda:       0.1812,
		Bins: []run.BinRow{
			{Bin: 1, Lo: 0, Hi: 1, Count: 4, Mean: 1},
			{Bin: 2, Lo: 1, Hi: 2, Count: 6, Mean: 0.125, Selected: true, Threshold: 0.125},
			{Bin: 3, Lo: 2, Hi: 3, Count: 6, Mean: 0.375, Std: run.Stat(math.NaN()), Selected: true, Threshold: run.Stat(math.NaN()), Connections: 2},
		},
		Connections: 2,
		TotalPairs:  12,
		Percent:     100.0 * 2 / 12,
		Matrices:    []run.MatrixStats{{Name: "Clong", Max: 0.875}},
		CreatedAt:   core.Now(),
	}
}

func TestRunMarkdown(t *testing.T) {
	md := RunMarkdown(sampleResult())

	assert.Contains(t, md, "# Distance rule: s1")
	assert.Contains(t, md, "Fitted lambda = **0.1812**")
	assert.Contains(t, md, "2 of 12 directed pairs (16.67%)")
	assert.Contains(t, md, "| 3 | 2.0 to 3.0 | 6 | 0.375 | n/a | n/a | 2 |")
	assert.NotContains(t, md, "| 1 | 0.0 to 1.0", "unselected bins are omitted")
	assert.Contains(t, md, "| Clong |")
}

func TestRunMarkdown_SkipFit(t *testing.T) {
	r := sampleResult()
	r.Params.SkipFit = true
	assert.Contains(t, RunMarkdown(r), "Fit skipped")
}

func TestCohortMarkdown(t *testing.T) {
	out := &app.CohortOutcome{
		Subjects: []app.SubjectOutcome{
			{SubjectID: "s1", Group: core.GroupHC, Outcome: &app.Outcome{Result: sampleResult(), Cached: true}},
			{SubjectID: "s2", Group: core.GroupAD, Err: errors.New("bad | input")},
		},
		Groups: []app.GroupSummary{
			{Group: core.GroupHC, Subjects: 1, LambdaMean: 0.1812, LambdaStd: 0, PercentMean: 16.67},
			{Group: core.GroupAD, Failed: 1, LambdaMean: run.Stat(math.NaN()), LambdaStd: run.Stat(math.NaN()),
				PercentMean: run.Stat(math.NaN()), PercentStd: run.Stat(math.NaN())},
		},
	}
	md := CohortMarkdown("", out)
	assert.True(t, strings.HasPrefix(md, "# Cohort\n"))
	assert.Contains(t, md, "| AD | 0 | 1 | n/a ± n/a |")
	assert.Contains(t, md, "cached")
	assert.Contains(t, md, `failed: bad \| input`)
}

func TestToHTML(t *testing.T) {
	html := string(ToHTML(RunMarkdown(sampleResult())))
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<strong>0.1812</strong>")
}
