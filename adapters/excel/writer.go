package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"neurodyn/domain/run"
	"neurodyn/ports"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// Writer exports a run as one workbook: a summary sheet, the bin table and
// one sheet per dense matrix.
type Writer struct{}

// NewWriter creates a workbook writer
func NewWriter() ports.MatrixWriter {
	return &Writer{}
}

// WriteRun writes result and matrices to path. Nil matrices are skipped.
func (w *Writer) WriteRun(ctx context.Context, path string, result *run.Result, matrices *run.Matrices) error {
	if result == nil {
		return fmt.Errorf("nothing to write: result is nil")
	}
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if idx, err := f.GetSheetIndex(SheetSummary); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := writeRows(f, SheetSummary, summaryRows(result)); err != nil {
		return err
	}
	if err := writeSheet(f, SheetBins, binRows(result.Bins)); err != nil {
		return err
	}

	if matrices != nil {
		named := []struct {
			sheet string
			m     *mat.Dense
		}{
			{SheetRR, matrices.RR},
			{SheetCExp, matrices.CExp},
			{SheetClong, matrices.Clong},
			{SheetEDRClong, matrices.EDRClong},
		}
		for _, nm := range named {
			if err := ctx.Err(); err != nil {
				return err
			}
			if nm.m == nil {
				continue
			}
			if err := writeSheet(f, nm.sheet, matrixRows(nm.m)); err != nil {
				return fmt.Errorf("sheet %s: %w", nm.sheet, err)
			}
		}
	}

	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func summaryRows(r *run.Result) [][]interface{} {
	rows := [][]interface{}{
		{"field", "value"},
		{"run_id", r.ID.String()},
		{"subject_id", r.SubjectID.String()},
		{"group", r.Group.String()},
		{"fingerprint", r.Fingerprint.String()},
		{"regions", r.Regions},
		{"fitted_lambda", r.FittedLambda},
		{"lambda", r.Lambda},
		{"nstd", r.Params.NSTD},
		{"bins", r.Params.Bins},
		{"nr_ini", r.Params.NRini},
		{"nr_fin", r.Params.NRfin},
		{"dist_range", r.Params.DistRange},
		{"a1", r.Params.A1},
		{"long_range_connections", r.Connections},
		{"total_pairs", r.TotalPairs},
		{"percent_long_range", r.Percent},
	}
	for _, m := range r.Matrices {
		rows = append(rows,
			[]interface{}{m.Name + "_min", m.Min},
			[]interface{}{m.Name + "_max", m.Max},
			[]interface{}{m.Name + "_mean", m.Mean},
			[]interface{}{m.Name + "_std", m.Std},
		)
	}
	return rows
}

func binRows(bins []run.BinRow) [][]interface{} {
	rows := [][]interface{}{{"bin", "lo", "hi", "count", "mean", "std", "max", "selected", "threshold", "connections"}}
	for _, b := range bins {
		rows = append(rows, []interface{}{
			b.Bin, b.Lo, b.Hi, b.Count,
			cellValue(b.Mean.Float()), cellValue(b.Std.Float()), cellValue(b.Max.Float()),
			b.Selected, cellValue(b.Threshold.Float()), b.Connections,
		})
	}
	return rows
}

func matrixRows(m *mat.Dense) [][]interface{} {
	r, c := m.Dims()
	rows := make([][]interface{}, r)
	for i := 0; i < r; i++ {
		row := make([]interface{}, c)
		for j := 0; j < c; j++ {
			row[j] = cellValue(m.At(i, j))
		}
		rows[i] = row
	}
	return rows
}

// cellValue keeps NaN and Inf out of the workbook; excelize rejects them
func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

// WriteMatrixCSV writes m as a plain comma-separated table without header
func WriteMatrixCSV(path string, m mat.Matrix) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	r, c := m.Dims()
	record := make([]string, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
