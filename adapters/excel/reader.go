package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"neurodyn/domain/core"
	"neurodyn/internal"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// DataReader reads coordinates and connectivity matrices from .xlsx and .csv
// files. A non-numeric first row is taken as a header and leading non-numeric
// columns as region labels; both are dropped.
type DataReader struct {
	config ExcelConfig
	logger *internal.Logger
}

// NewDataReader creates a reader that handles both Excel and CSV files
func NewDataReader(config ExcelConfig, logger *internal.Logger) *DataReader {
	if config.Comma == 0 {
		config.Comma = ','
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{config: config, logger: logger}
}

// ReadCoordinates reads an N×3 coordinate table
func (r *DataReader) ReadCoordinates(ctx context.Context, path string) (*mat.Dense, error) {
	t, err := r.readTable(ctx, path)
	if err != nil {
		return nil, err
	}
	if t.cols != 3 {
		return nil, core.NewShapeError("coordinates in "+path, t.rows, 3, t.rows, t.cols)
	}
	return mat.NewDense(t.rows, t.cols, t.data), nil
}

// ReadMatrix reads a square N×N matrix
func (r *DataReader) ReadMatrix(ctx context.Context, path string) (*mat.Dense, error) {
	t, err := r.readTable(ctx, path)
	if err != nil {
		return nil, err
	}
	if t.rows != t.cols {
		return nil, core.NewShapeError("matrix in "+path, t.rows, t.rows, t.rows, t.cols)
	}
	return mat.NewDense(t.rows, t.cols, t.data), nil
}

func (r *DataReader) readTable(ctx context.Context, path string) (*table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, core.NewNotFoundError("connectome file", path)
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		rows, err = r.readCSVRows(path)
	case ".xlsx", ".xlsm":
		rows, err = r.readExcelRows(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	t, err := parseTable(rows, r.config.EmptyAsNaN)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.logger.Debug("[DataReader] %s read in %.2fms (%dx%d)",
		filepath.Base(path), float64(time.Since(start).Nanoseconds())/1e6, t.rows, t.cols)
	return t, nil
}

func (r *DataReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file %s has no sheets", path)
	}
	if !contains(sheets, sheet) {
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = r.config.Comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// parseTable strips blank rows, a header row and label columns, then parses
// the remaining cells as float64.
func parseTable(rows [][]string, emptyAsNaN bool) (*table, error) {
	var body [][]string
	for _, row := range rows {
		trimmed := make([]string, len(row))
		blank := true
		for i, cell := range row {
			trimmed[i] = strings.TrimSpace(cell)
			if trimmed[i] != "" {
				blank = false
			}
		}
		if !blank {
			body = append(body, trimTrailingEmpty(trimmed))
		}
	}
	if len(body) == 0 {
		return nil, core.NewConfigurationError("table", "has no data rows")
	}

	if len(body) > 1 {
		k := labelColumns(body[1:])
		if k > len(body[0]) {
			k = len(body[0])
		}
		if !allNumeric(body[0][k:]) {
			body = body[1:]
		}
	}
	skip := labelColumns(body)

	cols := len(body[0]) - skip
	if cols <= 0 {
		return nil, core.NewConfigurationError("table", "has no numeric columns")
	}
	t := &table{rows: len(body), cols: cols, data: make([]float64, 0, len(body)*cols)}
	for i, row := range body {
		if len(row)-skip > cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", core.ErrShapeMismatch, i+1, len(row)-skip, cols)
		}
		for j := 0; j < cols; j++ {
			cell := ""
			if skip+j < len(row) {
				cell = row[skip+j]
			}
			v, err := parseCell(cell, emptyAsNaN)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, skip+j+1, err)
			}
			t.data = append(t.data, v)
		}
	}
	return t, nil
}

// labelColumns counts the leading columns that hold no number in any row
func labelColumns(rows [][]string) int {
	n := 0
	for {
		for _, row := range rows {
			if n >= len(row) {
				return n
			}
			if _, err := strconv.ParseFloat(row[n], 64); err == nil {
				return n
			}
		}
		n++
	}
}

func parseCell(cell string, emptyAsNaN bool) (float64, error) {
	if cell == "" {
		if emptyAsNaN {
			return math.NaN(), nil
		}
		return 0, fmt.Errorf("%w: empty cell", core.ErrNonFinite)
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", cell)
	}
	return v, nil
}

func allNumeric(cells []string) bool {
	for _, c := range cells {
		if c == "" {
			continue
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			return false
		}
	}
	return true
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return row[:end]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
