package excel

// Workbook sheet names written by Writer
const (
	SheetSummary  = "summary"
	SheetBins     = "bins"
	SheetRR       = "rr"
	SheetCExp     = "c_exp"
	SheetClong    = "Clong"
	SheetEDRClong = "EDR_Clong"
)

// table is a rectangular block of numeric cells with the header row and
// label column already stripped
type table struct {
	rows, cols int
	data       []float64
}
