package excel

// ExcelConfig controls how connectome files are read
type ExcelConfig struct {
	// Sheet is read from .xlsx files; empty selects the first sheet.
	Sheet string `json:"sheet" yaml:"sheet"`
	// Comma is the CSV field separator.
	Comma rune `json:"comma" yaml:"comma"`
	// EmptyAsNaN reads blank cells as NaN instead of rejecting the file.
	EmptyAsNaN bool `json:"empty_as_nan" yaml:"empty_as_nan"`
}

// DefaultExcelConfig returns sensible defaults for connectome files
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		Sheet: "Sheet1",
		Comma: ',',
	}
}
