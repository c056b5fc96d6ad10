package excel

// ExcelConfig holds configuration for the spreadsheet feature source
type ExcelConfig struct {
	FilePath     string `json:"file_path"`
	Sheet        string `json:"sheet"`         // empty selects the first sheet
	TargetColumn string `json:"target_column"` // label column
}

// DefaultExcelConfig returns the configuration for a review feature sheet
func DefaultExcelConfig(path string) ExcelConfig {
	return ExcelConfig{
		FilePath:     path,
		TargetColumn: "flagged",
	}
}
