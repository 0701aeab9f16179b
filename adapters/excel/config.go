package excel

import (
	"phenoprofile/adapters/datareadiness/coercer"
)

// ExcelConfig holds configuration for a CSV or XLSX data source
type ExcelConfig struct {
	FilePath       string                 `json:"file_path"`
	Sheet          string                 `json:"sheet"` // empty means the first sheet
	CoercionConfig coercer.CoercionConfig `json:"coercion_config"`
}

// DefaultExcelConfig returns sensible defaults for file ingestion
func DefaultExcelConfig(path string) ExcelConfig {
	return ExcelConfig{
		FilePath:       path,
		CoercionConfig: coercer.DefaultCoercionConfig(),
	}
}
