package excel

// RawData is a sheet as read from disk, before coercion
type RawData struct {
	Headers []string   // Column headers, lower-cased
	Rows    [][]string // Data rows, padded to the header width
}
