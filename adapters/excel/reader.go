package excel

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"phenoprofile/adapters/datareadiness/coercer"
	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
	"phenoprofile/internal"
	"phenoprofile/ports"
)

var _ ports.TableReader = (*DataReader)(nil)

// DataReader handles reading Excel and CSV data files into subject tables
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	src      io.Reader
	coercer  *coercer.NumericCoercer
	logger   *internal.Logger
}

// NewDataReader creates a reader for a file on disk; the extension picks the format
func NewDataReader(config ExcelConfig) *DataReader {
	return &DataReader{
		filePath: config.FilePath,
		fileType: FileType(config.FilePath),
		sheet:    config.Sheet,
		coercer:  coercer.NewNumericCoercer(config.CoercionConfig),
		logger:   internal.DefaultLogger,
	}
}

// NewStreamReader reads an uploaded body of the given type ("csv" or "xlsx")
func NewStreamReader(src io.Reader, fileType string) *DataReader {
	return &DataReader{
		fileType: strings.ToLower(fileType),
		src:      src,
		coercer:  coercer.NewNumericCoercer(coercer.DefaultCoercionConfig()),
		logger:   internal.DefaultLogger,
	}
}

// FileType maps a path to "csv" or "xlsx"
func FileType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return "csv"
	}
	return "xlsx"
}

// DatasetName is the file name without directory and extension
func DatasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadTable reads the data file and coerces it into a subject table
func (r *DataReader) ReadTable(ctx context.Context) (*profile.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := r.ReadRaw()
	if err != nil {
		return nil, err
	}
	return r.buildTable(raw)
}

// ReadRaw reads the header and rows without coercion
func (r *DataReader) ReadRaw() (*RawData, error) {
	r.logger.Debug("[DataReader] Starting to read %s data: %s", r.fileType, r.filePath)

	src := r.src
	if src == nil {
		f, err := os.Open(r.filePath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
			}
			return nil, fmt.Errorf("failed to open %s file: %w", r.fileType, err)
		}
		defer f.Close()
		src = f
	}

	var rows [][]string
	var err error
	readStart := time.Now()
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV(src)
	case "xlsx":
		rows, err = r.readExcel(src)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("[DataReader] %s read in %.2fms (%d rows)",
		strings.ToUpper(r.fileType), float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, core.NewMissingColumnsError("file must have a header row and at least one data row")
	}
	return processRows(rows), nil
}

func (r *DataReader) readCSV(src io.Reader) ([][]string, error) {
	// spreadsheet exports often start with a byte order mark
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *DataReader) readExcel(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, core.NewMissingColumnsError("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// processRows lower-cases the header, pads short rows and drops blank ones
func processRows(rows [][]string) *RawData {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}
	// trailing unnamed columns carry nothing
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}

	data := &RawData{Headers: headers}
	for _, row := range rows[1:] {
		padded := make([]string, len(headers))
		blank := true
		for j := range padded {
			if j < len(row) {
				padded[j] = strings.TrimSpace(row[j])
			}
			if padded[j] != "" {
				blank = false
			}
		}
		if !blank {
			data.Rows = append(data.Rows, padded)
		}
	}
	return data
}

// buildTable maps column 0 to the group, column 1 to the subject id and
// coerces the rest.
func (r *DataReader) buildTable(raw *RawData) (*profile.Table, error) {
	if len(raw.Headers) < 2 {
		return nil, core.NewMissingColumnsError("expected group and subject identifier columns")
	}
	if len(raw.Headers) < 3 {
		return nil, core.NewMissingColumnsError("no parameter columns after the identifier columns")
	}

	params := raw.Headers[2:]
	table := &profile.Table{
		GroupColumn:   raw.Headers[0],
		SubjectColumn: raw.Headers[1],
		Parameters:    append([]string(nil), params...),
		Subjects:      make([]profile.Subject, 0, len(raw.Rows)),
	}

	columns := make([][]float64, len(params))
	for j := range params {
		cells := make([]string, len(raw.Rows))
		for i, row := range raw.Rows {
			cells[i] = row[j+2]
		}
		values, analysis := r.coercer.AnalyzeColumn(cells)
		if analysis.Rejected > 0 {
			r.logger.Warn("[DataReader] column %s: %d non-numeric cells treated as missing", params[j], analysis.Rejected)
		}
		columns[j] = values
	}

	for i, row := range raw.Rows {
		group, err := core.ParseGroupID(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", core.ErrInvalidGroupID, i+2, err)
		}
		values := make([]float64, len(params))
		for j := range params {
			values[j] = columns[j][i]
		}
		table.Subjects = append(table.Subjects, profile.Subject{Group: group, ID: row[1], Values: values})
	}

	r.logger.Info("[DataReader] %s data processed (%d parameters, %d subjects, %d groups)",
		strings.ToUpper(r.fileType), len(params), len(table.Subjects), len(table.GroupIDs()))

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
