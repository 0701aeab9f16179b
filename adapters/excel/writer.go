package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"phenoprofile/domain/profile"
	"phenoprofile/ports"
)

var (
	_ ports.ResultWriter = (*CSVWriter)(nil)
	_ ports.ResultWriter = (*XLSXWriter)(nil)
)

// CSVWriter writes each result table to <dir>/<dataset>_<table>.csv
type CSVWriter struct {
	dir     string
	dataset string
	written []string
}

// NewCSVWriter creates the output directory if needed
func NewCSVWriter(dir, dataset string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &CSVWriter{dir: dir, dataset: dataset}, nil
}

// Files lists the paths written so far
func (w *CSVWriter) Files() []string { return w.written }

func (w *CSVWriter) write(ctx context.Context, s sheet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.csv", w.dataset, s.name))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(s.header); err != nil {
		return err
	}
	for _, row := range s.rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = cellString(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.written = append(w.written, path)
	return nil
}

func (w *CSVWriter) WriteStats(ctx context.Context, rows []profile.GroupStats) error {
	return w.write(ctx, statsSheet(rows))
}

func (w *CSVWriter) WriteCurve(ctx context.Context, points []profile.CurvePoint) error {
	return w.write(ctx, curveSheet(points))
}

func (w *CSVWriter) WriteSubjects(ctx context.Context, rows []profile.SubjectResult) error {
	return w.write(ctx, subjectsSheet(rows))
}

func (w *CSVWriter) WriteTwoTier(ctx context.Context, rows []profile.TwoTierSubjectResult) error {
	return w.write(ctx, twoTierSheet(rows))
}

func (w *CSVWriter) WriteTallies(ctx context.Context, multiplier float64, rows []profile.ParameterTally) error {
	return w.write(ctx, talliesSheet(multiplier, rows))
}

func (w *CSVWriter) WriteCombinations(ctx context.Context, multiplier float64, rows []profile.TaskCombination) error {
	return w.write(ctx, combinationsSheet(multiplier, rows))
}

// Close is a no-op; every table is flushed as it is written
func (w *CSVWriter) Close() error { return nil }

// XLSXWriter collects every result table as a sheet of one workbook, saved on Close
type XLSXWriter struct {
	path  string
	file  *excelize.File
	fresh bool // the default sheet has not been used yet
}

// NewXLSXWriter prepares a workbook that will be saved at path
func NewXLSXWriter(path string) (*XLSXWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &XLSXWriter{path: path, file: excelize.NewFile(), fresh: true}, nil
}

func (w *XLSXWriter) write(ctx context.Context, s sheet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.fresh {
		if err := w.file.SetSheetName(w.file.GetSheetName(0), s.name); err != nil {
			return err
		}
		w.fresh = false
	} else if _, err := w.file.NewSheet(s.name); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", s.name, err)
	}

	header := make([]interface{}, len(s.header))
	for i, h := range s.header {
		header[i] = h
	}
	if err := w.file.SetSheetRow(s.name, "A1", &header); err != nil {
		return err
	}
	for i, row := range s.rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(s.name, cell, &cells); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", s.name, err)
		}
	}
	return nil
}

func (w *XLSXWriter) WriteStats(ctx context.Context, rows []profile.GroupStats) error {
	return w.write(ctx, statsSheet(rows))
}

func (w *XLSXWriter) WriteCurve(ctx context.Context, points []profile.CurvePoint) error {
	return w.write(ctx, curveSheet(points))
}

func (w *XLSXWriter) WriteSubjects(ctx context.Context, rows []profile.SubjectResult) error {
	return w.write(ctx, subjectsSheet(rows))
}

func (w *XLSXWriter) WriteTwoTier(ctx context.Context, rows []profile.TwoTierSubjectResult) error {
	return w.write(ctx, twoTierSheet(rows))
}

func (w *XLSXWriter) WriteTallies(ctx context.Context, multiplier float64, rows []profile.ParameterTally) error {
	return w.write(ctx, talliesSheet(multiplier, rows))
}

func (w *XLSXWriter) WriteCombinations(ctx context.Context, multiplier float64, rows []profile.TaskCombination) error {
	return w.write(ctx, combinationsSheet(multiplier, rows))
}

// Close saves the workbook
func (w *XLSXWriter) Close() error {
	defer w.file.Close()
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", w.path, err)
	}
	return nil
}
