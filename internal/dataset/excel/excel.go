// Package excel loads uploaded Excel workbooks into raw tables.
package excel

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"kpiboard/internal/core"
)

var (
	ErrNoSheets   = errors.New("workbook has no sheets")
	ErrEmptySheet = errors.New("sheet has no header row")
)

// Workbook wraps an open excelize file.
type Workbook struct {
	f *excelize.File
}

// Open reads a workbook from an uploaded stream. The caller owns Close.
func Open(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &Workbook{f: f}, nil
}

// Close releases the underlying file.
func (w *Workbook) Close() error { return w.f.Close() }

// Sheets lists the workbook's sheet names in file order.
func (w *Workbook) Sheets() []string { return w.f.GetSheetList() }

// Table reads one sheet into a raw table. The first non-empty row becomes the
// header; blank headers get positional names so every cell stays addressable.
// An empty sheet name selects the first sheet.
func (w *Workbook) Table(sheet string) (core.RawTable, error) {
	if sheet == "" {
		names := w.Sheets()
		if len(names) == 0 {
			return core.RawTable{}, ErrNoSheets
		}
		sheet = names[0]
	}

	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return core.RawTable{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	// Skip leading fully-blank rows before the header.
	start := 0
	for start < len(rows) && isBlankRow(rows[start]) {
		start++
	}
	if start >= len(rows) {
		return core.RawTable{}, fmt.Errorf("%w: %q", ErrEmptySheet, sheet)
	}

	header := rows[start]
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		columns[i] = h
	}

	data := make([][]string, 0, len(rows)-start-1)
	for _, row := range rows[start+1:] {
		if isBlankRow(row) {
			continue
		}
		data = append(data, row)
	}

	return core.RawTable{Columns: columns, Rows: data}, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
