package dataset

import (
	"context"

	"kpiboard/internal/core"
)

// Source is a tabular dataset provider other than a direct file upload
// (Google Sheets, the built-in sample fixture, ...).
type Source interface {
	// Sheets lists the sheet names available from the source.
	Sheets(ctx context.Context) ([]string, error)

	// Table reads one sheet into a raw table. An empty sheet name selects
	// the source's first sheet.
	Table(ctx context.Context, sheet string) (core.RawTable, error)
}
