package core

import (
	"errors"
	"strings"
	"time"
)

// Field identifies one of the semantic KPI fields a raw column can be bound to.
type Field string

const (
	FieldDate       Field = "date"
	FieldMember     Field = "member"
	FieldQuality    Field = "quality_score"
	FieldRevision   Field = "revision_rate"
	FieldCompleted  Field = "completed_tasks"
	FieldOnTime     Field = "on_time_delivery"
	FieldEfficiency Field = "efficiency"
	FieldManHours   Field = "man_hours"
	FieldTaskID     Field = "task_id"
)

// AllFields lists every bindable field in presentation order.
func AllFields() []Field {
	return []Field{
		FieldDate, FieldMember, FieldQuality, FieldRevision,
		FieldCompleted, FieldOnTime, FieldEfficiency, FieldManHours, FieldTaskID,
	}
}

// PercentFields lists the fields normalized to a 0-100 scale.
func PercentFields() []Field {
	return []Field{FieldQuality, FieldRevision, FieldOnTime, FieldEfficiency}
}

// RequiredFields lists the fields that must be mapped before any aggregation.
func RequiredFields() []Field {
	return []Field{FieldDate, FieldMember}
}

// Label returns a human-readable name for a field.
func (f Field) Label() string {
	switch f {
	case FieldDate:
		return "Date"
	case FieldMember:
		return "Member / Assignee"
	case FieldQuality:
		return "Quality Score"
	case FieldRevision:
		return "Revision Rate"
	case FieldCompleted:
		return "Completed Tasks"
	case FieldOnTime:
		return "On-time Delivery"
	case FieldEfficiency:
		return "Work Efficiency"
	case FieldManHours:
		return "Man-hours Spent"
	case FieldTaskID:
		return "Task Identifier"
	}
	return string(f)
}

var (
	ErrEmptyTable      = errors.New("table has no rows")
	ErrUnmappedDate    = errors.New("date column is not mapped")
	ErrUnmappedMember  = errors.New("member column is not mapped")
	ErrColumnNotFound  = errors.New("mapped column not found in table")
	ErrUnknownField    = errors.New("unknown semantic field")
)

// Mapping binds semantic fields to raw column names. Absent entries mean the
// field is not provided by the upload.
type Mapping map[Field]string

// Has reports whether the field is bound to a non-empty column name.
func (m Mapping) Has(f Field) bool {
	return strings.TrimSpace(m[f]) != ""
}

// Validate checks that the required fields are mapped.
func (m Mapping) Validate() error {
	if !m.Has(FieldDate) {
		return ErrUnmappedDate
	}
	if !m.Has(FieldMember) {
		return ErrUnmappedMember
	}
	return nil
}

// RawTable is an uploaded sheet: a header row plus string cell rows.
// Rows may be ragged; missing trailing cells read as empty strings.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t RawTable) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of a named column, or -1.
func (t RawTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column extracts a named column as a slice of cells, one per row.
func (t RawTable) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	cells := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			cells[i] = row[idx]
		}
	}
	return cells, true
}

// Metric is a nullable float64. Invalid metrics are ignored by aggregation.
type Metric struct {
	Value float64
	Valid bool
}

// Record is one mapped and normalized row of the uploaded table.
type Record struct {
	Date      time.Time
	Member    string
	Task      string
	Percents  map[Field]Metric // keyed by PercentFields()
	Completed float64
	ManHours  Metric
}

// MonthStart truncates a date to the first of its calendar month (UTC).
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Month returns the record's calendar month bucket.
func (r Record) Month() time.Time { return MonthStart(r.Date) }
