package core

import (
	"fmt"
	"strings"
)

// BuildStats summarizes what the mapper kept and dropped.
type BuildStats struct {
	RowsTotal     int
	RowsUsed      int
	DroppedDates  int
	DroppedValues map[Field]int
}

// BuildRecords applies a column mapping to a raw table and produces
// normalized records ready for aggregation.
//
// Percentage columns are normalized column-wide (see NormalizePercentColumn).
// Rows whose date fails to parse are dropped and counted, never fatal.
// An unmapped or blank completed_tasks cell counts as one completed task.
// A missing required mapping or a mapped column absent from the table is a
// hard error: the caller must block rendering until the mapping is fixed.
func BuildRecords(t RawTable, m Mapping, dateLayout string) ([]Record, BuildStats, error) {
	stats := BuildStats{RowsTotal: t.Len(), DroppedValues: make(map[Field]int)}

	if err := m.Validate(); err != nil {
		return nil, stats, err
	}
	if t.Len() == 0 {
		return nil, stats, ErrEmptyTable
	}

	dateCells, ok := t.Column(m[FieldDate])
	if !ok {
		return nil, stats, fmt.Errorf("%w: %q", ErrColumnNotFound, m[FieldDate])
	}
	memberCells, ok := t.Column(m[FieldMember])
	if !ok {
		return nil, stats, fmt.Errorf("%w: %q", ErrColumnNotFound, m[FieldMember])
	}

	// Column-wide percentage normalization, one decision per mapped field.
	percents := make(map[Field][]Metric)
	for _, f := range PercentFields() {
		if !m.Has(f) {
			continue
		}
		cells, ok := t.Column(m[f])
		if !ok {
			return nil, stats, fmt.Errorf("%w: %q", ErrColumnNotFound, m[f])
		}
		vals, dropped := NormalizePercentColumn(cells)
		percents[f] = vals
		if dropped > 0 {
			stats.DroppedValues[f] += dropped
		}
	}

	var completedCells, manHourCells, taskCells []string
	if m.Has(FieldCompleted) {
		if completedCells, ok = t.Column(m[FieldCompleted]); !ok {
			return nil, stats, fmt.Errorf("%w: %q", ErrColumnNotFound, m[FieldCompleted])
		}
	}
	if m.Has(FieldManHours) {
		if manHourCells, ok = t.Column(m[FieldManHours]); !ok {
			return nil, stats, fmt.Errorf("%w: %q", ErrColumnNotFound, m[FieldManHours])
		}
	}
	if m.Has(FieldTaskID) {
		if taskCells, ok = t.Column(m[FieldTaskID]); !ok {
			return nil, stats, fmt.Errorf("%w: %q", ErrColumnNotFound, m[FieldTaskID])
		}
	}

	records := make([]Record, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		date, ok := ParseDate(dateCells[i], dateLayout)
		if !ok {
			stats.DroppedDates++
			continue
		}

		rec := Record{
			Date:      date,
			Member:    strings.TrimSpace(memberCells[i]),
			Percents:  make(map[Field]Metric, len(percents)),
			Completed: 1,
		}
		for f, vals := range percents {
			rec.Percents[f] = vals[i]
		}
		if completedCells != nil {
			if v, ok := ParseNumber(completedCells[i]); ok {
				rec.Completed = v
			}
		}
		if manHourCells != nil {
			if v, ok := ParseNumber(manHourCells[i]); ok {
				rec.ManHours = Metric{Value: v, Valid: true}
			} else if strings.TrimSpace(manHourCells[i]) != "" {
				stats.DroppedValues[FieldManHours]++
			}
		}
		if taskCells != nil {
			rec.Task = strings.TrimSpace(taskCells[i])
		}
		records = append(records, rec)
	}

	stats.RowsUsed = len(records)
	return records, stats, nil
}

// Header aliases used to prefill the mapping form from raw column names.
var fieldAliases = map[Field][]string{
	FieldDate:       {"date", "task date", "completed date", "completion date", "delivery date"},
	FieldMember:     {"member", "assignee", "name", "employee", "owner", "resource"},
	FieldQuality:    {"quality score", "quality", "qa score"},
	FieldRevision:   {"revision rate", "revisions", "rework rate"},
	FieldCompleted:  {"completed", "completed tasks", "tasks completed", "done"},
	FieldOnTime:     {"on-time", "on time", "on-time delivery", "ontime"},
	FieldEfficiency: {"efficiency", "work efficiency", "actual work efficiency"},
	FieldManHours:   {"man-hours", "man hours", "manhours", "hours", "hours spent"},
	FieldTaskID:     {"task", "task id", "task identifier", "ticket"},
}

// SuggestMapping guesses a mapping from raw column names by
// case-insensitive alias matching. Unmatched fields are left unmapped.
func SuggestMapping(columns []string) Mapping {
	m := make(Mapping)
	used := make(map[string]bool)
	for _, f := range AllFields() {
		for _, alias := range fieldAliases[f] {
			for _, col := range columns {
				if used[col] {
					continue
				}
				if strings.EqualFold(strings.TrimSpace(col), alias) {
					m[f] = col
					used[col] = true
					break
				}
			}
			if m.Has(f) {
				break
			}
		}
	}
	return m
}
