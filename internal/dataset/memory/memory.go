// Package memory provides an in-memory table source: the built-in sample
// dataset for demo mode, and arbitrary fixtures for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kpiboard/internal/core"
	"kpiboard/internal/dataset"
)

type Store struct {
	mu     sync.Mutex
	sheets []string
	tables map[string]core.RawTable
}

var _ dataset.Source = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[string]core.RawTable)}
}

// NewSample returns a store preloaded with a small demo KPI dataset,
// used when no workbook has been uploaded yet.
func NewSample() *Store {
	s := New()
	s.Add("Sample KPI", core.RawTable{
		Columns: []string{"Date", "Member", "Quality Score", "Revision Rate", "Completed", "On-time", "Efficiency", "Man-hours", "Task"},
		Rows: [][]string{
			{"2025-01-06", "Alice", "92", "8", "1", "100%", "0.88", "7.5", "T-101"},
			{"2025-01-14", "Alice", "95", "5", "1", "100%", "0.91", "6", "T-102"},
			{"2025-01-09", "Bob", "88", "12", "1", "0%", "0.79", "9", "T-103"},
			{"2025-02-03", "Alice", "97", "3", "1", "100%", "0.93", "5.5", "T-104"},
			{"2025-02-11", "Bob", "90", "10", "1", "100%", "0.84", "8", "T-105"},
			{"2025-02-20", "Carol", "93", "6", "1", "100%", "0.9", "7", "T-106"},
			{"2025-03-05", "Alice", "94", "4", "1", "100%", "0.92", "6.5", "T-107"},
			{"2025-03-12", "Bob", "86", "14", "1", "0%", "0.77", "10", "T-108"},
			{"2025-03-19", "Carol", "96", "2", "1", "100%", "0.95", "5", "T-109"},
		},
	})
	return s
}

// Add registers a named sheet.
func (s *Store) Add(name string, table core.RawTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[name]; !exists {
		s.sheets = append(s.sheets, name)
	}
	s.tables[name] = table
}

// Sheets lists registered sheet names in insertion order.
func (s *Store) Sheets(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sheets))
	copy(out, s.sheets)
	return out, nil
}

// Table returns a registered sheet. An empty name selects the first sheet.
func (s *Store) Table(_ context.Context, sheet string) (core.RawTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sheet == "" {
		if len(s.sheets) == 0 {
			return core.RawTable{}, fmt.Errorf("no sheets registered")
		}
		sheet = s.sheets[0]
	}
	t, ok := s.tables[sheet]
	if !ok {
		return core.RawTable{}, fmt.Errorf("unknown sheet %q", sheet)
	}
	return t, nil
}
