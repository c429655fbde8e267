package session

import (
	"testing"
	"time"

	"kpiboard/internal/core"
)

func TestCreateAndGet(t *testing.T) {
	store := NewStore(10, time.Minute)
	id, st := store.Create()
	if id == "" || st == nil {
		t.Fatalf("empty session")
	}
	got, ok := store.Get(id)
	if !ok || got != st {
		t.Fatalf("lookup failed")
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatalf("unknown id should miss")
	}
}

func TestSessionExpiry(t *testing.T) {
	store := NewStore(10, 10*time.Millisecond)
	id, _ := store.Create()
	time.Sleep(20 * time.Millisecond)
	if _, ok := store.Get(id); ok {
		t.Fatalf("session should have expired with its TTL")
	}
}

func TestSetDatasetSuggestsMapping(t *testing.T) {
	_, st := NewStore(1, time.Minute).Create()
	st.SetDataset("kpi.xlsx", "Sheet1", []string{"Sheet1"}, core.RawTable{
		Columns: []string{"Date", "Assignee", "Quality Score"},
		Rows:    [][]string{{"2025-01-01", "Alice", "90"}},
	})
	if !st.HasDataset() {
		t.Fatalf("dataset not stored")
	}
	_, mapping, _ := st.Snapshot()
	if mapping[core.FieldMember] != "Assignee" {
		t.Fatalf("mapping not suggested on upload: %v", mapping)
	}

	// A new dataset resets the mapping.
	st.SetDataset("other.xlsx", "S", []string{"S"}, core.RawTable{Columns: []string{"When", "Who"}})
	_, mapping, _ = st.Snapshot()
	if mapping.Has(core.FieldMember) {
		t.Fatalf("stale mapping survived a new upload: %v", mapping)
	}
}
