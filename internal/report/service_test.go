package report

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"kpiboard/internal/core"
)

func testTable() core.RawTable {
	return core.RawTable{
		Columns: []string{"Date", "Member", "Quality", "Task"},
		Rows: [][]string{
			{"2025-01-05", "Alice", "90", "T-1"},
			{"2025-01-20", "Alice", "95", "T-1"},
			{"2025-02-02", "Bob", "100", "T-2"},
		},
	}
}

func testMapping(withTask bool) core.Mapping {
	m := core.Mapping{
		core.FieldDate:    "Date",
		core.FieldMember:  "Member",
		core.FieldQuality: "Quality",
	}
	if withTask {
		m[core.FieldTaskID] = "Task"
	}
	return m
}

func TestBuildFullReport(t *testing.T) {
	rep, err := Build(context.Background(), testTable(), testMapping(true), "", core.Filter{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rep.MemberMonthly) != 2 {
		t.Fatalf("member monthly rows = %d", len(rep.MemberMonthly))
	}
	if len(rep.TeamMonthly) != 2 {
		t.Fatalf("team monthly rows = %d", len(rep.TeamMonthly))
	}
	if !rep.HasTasks || len(rep.MemberTask) != 2 {
		t.Fatalf("task rows = %d (has=%v)", len(rep.MemberTask), rep.HasTasks)
	}
	if !reflect.DeepEqual(rep.Members, []string{"Alice", "Bob"}) {
		t.Fatalf("members = %v", rep.Members)
	}
}

func TestBuildWithoutTaskColumnIsNotApplicable(t *testing.T) {
	rep, err := Build(context.Background(), testTable(), testMapping(false), "", core.Filter{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rep.HasTasks {
		t.Fatalf("HasTasks should be false")
	}
	if rep.MemberTask != nil {
		t.Fatalf("per-task table must be absent, not empty: %v", rep.MemberTask)
	}
}

func TestBuildMappingError(t *testing.T) {
	m := testMapping(false)
	delete(m, core.FieldMember)
	_, err := Build(context.Background(), testTable(), m, "", core.Filter{})
	if !errors.Is(err, core.ErrUnmappedMember) {
		t.Fatalf("expected ErrUnmappedMember, got %v", err)
	}
}

func TestBuildZeroUsableRows(t *testing.T) {
	// Explicit layout no row satisfies: everything drops, nothing renders.
	rep, err := Build(context.Background(), testTable(), testMapping(true), "02.01.2006", core.Filter{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rep.Stats.RowsUsed != 0 || rep.Stats.DroppedDates != 3 {
		t.Fatalf("stats = %+v", rep.Stats)
	}
	if len(rep.MemberMonthly) != 0 || len(rep.TeamMonthly) != 0 {
		t.Fatalf("no aggregates expected with zero usable rows")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build(context.Background(), testTable(), testMapping(true), "", core.Filter{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, err := Build(context.Background(), testTable(), testMapping(true), "", core.Filter{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different reports")
	}
}
