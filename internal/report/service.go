// Package report turns a raw table plus a column mapping and filters into
// the aggregate tables the dashboard renders. Building a report is a pure
// function of its inputs; every call recomputes from scratch.
package report

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"kpiboard/internal/core"
)

// Report holds everything one dashboard render needs.
type Report struct {
	MemberMonthly []core.MonthRow
	TeamMonthly   []core.MonthRow

	// MemberTask is nil when no task column is mapped: the per-task view is
	// not applicable then, which is different from an empty table.
	MemberTask []core.TaskRow
	HasTasks   bool

	// Members in first-seen input order, before filtering, for the filter UI.
	Members []string

	Stats core.BuildStats
}

// Build maps, normalizes, and aggregates in one pass. Mapping errors are
// returned; parse problems only reduce the row count (see Stats).
func Build(ctx context.Context, table core.RawTable, mapping core.Mapping, dateLayout string, filter core.Filter) (*Report, error) {
	records, stats, err := core.BuildRecords(table, mapping, dateLayout)
	if err != nil {
		return nil, fmt.Errorf("map columns: %w", err)
	}

	rep := &Report{
		HasTasks: mapping.Has(core.FieldTaskID),
		Members:  core.MemberList(records),
		Stats:    stats,
	}

	// The three aggregate tables are independent given the records; the team
	// table folds the member table, so those two share a goroutine.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep.MemberMonthly = core.AggregateMemberMonthly(records, filter)
		rep.TeamMonthly = core.AggregateTeamMonthly(rep.MemberMonthly)
		return nil
	})
	if rep.HasTasks {
		g.Go(func() error {
			rep.MemberTask = core.AggregateMemberTask(records, filter)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if stats.DroppedDates > 0 {
		slog.InfoContext(ctx, "Report built with dropped rows",
			"rows_total", stats.RowsTotal,
			"rows_used", stats.RowsUsed,
			"dropped_dates", stats.DroppedDates)
	}
	return rep, nil
}
