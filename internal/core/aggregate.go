package core

import (
	"sort"
	"time"
)

// Filter restricts which records participate in aggregation.
// An empty member list means all members; zero From/To leave the range open.
type Filter struct {
	Members []string
	From    time.Time
	To      time.Time
}

// Match reports whether a record passes the filter. Date bounds are inclusive.
func (f Filter) Match(r Record) bool {
	if len(f.Members) > 0 {
		found := false
		for _, m := range f.Members {
			if m == r.Member {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	return true
}

func filterRecords(records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// MonthRow is one aggregate row: a member (or the whole team when Member is
// empty) in one calendar month.
type MonthRow struct {
	Member    string
	Month     time.Time
	Averages  map[Field]Metric // mean of each percentage field, null-aware
	Completed float64
	ManHours  float64
}

// TaskRow is one (member, task) aggregate.
type TaskRow struct {
	Member       string
	Task         string
	Averages     map[Field]Metric
	Completed    float64
	ManHours     float64
	Observations int
}

// accumulator collects sums for one group.
type accumulator struct {
	sums      map[Field]float64
	counts    map[Field]int
	completed float64
	manHours  float64
	n         int
}

func newAccumulator() *accumulator {
	return &accumulator{sums: make(map[Field]float64), counts: make(map[Field]int)}
}

func (a *accumulator) add(r Record) {
	for f, m := range r.Percents {
		if m.Valid {
			a.sums[f] += m.Value
			a.counts[f]++
		}
	}
	a.completed += r.Completed
	if r.ManHours.Valid {
		a.manHours += r.ManHours.Value
	}
	a.n++
}

// averages yields the per-field means; fields with no valid samples stay null.
func (a *accumulator) averages() map[Field]Metric {
	out := make(map[Field]Metric, len(a.sums))
	for f, sum := range a.sums {
		if c := a.counts[f]; c > 0 {
			out[f] = Metric{Value: sum / float64(c), Valid: true}
		}
	}
	return out
}

type memberMonthKey struct {
	member string
	month  time.Time
}

// AggregateMemberMonthly filters records, then groups by (member, calendar
// month). Output is sorted by month ascending, then by member in first-seen
// input order, so chart rendering is stable across recomputations.
func AggregateMemberMonthly(records []Record, f Filter) []MonthRow {
	filtered := filterRecords(records, f)

	groups := make(map[memberMonthKey]*accumulator)
	memberOrder := make([]string, 0)
	memberSeen := make(map[string]bool)
	monthSet := make(map[time.Time]bool)

	for _, r := range filtered {
		if !memberSeen[r.Member] {
			memberSeen[r.Member] = true
			memberOrder = append(memberOrder, r.Member)
		}
		k := memberMonthKey{member: r.Member, month: r.Month()}
		monthSet[k.month] = true
		acc := groups[k]
		if acc == nil {
			acc = newAccumulator()
			groups[k] = acc
		}
		acc.add(r)
	}

	months := sortedMonths(monthSet)

	rows := make([]MonthRow, 0, len(groups))
	for _, month := range months {
		for _, member := range memberOrder {
			acc, ok := groups[memberMonthKey{member: member, month: month}]
			if !ok {
				continue
			}
			rows = append(rows, MonthRow{
				Member:    member,
				Month:     month,
				Averages:  acc.averages(),
				Completed: acc.completed,
				ManHours:  acc.manHours,
			})
		}
	}
	return rows
}

// AggregateTeamMonthly folds per-member monthly rows into one row per month:
// percentage fields average the member averages, counts and man-hours sum.
func AggregateTeamMonthly(memberRows []MonthRow) []MonthRow {
	type teamAcc struct {
		sums      map[Field]float64
		counts    map[Field]int
		completed float64
		manHours  float64
	}
	groups := make(map[time.Time]*teamAcc)
	monthSet := make(map[time.Time]bool)

	for _, row := range memberRows {
		acc := groups[row.Month]
		if acc == nil {
			acc = &teamAcc{sums: make(map[Field]float64), counts: make(map[Field]int)}
			groups[row.Month] = acc
			monthSet[row.Month] = true
		}
		for f, m := range row.Averages {
			if m.Valid {
				acc.sums[f] += m.Value
				acc.counts[f]++
			}
		}
		acc.completed += row.Completed
		acc.manHours += row.ManHours
	}

	rows := make([]MonthRow, 0, len(groups))
	for _, month := range sortedMonths(monthSet) {
		acc := groups[month]
		avgs := make(map[Field]Metric, len(acc.sums))
		for f, sum := range acc.sums {
			if c := acc.counts[f]; c > 0 {
				avgs[f] = Metric{Value: sum / float64(c), Valid: true}
			}
		}
		rows = append(rows, MonthRow{
			Month:     month,
			Averages:  avgs,
			Completed: acc.completed,
			ManHours:  acc.manHours,
		})
	}
	return rows
}

type memberTaskKey struct {
	member string
	task   string
}

// AggregateMemberTask filters records, then groups by (member, task).
// Output order follows first appearance of the member, then of the task.
func AggregateMemberTask(records []Record, f Filter) []TaskRow {
	filtered := filterRecords(records, f)

	groups := make(map[memberTaskKey]*accumulator)
	order := make([]memberTaskKey, 0)

	for _, r := range filtered {
		k := memberTaskKey{member: r.Member, task: r.Task}
		acc := groups[k]
		if acc == nil {
			acc = newAccumulator()
			groups[k] = acc
			order = append(order, k)
		}
		acc.add(r)
	}

	// Stable regroup: member first-seen, then task first-seen within member.
	memberRank := make(map[string]int)
	for _, k := range order {
		if _, ok := memberRank[k.member]; !ok {
			memberRank[k.member] = len(memberRank)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return memberRank[order[i].member] < memberRank[order[j].member]
	})

	rows := make([]TaskRow, 0, len(order))
	for _, k := range order {
		acc := groups[k]
		rows = append(rows, TaskRow{
			Member:       k.member,
			Task:         k.task,
			Averages:     acc.averages(),
			Completed:    acc.completed,
			ManHours:     acc.manHours,
			Observations: acc.n,
		})
	}
	return rows
}

// MemberList returns distinct members in first-seen order.
func MemberList(records []Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.Member] {
			seen[r.Member] = true
			out = append(out, r.Member)
		}
	}
	return out
}

func sortedMonths(set map[time.Time]bool) []time.Time {
	months := make([]time.Time, 0, len(set))
	for m := range set {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}
