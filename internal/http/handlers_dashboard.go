package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"kpiboard/internal/core"
	"kpiboard/internal/report"
)

type monthRowView struct {
	Member    string
	Month     string
	Cells     []string
	Completed string
	ManHours  string
}

type taskRowView struct {
	Member       string
	Task         string
	Cells        []string
	Completed    string
	ManHours     string
	Observations int
}

type memberOptionView struct {
	Name    string
	Checked bool
}

type metricOptionView struct {
	Value string
	Label string
}

type dashboardView struct {
	HasData bool
	Error   string

	Members []memberOptionView
	From    string
	To      string

	Metrics       []metricOptionView
	PercentLabels []string

	DropNote string

	Team       []monthRowView
	MemberRows []monthRowView

	HasTasks bool
	TaskRows []taskRowView
}

// chartMetrics lists the fields selectable for the trend chart.
func chartMetrics() []core.Field {
	return append(core.PercentFields(), core.FieldCompleted, core.FieldManHours)
}

// handleDashboard renders the summary-table partial for the session's
// dataset under the requested filters.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	id, st := s.session(w, r)

	if s.templates == nil {
		writeError(w, http.StatusInternalServerError, "templates not loaded")
		return
	}

	if !st.HasDataset() {
		s.renderDashboard(w, r, dashboardView{})
		return
	}

	filter := parseFilter(r, r.URL.Query())
	rep, err := s.getReport(r.Context(), id, st, filter)
	if err != nil {
		if errors.Is(err, core.ErrUnmappedDate) || errors.Is(err, core.ErrUnmappedMember) {
			s.renderDashboard(w, r, dashboardView{
				HasData: true,
				Error:   "Map the date and member columns to see the dashboard.",
			})
			return
		}
		slog.ErrorContext(r.Context(), "Dashboard report failed", "error", err, "session_id", id)
		s.renderDashboard(w, r, dashboardView{
			HasData: true,
			Error:   "Could not build the dashboard from the current mapping.",
		})
		return
	}

	s.renderDashboard(w, r, s.dashboardViewFrom(rep, filter))
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, vm dashboardView) {
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", vm); err != nil {
		slog.ErrorContext(r.Context(), "Dashboard template failed", "error", err, "template", "dashboard.html")
	}
}

// dashboardViewFrom formats a built report for the tables template.
func (s *Server) dashboardViewFrom(rep *report.Report, filter core.Filter) dashboardView {
	vm := dashboardView{
		HasData:  true,
		HasTasks: rep.HasTasks,
	}

	if rep.Stats.RowsUsed == 0 {
		vm.Error = "No usable rows: every date failed to parse under the configured format."
		return vm
	}

	checked := make(map[string]bool, len(filter.Members))
	for _, m := range filter.Members {
		checked[m] = true
	}
	for _, m := range rep.Members {
		vm.Members = append(vm.Members, memberOptionView{Name: m, Checked: checked[m]})
	}
	if !filter.From.IsZero() {
		vm.From = filter.From.Format(dateParam)
	}
	if !filter.To.IsZero() {
		vm.To = filter.To.Format(dateParam)
	}

	for _, f := range chartMetrics() {
		vm.Metrics = append(vm.Metrics, metricOptionView{Value: string(f), Label: f.Label()})
	}
	for _, f := range core.PercentFields() {
		vm.PercentLabels = append(vm.PercentLabels, f.Label())
	}

	dropped := rep.Stats.DroppedDates
	for _, n := range rep.Stats.DroppedValues {
		dropped += n
	}
	if dropped > 0 {
		vm.DropNote = fmt.Sprintf("%d of %d rows used; %d unparseable cells were dropped.",
			rep.Stats.RowsUsed, rep.Stats.RowsTotal, dropped)
	}

	for _, row := range rep.TeamMonthly {
		vm.Team = append(vm.Team, monthRowViewFrom(row))
	}
	for _, row := range rep.MemberMonthly {
		vm.MemberRows = append(vm.MemberRows, monthRowViewFrom(row))
	}
	for _, row := range rep.MemberTask {
		tv := taskRowView{
			Member:       row.Member,
			Task:         row.Task,
			Completed:    formatCount(row.Completed),
			ManHours:     formatCount(row.ManHours),
			Observations: row.Observations,
		}
		for _, f := range core.PercentFields() {
			tv.Cells = append(tv.Cells, formatMetric(row.Averages[f]))
		}
		vm.TaskRows = append(vm.TaskRows, tv)
	}

	return vm
}

func monthRowViewFrom(row core.MonthRow) monthRowView {
	v := monthRowView{
		Member:    row.Member,
		Month:     monthLabel(row.Month),
		Completed: formatCount(row.Completed),
		ManHours:  formatCount(row.ManHours),
	}
	for _, f := range core.PercentFields() {
		v.Cells = append(v.Cells, formatMetric(row.Averages[f]))
	}
	return v
}

type seriesDataset struct {
	Label string     `json:"label"`
	Data  []*float64 `json:"data"`
}

type seriesResponse struct {
	Metric   string          `json:"metric"`
	Labels   []string        `json:"labels"`
	Datasets []seriesDataset `json:"datasets"`
}

// TeamSeriesLabel names the synthetic team-average line in chart payloads.
const TeamSeriesLabel = "TEAM AVERAGE"

// handleSeries returns per-member monthly values for one metric as JSON,
// one dataset per member plus the synthetic team line. Months with no
// observations for a member are null, never zero.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	id, st := s.session(w, r)

	metric := core.Field(r.URL.Query().Get("metric"))
	if !isChartMetric(metric) {
		http.Error(w, "unknown metric", http.StatusBadRequest)
		return
	}

	if !st.HasDataset() {
		http.Error(w, "no dataset loaded", http.StatusConflict)
		return
	}

	filter := parseFilter(r, r.URL.Query())
	rep, err := s.getReport(r.Context(), id, st, filter)
	if err != nil {
		if errors.Is(err, core.ErrUnmappedDate) || errors.Is(err, core.ErrUnmappedMember) {
			http.Error(w, "mapping incomplete", http.StatusConflict)
			return
		}
		slog.ErrorContext(r.Context(), "Series report failed", "error", err, "session_id", id)
		http.Error(w, "could not build series", http.StatusInternalServerError)
		return
	}

	resp := buildSeries(rep, metric)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "Series encoding failed", "error", err)
	}
}

func isChartMetric(f core.Field) bool {
	for _, m := range chartMetrics() {
		if m == f {
			return true
		}
	}
	return false
}

// buildSeries aligns every member's monthly values on the union of months
// present in the filtered report.
func buildSeries(rep *report.Report, metric core.Field) seriesResponse {
	resp := seriesResponse{Metric: string(metric), Datasets: []seriesDataset{}}

	// TeamMonthly already carries the union of months in ascending order.
	monthIdx := make(map[string]int, len(rep.TeamMonthly))
	for i, row := range rep.TeamMonthly {
		label := monthLabel(row.Month)
		resp.Labels = append(resp.Labels, label)
		monthIdx[label] = i
	}

	// Member rows arrive month-ascending within first-seen member order.
	var memberOrder []string
	perMember := make(map[string][]*float64)
	for _, row := range rep.MemberMonthly {
		data, ok := perMember[row.Member]
		if !ok {
			data = make([]*float64, len(resp.Labels))
			perMember[row.Member] = data
			memberOrder = append(memberOrder, row.Member)
		}
		if i, ok := monthIdx[monthLabel(row.Month)]; ok {
			data[i] = metricValue(row, metric)
		}
	}

	for _, m := range memberOrder {
		resp.Datasets = append(resp.Datasets, seriesDataset{Label: m, Data: perMember[m]})
	}

	team := make([]*float64, len(resp.Labels))
	for _, row := range rep.TeamMonthly {
		if i, ok := monthIdx[monthLabel(row.Month)]; ok {
			team[i] = metricValue(row, metric)
		}
	}
	resp.Datasets = append(resp.Datasets, seriesDataset{Label: TeamSeriesLabel, Data: team})

	return resp
}

// metricValue extracts one chartable value from a monthly row. Percentages
// are null-aware means; completed tasks and man-hours are plain sums.
func metricValue(row core.MonthRow, metric core.Field) *float64 {
	switch metric {
	case core.FieldCompleted:
		v := row.Completed
		return &v
	case core.FieldManHours:
		v := row.ManHours
		return &v
	}
	m := row.Averages[metric]
	if !m.Valid {
		return nil
	}
	v := m.Value
	return &v
}
