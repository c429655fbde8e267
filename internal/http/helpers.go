package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kpiboard/internal/core"
)

const dateParam = "2006-01-02"

// parseFilter extracts member/date-range filters from query or form values.
// Malformed dates are ignored rather than rejected; an unusable bound is the
// same as no bound.
func parseFilter(r *http.Request, values url.Values) core.Filter {
	var f core.Filter
	members := values["member"]
	if v := values.Get("members"); v != "" {
		members = append(members, strings.Split(v, ",")...)
	}
	for _, m := range members {
		if m = strings.TrimSpace(m); m != "" {
			f.Members = append(f.Members, m)
		}
	}
	if v := strings.TrimSpace(values.Get("from")); v != "" {
		t, err := time.Parse(dateParam, v)
		if err != nil {
			slog.WarnContext(r.Context(), "Ignoring malformed from date", "value", v)
		} else {
			f.From = t
		}
	}
	if v := strings.TrimSpace(values.Get("to")); v != "" {
		t, err := time.Parse(dateParam, v)
		if err != nil {
			slog.WarnContext(r.Context(), "Ignoring malformed to date", "value", v)
		} else {
			f.To = t
		}
	}
	return f
}

// formatMetric renders a nullable percentage for the tables. Null stays
// visibly null instead of masquerading as zero.
func formatMetric(m core.Metric) string {
	if !m.Valid {
		return "–"
	}
	return strconv.FormatFloat(m.Value, 'f', 1, 64)
}

// formatCount renders completed-task and man-hour sums without trailing zeros.
func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// monthLabel renders a month bucket the way the tables and chart label it.
func monthLabel(t time.Time) string {
	return t.Format("2006-01")
}

// writeFragment writes an HTMX error fragment with the given status.
func writeFragment(w http.ResponseWriter, status int, class, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<div class="` + class + `">` + template.HTMLEscapeString(msg) + `</div>`))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeFragment(w, status, "error", msg)
}
