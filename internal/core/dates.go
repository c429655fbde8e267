package core

import (
	"strings"
	"time"
)

// Layouts tried during automatic date inference, most specific first.
var autoLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02-Jan-2006",
	"2-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Excel stores dates as days since 1899-12-30; unformatted date cells come
// through as plain serial numbers.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses a date cell. When layout is non-empty only that Go
// reference layout is attempted; otherwise the cell is matched against the
// automatic layout list and, failing that, interpreted as an Excel serial
// number when plausibly in date range.
func ParseDate(cell, layout string) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, false
	}

	if layout != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}

	for _, l := range autoLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}

	// Serial numbers between 1925 and 2135, roughly.
	if v, ok := ParseNumber(s); ok && v >= 9000 && v < 86000 {
		days := int(v)
		frac := v - float64(days)
		t := excelEpoch.AddDate(0, 0, days).Add(time.Duration(frac * 24 * float64(time.Hour)))
		return t, true
	}

	return time.Time{}, false
}
