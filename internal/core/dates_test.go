package core

import (
	"testing"
	"time"
)

func TestParseDateAutoLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-14", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
		{"2025/03/14", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
		{"03/14/2025", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
		{"14-Mar-2025", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
		{"2025-03-14 09:30:00", time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in, "")
		if !ok {
			t.Fatalf("ParseDate(%q) failed", tc.in)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDateExcelSerial(t *testing.T) {
	// 45000 days after 1899-12-30 is 2023-03-15.
	got, ok := ParseDate("45000", "")
	if !ok {
		t.Fatalf("serial parse failed")
	}
	want := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("serial 45000 = %v, want %v", got, want)
	}
}

func TestParseDateExplicitLayoutOnly(t *testing.T) {
	// With an explicit layout, nothing else is tried.
	if _, ok := ParseDate("2025-03-14", "02/01/2006"); ok {
		t.Fatalf("expected failure under mismatched explicit layout")
	}
	got, ok := ParseDate("14/03/2025", "02/01/2006")
	if !ok {
		t.Fatalf("explicit layout parse failed")
	}
	if got.Day() != 14 || got.Month() != time.March {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "soon", "13/13/13/13", "99"} {
		if _, ok := ParseDate(in, ""); ok {
			t.Fatalf("expected failure for %q", in)
		}
	}
}

func TestMonthStart(t *testing.T) {
	in := time.Date(2025, 7, 23, 13, 45, 0, 0, time.UTC)
	want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if got := MonthStart(in); !got.Equal(want) {
		t.Fatalf("MonthStart = %v, want %v", got, want)
	}
}
