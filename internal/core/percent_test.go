package core

import (
	"math"
	"strconv"
	"testing"
)

func metricValues(ms []Metric) []float64 {
	out := make([]float64, 0, len(ms))
	for _, m := range ms {
		if m.Valid {
			out = append(out, m.Value)
		}
	}
	return out
}

func TestNormalizeFractionsScaleBy100(t *testing.T) {
	got, dropped := NormalizePercentColumn([]string{"0.95", "0.5", "1", "0.001"})
	if dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}
	want := []float64{95, 50, 100, 0.1}
	vals := metricValues(got)
	for i, w := range want {
		if math.Abs(vals[i]-w) > 1e-9 {
			t.Fatalf("value %d: want %v got %v", i, w, vals[i])
		}
	}
}

func TestNormalizeAlreadyScaledIsNoOp(t *testing.T) {
	in := []string{"90", "95", "100", "12.5"}
	got, _ := NormalizePercentColumn(in)
	want := []float64{90, 95, 100, 12.5}
	for i, w := range want {
		if !got[i].Valid || got[i].Value != w {
			t.Fatalf("value %d: want %v got %+v", i, w, got[i])
		}
	}

	// Applying the normalizer to its own output must not rescale.
	again := make([]string, len(want))
	for i, v := range want {
		again[i] = formatFloat(v)
	}
	got2, _ := NormalizePercentColumn(again)
	for i, w := range want {
		if got2[i].Value != w {
			t.Fatalf("second pass changed value %d: want %v got %v", i, w, got2[i].Value)
		}
	}
}

func TestNormalizePercentSuffix(t *testing.T) {
	got, dropped := NormalizePercentColumn([]string{"95%", " 100% ", "87.5%", "12"})
	if dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}
	want := []float64{95, 100, 87.5, 12}
	for i, w := range want {
		if !got[i].Valid || got[i].Value != w {
			t.Fatalf("value %d: want %v got %+v", i, w, got[i])
		}
	}
}

func TestNormalizeAllZeroPassesThrough(t *testing.T) {
	got, _ := NormalizePercentColumn([]string{"0", "0", "0"})
	for i, m := range got {
		if !m.Valid || m.Value != 0 {
			t.Fatalf("value %d: want 0 unchanged, got %+v", i, m)
		}
	}
}

func TestNormalizeBlanksAndGarbage(t *testing.T) {
	got, dropped := NormalizePercentColumn([]string{"", "n/a", "0.5"})
	if dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
	if got[0].Valid || got[1].Valid {
		t.Fatalf("blank and garbage cells must be null: %+v", got)
	}
	if !got[2].Valid || got[2].Value != 50 {
		t.Fatalf("fraction with nulls should still scale: %+v", got[2])
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" 3.14 ", 3.14, true},
		{"1,250", 1250, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseNumber(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
