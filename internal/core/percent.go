package core

import (
	"strconv"
	"strings"
)

// ParseNumber parses a numeric cell, tolerating surrounding whitespace and
// thousands separators. Blank or non-numeric cells report ok=false.
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizePercentColumn rescales a percentage-like column to 0-100.
//
// The scale decision is made once for the whole column:
//   - any non-blank cell carrying a '%' suffix puts the column in suffix
//     mode: suffixes are stripped and values parsed as-is;
//   - otherwise, if every parseable value lies in [0,1] and at least one is
//     non-zero, the column is treated as fractions and multiplied by 100;
//   - otherwise values pass through unchanged.
//
// All-zero columns have no inferable scale and pass through unchanged.
// Columns mixing 0-1 and 0-100 scales are a known limitation: whichever rule
// the distribution triggers applies to every value.
//
// Returns one Metric per input cell (Valid=false for blank or non-numeric
// cells) and the count of non-blank cells that failed to parse.
func NormalizePercentColumn(cells []string) ([]Metric, int) {
	out := make([]Metric, len(cells))
	dropped := 0

	suffixMode := false
	for _, c := range cells {
		if strings.HasSuffix(strings.TrimSpace(c), "%") {
			suffixMode = true
			break
		}
	}

	allFractional := true
	anyNonZero := false
	anyValid := false
	for i, c := range cells {
		s := strings.TrimSpace(c)
		if s == "" {
			continue
		}
		if suffixMode {
			s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		}
		v, ok := ParseNumber(s)
		if !ok {
			dropped++
			continue
		}
		out[i] = Metric{Value: v, Valid: true}
		anyValid = true
		if v < 0 || v > 1 {
			allFractional = false
		}
		if v != 0 {
			anyNonZero = true
		}
	}

	if !suffixMode && anyValid && allFractional && anyNonZero {
		for i := range out {
			if out[i].Valid {
				out[i].Value *= 100
			}
		}
	}

	return out, dropped
}
