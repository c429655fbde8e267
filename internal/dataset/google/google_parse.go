package google

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"kpiboard/internal/core"
)

var errNoHeader = errors.New("no header row found")

// tableFromValues converts a values matrix (as returned by the Sheets API)
// into a raw table. The first non-empty row is the header; blank headers get
// positional names. Rows are padded to the header width.
func tableFromValues(values [][]interface{}) (core.RawTable, error) {
	start := 0
	for start < len(values) && isBlank(values[start]) {
		start++
	}
	if start >= len(values) {
		return core.RawTable{}, errNoHeader
	}

	header := toStrings(values[start])
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		columns[i] = h
	}

	rows := make([][]string, 0, len(values)-start-1)
	for _, v := range values[start+1:] {
		if isBlank(v) {
			continue
		}
		rows = append(rows, toStrings(v))
	}

	return core.RawTable{Columns: columns, Rows: rows}, nil
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		switch t := v.(type) {
		case string:
			out[i] = t
		case float64:
			out[i] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(t)
		case nil:
			out[i] = ""
		default:
			out[i] = fmt.Sprintf("%v", t)
		}
	}
	return out
}

func isBlank(row []interface{}) bool {
	for _, v := range toStrings(row) {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
