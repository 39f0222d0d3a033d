// Package sink persists cleaned tables as CSV and as a dense .npy array.
package sink

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"scanclean/internal/scantable"
)

// WriteCSV writes t with a header row, columns in their original order.
func WriteCSV(w io.Writer, t scantable.Table) error {
	bw := bufio.NewWriter(w)
	if err := writeRecord(bw, t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			rec[i] = cellString(r, c)
		}
		if err := writeRecord(bw, rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func cellString(r scantable.Row, col string) string {
	v, ok := r.Field(col)
	if !ok {
		return r.Extra[col]
	}
	switch col {
	case scantable.ColChannel, scantable.ColSpectralWindow:
		if math.Abs(v) < 1<<53 && v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return FormatFloat(v)
}

// FormatFloat renders f the way Python's repr does: shortest round-trip
// digits, integral values keep a trailing ".0", NaN is empty.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs >= 1e16 || (abs != 0 && abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func writeRecord(w io.Writer, rec []string) error {
	for i, field := range rec {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if needsQuote(field) {
			field = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
		}
		if _, err := io.WriteString(w, field); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func needsQuote(s string) bool {
	return strings.ContainsAny(s, ",\"\n\r")
}
