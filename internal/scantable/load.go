package scantable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when a recognized column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

// ErrDuplicateColumn is returned when a recognized column appears twice.
var ErrDuplicateColumn = errors.New("duplicate column")

// Load reads a CSV file into a Table.
func Load(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	t, err := Read(bytes.NewReader(b))
	if err != nil {
		return Table{}, err
	}
	t.Path = path
	return t, nil
}

// Read parses CSV from r. Recognized columns are coerced to float64; cells
// that do not parse become the missing-value marker.
func Read(r io.Reader) (Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	headers, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return Table{}, err
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	if err := checkHeader(headers); err != nil {
		return Table{}, err
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, err
		}
		rows = append(rows, parseRecord(headers, rec))
	}
	return Table{Columns: headers, Rows: rows}, nil
}

func checkHeader(headers []string) error {
	seen := make(map[string]bool, len(headers))
	var dups []string
	for _, h := range headers {
		if seen[h] && IsNumericColumn(h) {
			dups = append(dups, h)
		}
		seen[h] = true
	}
	if len(dups) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, strings.Join(dups, ", "))
	}
	var missing []string
	for _, c := range NumericColumns {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

func parseRecord(headers, rec []string) Row {
	row := NewRow(nil)
	for i, h := range headers {
		cell := ""
		if i < len(rec) {
			cell = rec[i]
		}
		if IsNumericColumn(h) {
			row.setField(h, ParseNumber(cell))
			continue
		}
		// A repeated extra column keeps its last cell.
		if row.Extra == nil {
			row.Extra = make(map[string]string)
		}
		row.Extra[h] = cell
	}
	return row
}

// ParseNumber converts a cell to float64, returning the missing-value marker
// for anything that is not a number.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return Missing()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Missing()
	}
	return f
}
