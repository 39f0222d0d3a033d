// Package scantable holds the in-memory row table for one batch of scan
// metadata and the CSV loader that produces it.
package scantable

import (
	"math"
)

// Recognized column names.
const (
	ColScan           = "scan"
	ColBeginTime      = "begin_time"
	ColEndTime        = "end_time"
	ColSpectralWindow = "spectral_window"
	ColChannel        = "channel"
	ColMax            = "max"
	ColMean           = "mean"
	ColMedian         = "median"
	ColMin            = "min"
	ColRMS            = "rms"
	ColStdDev         = "stddev"
	ColVar            = "var"
)

// NumericColumns lists every column coerced to float64 on load.
var NumericColumns = []string{
	ColScan, ColBeginTime, ColEndTime, ColSpectralWindow, ColChannel,
	ColMax, ColMean, ColMedian, ColMin, ColRMS, ColStdDev, ColVar,
}

// IsNumericColumn reports whether name is one of NumericColumns.
func IsNumericColumn(name string) bool {
	for _, c := range NumericColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Missing is the marker for absent or unparsable numeric cells.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Triple is the (scan, begin_time, end_time) key subject to repair.
type Triple struct {
	Scan      float64
	BeginTime float64
	EndTime   float64
}

// Equal compares all three fields with exact float equality; NaN never matches.
func (t Triple) Equal(o Triple) bool {
	return t.Scan == o.Scan && t.BeginTime == o.BeginTime && t.EndTime == o.EndTime
}

// Matches counts the fields equal between t and o.
func (t Triple) Matches(o Triple) int {
	n := 0
	if t.Scan == o.Scan {
		n++
	}
	if t.BeginTime == o.BeginTime {
		n++
	}
	if t.EndTime == o.EndTime {
		n++
	}
	return n
}

// HasMissing reports whether any field of t is missing.
func (t Triple) HasMissing() bool {
	return IsMissing(t.Scan) || IsMissing(t.BeginTime) || IsMissing(t.EndTime)
}

// Less orders triples lexicographically by scan, begin_time, end_time.
func (t Triple) Less(o Triple) bool {
	if t.Scan != o.Scan {
		return t.Scan < o.Scan
	}
	if t.BeginTime != o.BeginTime {
		return t.BeginTime < o.BeginTime
	}
	return t.EndTime < o.EndTime
}

// Row is one measurement record.
type Row struct {
	Scan           float64
	BeginTime      float64
	EndTime        float64
	SpectralWindow float64
	Channel        float64
	Max            float64
	Mean           float64
	Median         float64
	Min            float64
	RMS            float64
	StdDev         float64
	Var            float64

	// Extra carries unrecognized columns verbatim, keyed by header.
	Extra map[string]string
}

// Key returns the row's key triple.
func (r Row) Key() Triple {
	return Triple{Scan: r.Scan, BeginTime: r.BeginTime, EndTime: r.EndTime}
}

// WithKey returns r with its key fields replaced by k.
func (r Row) WithKey(k Triple) Row {
	r.Scan, r.BeginTime, r.EndTime = k.Scan, k.BeginTime, k.EndTime
	return r
}

// Field returns the numeric value of a recognized column.
func (r Row) Field(name string) (float64, bool) {
	switch name {
	case ColScan:
		return r.Scan, true
	case ColBeginTime:
		return r.BeginTime, true
	case ColEndTime:
		return r.EndTime, true
	case ColSpectralWindow:
		return r.SpectralWindow, true
	case ColChannel:
		return r.Channel, true
	case ColMax:
		return r.Max, true
	case ColMean:
		return r.Mean, true
	case ColMedian:
		return r.Median, true
	case ColMin:
		return r.Min, true
	case ColRMS:
		return r.RMS, true
	case ColStdDev:
		return r.StdDev, true
	case ColVar:
		return r.Var, true
	}
	return 0, false
}

func (r *Row) setField(name string, v float64) bool {
	switch name {
	case ColScan:
		r.Scan = v
	case ColBeginTime:
		r.BeginTime = v
	case ColEndTime:
		r.EndTime = v
	case ColSpectralWindow:
		r.SpectralWindow = v
	case ColChannel:
		r.Channel = v
	case ColMax:
		r.Max = v
	case ColMean:
		r.Mean = v
	case ColMedian:
		r.Median = v
	case ColMin:
		r.Min = v
	case ColRMS:
		r.RMS = v
	case ColStdDev:
		r.StdDev = v
	case ColVar:
		r.Var = v
	default:
		return false
	}
	return true
}

// Clone returns a deep copy of r.
func (r Row) Clone() Row {
	if r.Extra != nil {
		extra := make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			extra[k] = v
		}
		r.Extra = extra
	}
	return r
}

// Table is the rows of one file plus the header order they came with.
type Table struct {
	Path    string
	Columns []string
	Rows    []Row
}

// WithRows returns a table sharing t's header with a new row slice.
func (t Table) WithRows(rows []Row) Table {
	return Table{Path: t.Path, Columns: t.Columns, Rows: rows}
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Clone()
	}
	return Table{Path: t.Path, Columns: append([]string(nil), t.Columns...), Rows: rows}
}

// NewRow builds a row from column/value pairs, leaving unspecified
// recognized fields missing.
func NewRow(values map[string]float64) Row {
	r := Row{
		Scan: Missing(), BeginTime: Missing(), EndTime: Missing(),
		SpectralWindow: Missing(), Channel: Missing(),
		Max: Missing(), Mean: Missing(), Median: Missing(), Min: Missing(),
		RMS: Missing(), StdDev: Missing(), Var: Missing(),
	}
	for k, v := range values {
		r.setField(k, v)
	}
	return r
}
