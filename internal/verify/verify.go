// Package verify checks a cleaned table against the invariants the cleaning
// pipeline guarantees and reports every violation it finds.
package verify

import (
	"fmt"
	"math"

	"scanclean/internal/cleaning"
	"scanclean/internal/config"
	"scanclean/internal/scantable"
	"scanclean/internal/sink"
)

// Rule names used in Violation.Rule.
const (
	RuleUnresolvedKey = "unresolved_key"
	RuleDuplicate     = "duplicate_scan_channel"
	RuleStatOrdering  = "stat_ordering"
	RuleSpread        = "positive_spread"
	RuleTimeOrdering  = "time_ordering"
	RuleRange         = "valid_range"
	RuleSortOrder     = "sort_order"
	RuleArrayShape    = "array_shape"
	RuleArrayValue    = "array_value"
)

// Violation is one broken invariant. Row is the zero-based data row index.
type Violation struct {
	Row    int    `json:"row"`
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// Report is the outcome of checking one cleaned file.
type Report struct {
	Status     string         `json:"status"`
	CSVPath    string         `json:"csv_path,omitempty"`
	ArrayPath  string         `json:"array_path,omitempty"`
	Rows       int            `json:"rows"`
	Scans      int            `json:"scans"`
	RuleCounts map[string]int `json:"rule_counts"`
	Violations []Violation    `json:"violations"`
}

// OK reports whether no violation was found.
func (r Report) OK() bool { return len(r.Violations) == 0 }

func (r *Report) add(row int, rule, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{Row: row, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	r.RuleCounts[rule]++
}

func (r *Report) finish() {
	r.Status = "ok"
	if !r.OK() {
		r.Status = "violations"
	}
}

// Check validates t row by row.
func Check(t scantable.Table, vr config.ValidRanges) Report {
	rep := Report{CSVPath: t.Path, Rows: len(t.Rows), RuleCounts: map[string]int{}, Violations: []Violation{}}
	seen := make(map[[2]float64]int, len(t.Rows))
	scans := make(map[float64]struct{})
	for i, row := range t.Rows {
		if row.Key().HasMissing() {
			rep.add(i, RuleUnresolvedKey, "key (%v, %v, %v) has a missing field", row.Scan, row.BeginTime, row.EndTime)
		}
		scans[row.Scan] = struct{}{}
		k := [2]float64{row.Scan, row.Channel}
		if first, dup := seen[k]; dup {
			rep.add(i, RuleDuplicate, "scan %v channel %v already at row %d", row.Scan, row.Channel, first)
		} else {
			seen[k] = i
		}
		if !cleaning.StatsOrdered(row) {
			rep.add(i, RuleStatOrdering, "max=%v mean=%v median=%v min=%v", row.Max, row.Mean, row.Median, row.Min)
		}
		if !cleaning.SpreadPositive(row) {
			rep.add(i, RuleSpread, "rms=%v stddev=%v var=%v", row.RMS, row.StdDev, row.Var)
		}
		if !(row.EndTime > row.BeginTime) {
			rep.add(i, RuleTimeOrdering, "end_time %v <= begin_time %v", row.EndTime, row.BeginTime)
		}
		if !cleaning.InRange(row, vr) {
			rep.add(i, RuleRange, "scan=%v begin=%v end=%v spw=%v channel=%v", row.Scan, row.BeginTime, row.EndTime, row.SpectralWindow, row.Channel)
		}
		if i > 0 {
			prev := t.Rows[i-1]
			if row.Scan < prev.Scan || (row.Scan == prev.Scan && row.Channel < prev.Channel) {
				rep.add(i, RuleSortOrder, "(%v, %v) after (%v, %v)", row.Scan, row.Channel, prev.Scan, prev.Channel)
			}
		}
	}
	rep.Scans = len(scans)
	rep.finish()
	return rep
}

// CheckArray compares a decoded .npy array with the table it should encode
// and appends any mismatch to rep.
func CheckArray(rep *Report, t scantable.Table, arr sink.Array) {
	if rep.RuleCounts == nil {
		rep.RuleCounts = map[string]int{}
	}
	if arr.Rows != len(t.Rows) || arr.Cols != len(t.Columns) {
		rep.add(-1, RuleArrayShape, "array is %dx%d, table is %dx%d", arr.Rows, arr.Cols, len(t.Rows), len(t.Columns))
		rep.finish()
		return
	}
	want := sink.Matrix(t)
	for i, v := range want {
		got := arr.Data[i]
		if v == got || (math.IsNaN(v) && math.IsNaN(got)) {
			continue
		}
		row, col := i/arr.Cols, i%arr.Cols
		rep.add(row, RuleArrayValue, "column %s: csv %v, array %v", t.Columns[col], v, got)
	}
	rep.finish()
}
