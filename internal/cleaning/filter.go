package cleaning

import (
	"math"
	"sort"

	"scanclean/internal/config"
	"scanclean/internal/scantable"
)

// Stage names, in cascade order.
const (
	StageUnresolvedKeys  = "unresolved_keys"
	StageDuplicates      = "duplicate_scan_channel"
	StageStatOrdering    = "stat_ordering"
	StagePositiveSpread  = "positive_spread"
	StageTimeOrdering    = "time_ordering"
	StageForceSpectral   = "force_spectral_window"
	StageValidRanges     = "valid_ranges"
	StageSortScanChannel = "sort_scan_channel"
)

// StageResult records how many rows a stage removed.
type StageResult struct {
	Stage   string `json:"stage"`
	Dropped int    `json:"dropped"`
}

type stage struct {
	name  string
	apply func([]scantable.Row) []scantable.Row
}

func keepIf(pred func(scantable.Row) bool) func([]scantable.Row) []scantable.Row {
	return func(rows []scantable.Row) []scantable.Row {
		out := rows[:0:0]
		for _, r := range rows {
			if pred(r) {
				out = append(out, r)
			}
		}
		return out
	}
}

func cascade(ref ReferenceSet, r config.ValidRanges) []stage {
	return []stage{
		{StageUnresolvedKeys, keepIf(func(row scantable.Row) bool {
			k := row.Key()
			return !k.HasMissing() && ref.Contains(k)
		})},
		{StageDuplicates, dropDuplicateScanChannel},
		{StageStatOrdering, keepIf(StatsOrdered)},
		{StagePositiveSpread, keepIf(SpreadPositive)},
		{StageTimeOrdering, keepIf(func(row scantable.Row) bool {
			return row.EndTime > row.BeginTime
		})},
		{StageForceSpectral, func(rows []scantable.Row) []scantable.Row {
			for i := range rows {
				rows[i].SpectralWindow = r.SpectralWindow
			}
			return rows
		}},
		{StageValidRanges, keepIf(func(row scantable.Row) bool {
			return InRange(row, r)
		})},
		{StageSortScanChannel, func(rows []scantable.Row) []scantable.Row {
			SortRows(rows)
			return rows
		}},
	}
}

// Filter runs the validity cascade over a copy of t's rows, in order. The
// first stage drops rows whose key is missing a field or is not a member of
// ref, which after RepairKeys are exactly the rows no member could fix.
func Filter(t scantable.Table, ref ReferenceSet, r config.ValidRanges) (scantable.Table, []StageResult) {
	rows := make([]scantable.Row, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = row.Clone()
	}
	stages := cascade(ref, r)
	results := make([]StageResult, 0, len(stages))
	for _, s := range stages {
		before := len(rows)
		rows = s.apply(rows)
		results = append(results, StageResult{Stage: s.name, Dropped: before - len(rows)})
	}
	return t.WithRows(rows), results
}

type scanChannel struct {
	scan, channel uint64
}

// floatKey maps every NaN to one bit pattern so missing values compare equal
// for duplicate detection.
func floatKey(f float64) uint64 {
	if math.IsNaN(f) {
		return math.Float64bits(math.NaN())
	}
	if f == 0 {
		return 0
	}
	return math.Float64bits(f)
}

func dropDuplicateScanChannel(rows []scantable.Row) []scantable.Row {
	seen := make(map[scanChannel]struct{}, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		k := scanChannel{floatKey(r.Scan), floatKey(r.Channel)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// StatsOrdered reports max > mean > median > min, including max > median.
func StatsOrdered(r scantable.Row) bool {
	return r.Max > r.Mean && r.Max > r.Median && r.Mean > r.Median && r.Median > r.Min
}

// SpreadPositive reports rms, stddev and var all strictly positive.
func SpreadPositive(r scantable.Row) bool {
	return r.RMS > 0 && r.StdDev > 0 && r.Var > 0
}

// InRange reports whether every range-bound field of r is valid.
func InRange(r scantable.Row, vr config.ValidRanges) bool {
	return vr.Scan.Contains(r.Scan) &&
		vr.BeginTime.Contains(r.BeginTime) &&
		vr.EndTime.Contains(r.EndTime) &&
		r.SpectralWindow == vr.SpectralWindow &&
		vr.Channel.Contains(r.Channel)
}

// SortRows orders rows by scan then channel, keeping input order for ties.
func SortRows(rows []scantable.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Scan != rows[j].Scan {
			return rows[i].Scan < rows[j].Scan
		}
		return rows[i].Channel < rows[j].Channel
	})
}
