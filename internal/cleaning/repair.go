package cleaning

import (
	"scanclean/internal/scantable"
)

// RepairStats counts what RepairKeys did.
type RepairStats struct {
	Trusted    int `json:"trusted"`
	Repaired   int `json:"repaired"`
	Unresolved int `json:"unresolved"`
}

// RepairKeys returns a copy of t in which every row whose key triple is not a
// reference member takes the fields of its best-matching member. Rows that
// share no field with any member keep their key.
func RepairKeys(t scantable.Table, ref ReferenceSet) (scantable.Table, RepairStats) {
	var st RepairStats
	rows := make([]scantable.Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		row = row.Clone()
		k := row.Key()
		if ref.Contains(k) {
			st.Trusted++
			rows = append(rows, row)
			continue
		}
		best, _, ok := ref.BestMatch(k)
		if !ok {
			st.Unresolved++
			rows = append(rows, row)
			continue
		}
		rows = append(rows, overwriteKey(row, best))
		st.Repaired++
	}
	return t.WithRows(rows), st
}

// overwriteKey copies only the key fields of row that differ from best.
func overwriteKey(row scantable.Row, best scantable.Triple) scantable.Row {
	if row.Scan != best.Scan {
		row.Scan = best.Scan
	}
	if row.BeginTime != best.BeginTime {
		row.BeginTime = best.BeginTime
	}
	if row.EndTime != best.EndTime {
		row.EndTime = best.EndTime
	}
	return row
}
