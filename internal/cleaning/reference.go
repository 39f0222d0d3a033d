// Package cleaning repairs corrupted scan keys by consensus and applies the
// ordered validity-filter cascade to one batch of rows.
package cleaning

import (
	"sort"

	"scanclean/internal/config"
	"scanclean/internal/scantable"
)

// ReferenceSet is the ordered set of trusted key triples for one file.
// Members are sorted lexicographically, which is also the tie-break order
// used by RepairKeys.
type ReferenceSet struct {
	triples []scantable.Triple
	index   map[scantable.Triple]struct{}
}

// NewReferenceSet builds a set from the given triples, dropping duplicates
// and triples with missing fields.
func NewReferenceSet(triples ...scantable.Triple) ReferenceSet {
	rs := ReferenceSet{index: make(map[scantable.Triple]struct{}, len(triples))}
	for _, tr := range triples {
		if tr.HasMissing() {
			continue
		}
		if _, ok := rs.index[tr]; ok {
			continue
		}
		rs.index[tr] = struct{}{}
		rs.triples = append(rs.triples, tr)
	}
	sort.SliceStable(rs.triples, func(i, j int) bool { return rs.triples[i].Less(rs.triples[j]) })
	return rs
}

// Len returns the number of trusted triples.
func (rs ReferenceSet) Len() int { return len(rs.triples) }

// Triples returns a copy of the members in order.
func (rs ReferenceSet) Triples() []scantable.Triple {
	return append([]scantable.Triple(nil), rs.triples...)
}

// Contains reports whether tr exactly equals a member.
func (rs ReferenceSet) Contains(tr scantable.Triple) bool {
	_, ok := rs.index[tr]
	return ok
}

// BestMatch returns the member sharing the most fields with tr. The first
// member reaching the highest score wins. ok is false when no member shares
// any field.
func (rs ReferenceSet) BestMatch(tr scantable.Triple) (best scantable.Triple, score int, ok bool) {
	for _, ref := range rs.triples {
		if m := tr.Matches(ref); m > score {
			best, score = ref, m
		}
	}
	return best, score, score > 0
}

// KeyInRange reports whether all three key fields lie in their valid ranges.
func KeyInRange(tr scantable.Triple, r config.ValidRanges) bool {
	return r.Scan.Contains(tr.Scan) &&
		r.BeginTime.Contains(tr.BeginTime) &&
		r.EndTime.Contains(tr.EndTime)
}

// BuildReferenceSet selects in-range rows, groups them by exact key triple,
// and keeps the triples seen more than threshold times.
func BuildReferenceSet(t scantable.Table, r config.ValidRanges, threshold int) ReferenceSet {
	counts := make(map[scantable.Triple]int)
	var order []scantable.Triple
	for _, row := range t.Rows {
		k := row.Key()
		if !KeyInRange(k, r) {
			continue
		}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	var trusted []scantable.Triple
	for _, k := range order {
		if counts[k] > threshold {
			trusted = append(trusted, k)
		}
	}
	return NewReferenceSet(trusted...)
}
