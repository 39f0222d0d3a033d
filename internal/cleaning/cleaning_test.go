package cleaning

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanclean/internal/config"
	"scanclean/internal/scantable"
)

var nan = math.NaN()

var (
	tripleA = scantable.Triple{Scan: 50, BeginTime: 56700.0, EndTime: 56700.1}
	tripleB = scantable.Triple{Scan: 60, BeginTime: 56700.0, EndTime: 56800.1}
)

func goodRow(k scantable.Triple, channel float64) scantable.Row {
	return scantable.Row{
		Scan: k.Scan, BeginTime: k.BeginTime, EndTime: k.EndTime,
		SpectralWindow: 0, Channel: channel,
		Max: 9, Mean: 5, Median: 4, Min: 1,
		RMS: 2, StdDev: 1.5, Var: 2.25,
	}
}

// batch returns n good rows for k on channels start..start+n-1.
func batch(k scantable.Triple, start, n int) []scantable.Row {
	rows := make([]scantable.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, goodRow(k, float64(start+i)))
	}
	return rows
}

func table(rows ...[]scantable.Row) scantable.Table {
	t := scantable.Table{Path: "batch.csv", Columns: scantable.NumericColumns}
	for _, rs := range rows {
		t.Rows = append(t.Rows, rs...)
	}
	return t
}

func newCleaner() *Cleaner {
	return NewCleaner(config.Default(), zerolog.Nop())
}

func TestBuildReferenceSetThreshold(t *testing.T) {
	ranges := config.DefaultValidRanges()

	ref := BuildReferenceSet(table(batch(tripleA, 0, 11), batch(tripleB, 0, 10)), ranges, 10)
	assert.Equal(t, []scantable.Triple{tripleA}, ref.Triples())

	ref = BuildReferenceSet(table(batch(tripleA, 0, 10)), ranges, 10)
	assert.Zero(t, ref.Len())
}

func TestBuildReferenceSetIgnoresOutOfRangeTriples(t *testing.T) {
	outOfRange := scantable.Triple{Scan: 200, BeginTime: 56700.0, EndTime: 56700.1}
	ref := BuildReferenceSet(table(batch(outOfRange, 0, 30)), config.DefaultValidRanges(), 10)
	assert.Zero(t, ref.Len())
}

func TestBuildReferenceSetIsSorted(t *testing.T) {
	ref := BuildReferenceSet(table(batch(tripleB, 0, 11), batch(tripleA, 0, 11)), config.DefaultValidRanges(), 10)
	assert.Equal(t, []scantable.Triple{tripleA, tripleB}, ref.Triples())
}

func TestRepairRestoresSingleCorruptedField(t *testing.T) {
	ref := NewReferenceSet(tripleA, tripleB)
	cases := map[string]scantable.Triple{
		"scan":       {Scan: nan, BeginTime: tripleB.BeginTime, EndTime: tripleB.EndTime},
		"begin_time": {Scan: tripleB.Scan, BeginTime: nan, EndTime: tripleB.EndTime},
		"end_time":   {Scan: tripleB.Scan, BeginTime: tripleB.BeginTime, EndTime: 12},
	}
	for name, k := range cases {
		t.Run(name, func(t *testing.T) {
			in := table([]scantable.Row{goodRow(k, 1)})
			out, st := RepairKeys(in, ref)
			assert.Equal(t, tripleB, out.Rows[0].Key())
			assert.Equal(t, 1, st.Repaired)
		})
	}
}

func TestRepairLeavesTrustedRowsAlone(t *testing.T) {
	in := table(batch(tripleA, 0, 3))
	out, st := RepairKeys(in, NewReferenceSet(tripleA))
	assert.Equal(t, 3, st.Trusted)
	assert.Zero(t, st.Repaired)
	assert.Equal(t, in.Rows, out.Rows)
}

func TestRepairNoMatchIsLeftUnrepaired(t *testing.T) {
	k := scantable.Triple{Scan: 7, BeginTime: nan, EndTime: 1}
	in := table([]scantable.Row{goodRow(k, 1)})
	out, st := RepairKeys(in, NewReferenceSet(tripleA))
	assert.Equal(t, 1, st.Unresolved)
	assert.Equal(t, 7.0, out.Rows[0].Scan)
	assert.True(t, math.IsNaN(out.Rows[0].BeginTime))
	assert.Equal(t, 1.0, out.Rows[0].EndTime)
}

func TestRepairTieResolvesToLowestTriple(t *testing.T) {
	// Shares begin_time with both A and B.
	k := scantable.Triple{Scan: nan, BeginTime: 56700.0, EndTime: nan}
	out, _ := RepairKeys(table([]scantable.Row{goodRow(k, 1)}), NewReferenceSet(tripleB, tripleA))
	assert.Equal(t, tripleA, out.Rows[0].Key())
}

func TestRepairPrefersHigherScore(t *testing.T) {
	ref := NewReferenceSet(tripleA, tripleB)

	// Two fields match A (scan, begin_time) and two match B (begin_time,
	// end_time); A is the lower triple.
	k := scantable.Triple{Scan: 50, BeginTime: 56700.0, EndTime: 56800.1}
	out, _ := RepairKeys(table([]scantable.Row{goodRow(k, 1)}), ref)
	assert.Equal(t, tripleA, out.Rows[0].Key())

	k = scantable.Triple{Scan: 60, BeginTime: 56700.0, EndTime: nan}
	out, _ = RepairKeys(table([]scantable.Row{goodRow(k, 1)}), ref)
	assert.Equal(t, tripleB, out.Rows[0].Key())
}

func TestRepairDoesNotMutateInput(t *testing.T) {
	k := scantable.Triple{Scan: nan, BeginTime: tripleA.BeginTime, EndTime: tripleA.EndTime}
	in := table([]scantable.Row{goodRow(k, 1)})
	_, _ = RepairKeys(in, NewReferenceSet(tripleA))
	assert.True(t, math.IsNaN(in.Rows[0].Scan))
}

func TestCleanRepairsCorruptedScan(t *testing.T) {
	corrupted := goodRow(scantable.Triple{Scan: nan, BeginTime: 56700.0, EndTime: 56700.1}, 12)
	in := table(batch(tripleA, 0, 12), []scantable.Row{corrupted})

	res := newCleaner().Clean(in)
	require.Len(t, res.Table.Rows, 13)
	last := res.Table.Rows[12]
	assert.Equal(t, 50.0, last.Scan)
	assert.Equal(t, 12.0, last.Channel)
	assert.Equal(t, 1, res.Stats.Repair.Repaired)
	assert.Equal(t, 1, res.Stats.ReferenceTriples)
}

func TestCleanDropsEqualMaxAndMean(t *testing.T) {
	bad := goodRow(tripleA, 20)
	bad.Max, bad.Mean, bad.Median, bad.Min = 5, 5, 3, 1
	res := newCleaner().Clean(table(batch(tripleA, 0, 11), []scantable.Row{bad}))
	assert.Len(t, res.Table.Rows, 11)
	assert.Equal(t, 1, dropped(res.Stats, StageStatOrdering))
}

func TestCleanKeepsFirstDuplicate(t *testing.T) {
	k := scantable.Triple{Scan: 10, BeginTime: 56700.0, EndTime: 56700.1}
	first := goodRow(k, 3)
	second := goodRow(k, 3)
	second.Max = 99
	in := table(batch(k, 20, 11), []scantable.Row{first, second})

	res := newCleaner().Clean(in)
	var hits []scantable.Row
	for _, r := range res.Table.Rows {
		if r.Channel == 3 {
			hits = append(hits, r)
		}
	}
	require.Len(t, hits, 1)
	assert.Equal(t, 9.0, hits[0].Max)
	assert.Equal(t, 1, dropped(res.Stats, StageDuplicates))
}

func TestCleanEmptyReferenceDropsEverything(t *testing.T) {
	res := newCleaner().Clean(table(batch(tripleA, 0, 5)))
	assert.Empty(t, res.Table.Rows)
	assert.Zero(t, res.Stats.ReferenceTriples)
	assert.Equal(t, 5, res.Stats.RowsIn)
	assert.Equal(t, 5, res.Stats.Repair.Unresolved)
	assert.Equal(t, 5, dropped(res.Stats, StageUnresolvedKeys))
}

func TestCleanNoMatchRowIsExcluded(t *testing.T) {
	stray := goodRow(scantable.Triple{Scan: nan, BeginTime: nan, EndTime: nan}, 40)
	res := newCleaner().Clean(table(batch(tripleA, 0, 11), []scantable.Row{stray}))
	assert.Len(t, res.Table.Rows, 11)
	assert.Equal(t, 1, res.Stats.Repair.Unresolved)
	assert.Equal(t, 1, dropped(res.Stats, StageUnresolvedKeys))
}

func TestCleanForcesSpectralWindowAndFiltersRanges(t *testing.T) {
	rows := batch(tripleA, 0, 12)
	rows[0].SpectralWindow = 3
	rows[1].Channel = 130
	rows[2].RMS = 0
	res := newCleaner().Clean(table(rows))

	for _, r := range res.Table.Rows {
		assert.Equal(t, 0.0, r.SpectralWindow)
	}
	assert.Len(t, res.Table.Rows, 10)
	assert.Equal(t, 1, dropped(res.Stats, StageValidRanges))
	assert.Equal(t, 1, dropped(res.Stats, StagePositiveSpread))
}

func TestFilterDropsReversedTimes(t *testing.T) {
	reversed := scantable.Triple{Scan: 50, BeginTime: 56700.1, EndTime: 56700.0}
	out, stages := Filter(table(batch(reversed, 0, 3)), NewReferenceSet(reversed), config.DefaultValidRanges())
	assert.Empty(t, out.Rows)
	assert.Equal(t, 3, dropped(Stats{Stages: stages}, StageTimeOrdering))
}

func TestFilterDropsNonMembers(t *testing.T) {
	out, _ := Filter(table(batch(tripleA, 0, 3), batch(tripleB, 0, 2)), NewReferenceSet(tripleB), config.DefaultValidRanges())
	require.Len(t, out.Rows, 2)
	for _, r := range out.Rows {
		assert.Equal(t, tripleB, r.Key())
	}
}

func TestCleanSortsByScanThenChannel(t *testing.T) {
	in := table(batch(tripleB, 5, 11), batch(tripleA, 0, 11))
	for i, j := 0, len(in.Rows)-1; i < j; i, j = i+1, j-1 {
		in.Rows[i], in.Rows[j] = in.Rows[j], in.Rows[i]
	}
	res := newCleaner().Clean(in)
	require.Len(t, res.Table.Rows, 22)
	for i := 1; i < len(res.Table.Rows); i++ {
		prev, cur := res.Table.Rows[i-1], res.Table.Rows[i]
		require.True(t, prev.Scan < cur.Scan || (prev.Scan == cur.Scan && prev.Channel <= cur.Channel))
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	rows := append(batch(tripleA, 0, 15), batch(tripleB, 0, 12)...)
	rows[3].Scan = nan
	rows[7].Mean = rows[7].Max
	rows = append(rows, rows[5])
	in := table(rows)
	ref := BuildReferenceSet(in, config.DefaultValidRanges(), 10)
	repaired, _ := RepairKeys(in, ref)

	once, _ := Filter(repaired, ref, config.DefaultValidRanges())
	twice, stages := Filter(once, ref, config.DefaultValidRanges())
	if diff := cmp.Diff(once.Rows, twice.Rows); diff != "" {
		t.Fatalf("second pass changed rows (-once +twice):\n%s", diff)
	}
	for _, s := range stages {
		assert.Zero(t, s.Dropped, s.Stage)
	}
}

func TestCleanTwiceKeepsWellSupportedBatch(t *testing.T) {
	rows := append(batch(tripleA, 0, 15), batch(tripleB, 0, 12)...)
	rows[3].Scan = nan
	rows[20].EndTime = nan
	rows = append(rows, rows[5])
	c := newCleaner()

	once := c.Clean(table(rows))
	twice := c.Clean(once.Table)
	if diff := cmp.Diff(once.Table.Rows, twice.Table.Rows); diff != "" {
		t.Fatalf("second pass changed rows (-once +twice):\n%s", diff)
	}
}

func TestFilterStagesRunInOrder(t *testing.T) {
	_, stages := Filter(table(), NewReferenceSet(), config.DefaultValidRanges())
	var names []string
	for _, s := range stages {
		names = append(names, s.Stage)
	}
	assert.Equal(t, []string{
		StageUnresolvedKeys, StageDuplicates, StageStatOrdering, StagePositiveSpread,
		StageTimeOrdering, StageForceSpectral, StageValidRanges, StageSortScanChannel,
	}, names)
}

func dropped(st Stats, stage string) int {
	for _, s := range st.Stages {
		if s.Stage == stage {
			return s.Dropped
		}
	}
	return -1
}
