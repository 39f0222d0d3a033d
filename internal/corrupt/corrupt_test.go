package corrupt

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanclean/internal/cleaning"
	"scanclean/internal/config"
	"scanclean/internal/verify"
)

func synth() SynthOptions {
	opts := DefaultSynthOptions()
	opts.Channels = 40
	return opts
}

func TestSynthesizePassesVerification(t *testing.T) {
	tbl := Synthesize(synth())
	require.Len(t, tbl.Rows, 3*40)
	rep := verify.Check(tbl, config.DefaultValidRanges())
	assert.True(t, rep.OK(), "%+v", rep.Violations)
}

func TestCorruptIsDeterministic(t *testing.T) {
	tbl := Synthesize(synth())
	opts := Options{Seed: 7, KeyFraction: 0.2, DuplicateFraction: 0.1, Shuffle: true}
	a, ra := Corrupt(tbl, opts)
	b, rb := Corrupt(tbl, opts)
	assert.Equal(t, ra, rb)
	assert.Equal(t, len(a.Rows), len(b.Rows))
	assert.NotEmpty(t, ra.KeyDamage)
}

func TestCorruptDoesNotTouchInput(t *testing.T) {
	tbl := Synthesize(synth())
	before := tbl.Clone()
	_, _ = Corrupt(tbl, Options{Seed: 1, KeyFraction: 1, DegenerateFraction: 1})
	if diff := cmp.Diff(before.Rows, tbl.Rows); diff != "" {
		t.Fatalf("input mutated:\n%s", diff)
	}
}

func TestCleanRestoresCorruptedKeys(t *testing.T) {
	orig := Synthesize(synth())
	damaged, rep := Corrupt(orig, Options{Seed: 99, KeyFraction: 0.2, DuplicateFraction: 0.1})
	require.NotEmpty(t, rep.KeyDamage)
	require.NotEmpty(t, rep.Duplicated)

	res := cleaning.NewCleaner(config.Default(), zerolog.Nop()).Clean(damaged)
	assert.Equal(t, len(rep.KeyDamage), res.Stats.Repair.Repaired)
	assert.Equal(t, len(rep.Duplicated), res.Stats.Stages[1].Dropped)

	if diff := cmp.Diff(orig.Rows, res.Table.Rows); diff != "" {
		t.Fatalf("cleaned rows differ from the undamaged batch (-want +got):\n%s", diff)
	}
	for _, d := range rep.KeyDamage {
		assert.Equal(t, d.True, res.Table.Rows[d.Index].Key(), "row %d field %s", d.Index, d.Field)
	}
	assert.True(t, verify.Check(res.Table, config.DefaultValidRanges()).OK())
}

func TestCleanDropsDegenerateRows(t *testing.T) {
	orig := Synthesize(synth())
	damaged, rep := Corrupt(orig, Options{Seed: 5, DegenerateFraction: 0.1, DuplicateFraction: 0.1})
	require.NotEmpty(t, rep.Degenerate)

	res := cleaning.NewCleaner(config.Default(), zerolog.Nop()).Clean(damaged)
	assert.Len(t, res.Table.Rows, len(orig.Rows)-len(rep.Degenerate))
	assert.True(t, verify.Check(res.Table, config.DefaultValidRanges()).OK())
}
