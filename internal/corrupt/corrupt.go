// Package corrupt synthesizes clean scan batches and damages them in
// reproducible ways, for exercising the cleaner end to end.
package corrupt

import (
	"math"
	"math/rand"

	"scanclean/internal/scantable"
)

// SynthOptions shapes a synthetic batch.
type SynthOptions struct {
	Seed      int64
	FirstScan int
	Scans     int
	Channels  int
	// StartMJD is the begin time of the first scan.
	StartMJD float64
}

// DefaultSynthOptions returns a batch well inside the default valid ranges.
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{Seed: 20260224, FirstScan: 4, Scans: 3, Channels: 16, StartMJD: 56700.0}
}

// Synthesize returns scans × channels rows that all pass the cleaning cascade.
func Synthesize(opts SynthOptions) scantable.Table {
	rng := rand.New(rand.NewSource(opts.Seed))
	t := scantable.Table{Columns: append([]string(nil), scantable.NumericColumns...)}
	for s := 0; s < opts.Scans; s++ {
		begin := opts.StartMJD + float64(s)*0.01
		end := begin + 0.0025
		for ch := 0; ch < opts.Channels; ch++ {
			lo := rng.Float64()
			median := lo + 0.1 + rng.Float64()
			mean := median + 0.1 + rng.Float64()
			hi := mean + 0.1 + rng.Float64()
			sd := 0.1 + rng.Float64()
			t.Rows = append(t.Rows, scantable.Row{
				Scan:           float64(opts.FirstScan + s),
				BeginTime:      begin,
				EndTime:        end,
				SpectralWindow: 0,
				Channel:        float64(ch),
				Max:            hi,
				Mean:           mean,
				Median:         median,
				Min:            lo,
				RMS:            math.Sqrt(mean*mean + sd*sd),
				StdDev:         sd,
				Var:            sd * sd,
			})
		}
	}
	return t
}

// Options controls how much damage Corrupt does. Fractions are per row.
type Options struct {
	Seed int64
	// KeyFraction of rows get exactly one key field replaced by NaN.
	KeyFraction float64
	// DuplicateFraction of rows are appended again with altered statistics.
	DuplicateFraction float64
	// DegenerateFraction of rows get mean set equal to max.
	DegenerateFraction float64
	// Shuffle randomizes the row order afterwards.
	Shuffle bool
}

// Damage describes what Corrupt did to one original row.
type Damage struct {
	// Index is the row's position in the input table.
	Index int
	Field string
	True  scantable.Triple
}

// Report lists the damage done.
type Report struct {
	KeyDamage  []Damage
	Duplicated []int
	Degenerate []int
}

var keyFields = []string{scantable.ColScan, scantable.ColBeginTime, scantable.ColEndTime}

// Corrupt returns a damaged copy of t and a report of what changed. The same
// seed always produces the same damage.
func Corrupt(t scantable.Table, opts Options) (scantable.Table, Report) {
	rng := rand.New(rand.NewSource(opts.Seed))
	out := t.Clone()
	var rep Report
	var dups []scantable.Row

	for i := range out.Rows {
		r := &out.Rows[i]
		if rng.Float64() < opts.DegenerateFraction {
			r.Mean = r.Max
			rep.Degenerate = append(rep.Degenerate, i)
		}
		if rng.Float64() < opts.KeyFraction {
			field := keyFields[rng.Intn(len(keyFields))]
			rep.KeyDamage = append(rep.KeyDamage, Damage{Index: i, Field: field, True: r.Key()})
			switch field {
			case scantable.ColScan:
				r.Scan = math.NaN()
			case scantable.ColBeginTime:
				r.BeginTime = math.NaN()
			default:
				r.EndTime = math.NaN()
			}
		}
		if rng.Float64() < opts.DuplicateFraction {
			d := t.Rows[i].Clone()
			d.Max += 1
			dups = append(dups, d)
			rep.Duplicated = append(rep.Duplicated, i)
		}
	}
	out.Rows = append(out.Rows, dups...)
	if opts.Shuffle {
		rng.Shuffle(len(out.Rows), func(i, j int) { out.Rows[i], out.Rows[j] = out.Rows[j], out.Rows[i] })
	}
	return out, rep
}
