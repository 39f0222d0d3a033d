package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"scanclean/internal/cleaning"
	"scanclean/internal/ledger"
	"scanclean/internal/scantable"
	"scanclean/internal/sink"
)

// Recorder receives one entry per processed file.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) error
}

// Outcome is the result of cleaning one file.
type Outcome struct {
	Job     Job
	Output  sink.Output
	Stats   cleaning.Stats
	Err     error
	Skipped bool
}

// Summary aggregates a run.
type Summary struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Skipped   int
	RowsIn    int
	RowsOut   int
	Repaired  int
	Elapsed   time.Duration
}

// Runner cleans jobs on a bounded pool of workers.
type Runner struct {
	Cleaner *cleaning.Cleaner
	Writer  sink.Writer
	Ledger  Recorder
	Logger  zerolog.Logger
	Workers int
	// FailFast stops scheduling new files after the first failure.
	FailFast bool
}

// Run processes every job. A failing file is logged and recorded and does not
// stop the others unless FailFast is set, in which case the first error is
// returned alongside the partial summary.
func (r *Runner) Run(ctx context.Context, jobs []Job) (Summary, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = Outcome{Job: job, Skipped: true, Err: err}
				return nil
			}
			outcomes[i] = r.processFile(gctx, job)
			if outcomes[i].Err != nil && r.FailFast {
				return outcomes[i].Err
			}
			return nil
		})
	}
	err := g.Wait()

	sum := Summary{Outcomes: outcomes, Elapsed: time.Since(start)}
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			sum.Skipped++
		case o.Err != nil:
			sum.Failed++
		default:
			sum.Succeeded++
			sum.RowsIn += o.Stats.RowsIn
			sum.RowsOut += o.Stats.RowsOut
			sum.Repaired += o.Stats.Repair.Repaired
		}
	}
	r.Logger.Info().
		Str("files_ok", humanize.Comma(int64(sum.Succeeded))).
		Str("files_failed", humanize.Comma(int64(sum.Failed))).
		Str("rows_in", humanize.Comma(int64(sum.RowsIn))).
		Str("rows_out", humanize.Comma(int64(sum.RowsOut))).
		Str("repaired", humanize.Comma(int64(sum.Repaired))).
		Dur("elapsed", sum.Elapsed).
		Msg("Data cleansing process completed.")
	return sum, err
}

func (r *Runner) processFile(ctx context.Context, job Job) Outcome {
	out := Outcome{Job: job}
	out.Output, out.Stats, out.Err = r.clean(job)

	log := r.Logger.With().Str("file", job.Input).Logger()
	if out.Err != nil {
		log.Error().Err(out.Err).Msg("Error cleaning file")
	} else {
		log.Info().
			Str("csv", out.Output.CSVPath).
			Str("array", out.Output.ArrayPath).
			Int("rows_in", out.Stats.RowsIn).
			Int("rows_out", out.Stats.RowsOut).
			Msg("Successfully cleaned and saved")
	}

	if r.Ledger != nil {
		// The outputs exist once clean returns, so record them even if a
		// fail-fast error has cancelled ctx in the meantime.
		err := r.Ledger.Record(context.WithoutCancel(ctx), ledger.Entry{
			Source:     job.Input,
			CleanedCSV: out.Output.CSVPath,
			ArrayPath:  out.Output.ArrayPath,
			Stats:      out.Stats,
			Err:        out.Err,
		})
		if err != nil {
			log.Warn().Err(err).Msg("could not record ledger entry")
		}
	}
	return out
}

func (r *Runner) clean(job Job) (sink.Output, cleaning.Stats, error) {
	t, err := scantable.Load(job.Input)
	if err != nil {
		return sink.Output{}, cleaning.Stats{}, fmt.Errorf("load %s: %w", job.Input, err)
	}
	res := r.Cleaner.Clean(t)
	out, err := r.Writer.Write(res.Table, job.Output)
	if err != nil {
		return sink.Output{}, res.Stats, fmt.Errorf("save %s: %w", job.Input, err)
	}
	return out, res.Stats, nil
}
