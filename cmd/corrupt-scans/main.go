package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"scanclean/internal/corrupt"
	"scanclean/internal/scantable"
	"scanclean/internal/sink"
)

const defaultOutput = "outputs/scans_corrupted.csv"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	input  string
	output string
	synth  corrupt.SynthOptions
	damage corrupt.Options
}

func newRootCmd() *cobra.Command {
	opts := options{synth: corrupt.DefaultSynthOptions()}
	cmd := &cobra.Command{
		Use:           "corrupt-scans",
		Short:         "Write a reproducibly damaged scan batch for exercising clean-scans",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runCorrupt(opts, cmd.OutOrStdout()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "corrupt error: %v\n", err)
				return err
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "Clean input CSV (empty = synthesize a batch)")
	f.StringVar(&opts.output, "output", defaultOutput, "Output CSV path")
	f.Int64Var(&opts.damage.Seed, "seed", opts.synth.Seed, "Deterministic damage seed")
	f.Float64Var(&opts.damage.KeyFraction, "key-fraction", 0.05, "Fraction of rows with one key field blanked")
	f.Float64Var(&opts.damage.DuplicateFraction, "duplicate-fraction", 0.02, "Fraction of rows re-appended with altered statistics")
	f.Float64Var(&opts.damage.DegenerateFraction, "degenerate-fraction", 0.01, "Fraction of rows with mean forced to max")
	f.BoolVar(&opts.damage.Shuffle, "shuffle", true, "Shuffle rows after damaging")
	f.IntVar(&opts.synth.Scans, "scans", opts.synth.Scans, "Synthesized scans")
	f.IntVar(&opts.synth.Channels, "channels", opts.synth.Channels, "Synthesized channels per scan")
	f.IntVar(&opts.synth.FirstScan, "first-scan", opts.synth.FirstScan, "Number of the first synthesized scan")
	return cmd
}

func runCorrupt(opts options, stdout io.Writer) error {
	var src scantable.Table
	if opts.input != "" {
		t, err := scantable.Load(opts.input)
		if err != nil {
			return fmt.Errorf("load %s: %w", opts.input, err)
		}
		src = t
	} else {
		opts.synth.Seed = opts.damage.Seed
		src = corrupt.Synthesize(opts.synth)
	}

	out, rep := corrupt.Corrupt(src, opts.damage)

	var buf bytes.Buffer
	if err := sink.WriteCSV(&buf, out); err != nil {
		return err
	}
	if dir := filepath.Dir(opts.output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(opts.output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}

	input := opts.input
	if input == "" {
		input = "(synthesized)"
	}
	fmt.Fprintf(stdout, "Input:  %s\n", input)
	fmt.Fprintf(stdout, "Output: %s\n", opts.output)
	fmt.Fprintf(stdout, "Seed:   %d\n", opts.damage.Seed)
	fmt.Fprintf(stdout, "Rows:   %d -> %d\n", len(src.Rows), len(out.Rows))
	fmt.Fprintf(stdout, "Damaged keys: %d, duplicates: %d, degenerate: %d\n", len(rep.KeyDamage), len(rep.Duplicated), len(rep.Degenerate))
	for i, d := range rep.KeyDamage {
		if i == 10 {
			fmt.Fprintf(stdout, "  ... %d more\n", len(rep.KeyDamage)-i)
			break
		}
		fmt.Fprintf(stdout, "  row %d: %s was (%v, %v, %v)\n", d.Index, d.Field, d.True.Scan, d.True.BeginTime, d.True.EndTime)
	}
	return nil
}
