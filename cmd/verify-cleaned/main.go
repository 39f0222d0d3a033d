package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scanclean/internal/config"
	"scanclean/internal/scantable"
	"scanclean/internal/sink"
	"scanclean/internal/verify"
)

// errViolations makes the command exit non-zero without printing twice.
var errViolations = errors.New("cleaned output violates invariants")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	cleaned    string
	array      string
	configPath string
	outputJSON string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "verify-cleaned",
		Short:         "Check a cleaned CSV (and its .npy) against the cleaning invariants",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := runVerify(opts, cmd.OutOrStdout())
			if err != nil && !errors.Is(err, errViolations) {
				fmt.Fprintf(cmd.ErrOrStderr(), "verify error: %v\n", err)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.cleaned, "cleaned", "", "Cleaned CSV to check")
	f.StringVar(&opts.array, "array", "", `Matching .npy file ("" = derive from --cleaned, "none" = skip)`)
	f.StringVar(&opts.configPath, "config", "", "YAML config file providing valid_ranges")
	f.StringVar(&opts.outputJSON, "output-json", "", "Optional path to write JSON report")
	_ = cmd.MarkFlagRequired("cleaned")
	return cmd
}

// verifyCleaned loads the cleaned CSV and, when arrayPath is set, the array
// written next to it.
func verifyCleaned(csvPath, arrayPath string, vr config.ValidRanges) (verify.Report, error) {
	t, err := scantable.Load(csvPath)
	if err != nil {
		return verify.Report{}, fmt.Errorf("load %s: %w", csvPath, err)
	}
	rep := verify.Check(t, vr)
	if arrayPath == "" {
		return rep, nil
	}
	arr, err := sink.ReadArray(arrayPath)
	if err != nil {
		return verify.Report{}, fmt.Errorf("load %s: %w", arrayPath, err)
	}
	rep.ArrayPath = arrayPath
	verify.CheckArray(&rep, t, arr)
	return rep, nil
}

// arrayFor maps out/x_cleaned.csv to out/x.npy, the layout clean-scans writes.
func arrayFor(cleaned string, cfg config.Config) string {
	dir, base := filepath.Split(cleaned)
	stem := base[:len(base)-len(filepath.Ext(base))]
	if n := len(stem) - len(cfg.CleanedSuffix); n > 0 && stem[n:] == cfg.CleanedSuffix {
		stem = stem[:n]
	}
	return filepath.Join(dir, stem+cfg.ArrayExtension)
}

func runVerify(opts options, stdout io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	arrayPath := opts.array
	switch arrayPath {
	case "":
		arrayPath = arrayFor(opts.cleaned, cfg)
	case "none", "-":
		arrayPath = ""
	}

	report, err := verifyCleaned(opts.cleaned, arrayPath, cfg.ValidRanges)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	if opts.outputJSON != "" {
		if err := os.MkdirAll(filepath.Dir(opts.outputJSON), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(opts.outputJSON, append(payload, '\n'), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(stdout, "Wrote JSON report: %s\n", opts.outputJSON)
		fmt.Fprintf(stdout, "Status: %s\n", report.Status)
		fmt.Fprintf(stdout, "Rows: %s in %s scans\n", humanize.Comma(int64(report.Rows)), humanize.Comma(int64(report.Scans)))
		fmt.Fprintf(stdout, "Violations: %s\n", humanize.Comma(int64(len(report.Violations))))
	} else {
		fmt.Fprintln(stdout, string(payload))
	}
	if !report.OK() {
		return errViolations
	}
	return nil
}
