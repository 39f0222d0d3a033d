package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scanclean/internal/batch"
	"scanclean/internal/cleaning"
	"scanclean/internal/config"
	"scanclean/internal/ledger"
	"scanclean/internal/sink"
)

func main() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SCANCLEAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "clean-scans",
		Short:         "Repair corrupted scan keys and filter invalid rows in every batch file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(v)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "config error: %v\n", err)
				return err
			}
			logger, closeLog, err := newLogger(logConfig{
				Level:   v.GetString("log-level"),
				Format:  v.GetString("log-format"),
				Output:  v.GetString("log-output"),
				NoColor: os.Getenv("NO_COLOR") != "",
			})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "logger error: %v\n", err)
				return err
			}
			defer closeLog()
			return run(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		},
	}

	def := config.Default()
	f := cmd.Flags()
	f.String("config", "", "YAML config file")
	f.String("input-dir", def.InputDir, "Input root; every subdirectory is scanned for batch files")
	f.String("output-dir", def.OutputDir, "Output root mirroring the input subdirectories")
	f.Int("workers", def.Workers, "Files cleaned in parallel")
	f.Int("support-threshold", def.SupportThreshold, "A key triple must appear more than this many times to be trusted")
	f.String("ledger", "", `SQLite run ledger path ("" = <output-dir>/`+config.DefaultLedgerName+`, "none" disables)`)
	f.Bool("fail-fast", false, "Stop at the first file that fails")
	f.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	f.String("log-format", "auto", "Log format (auto, console, json)")
	f.String("log-output", "stderr", "Log destination (stderr, stdout, discard, or a file path)")
	_ = v.BindPFlags(f)
	return cmd
}

// resolveConfig layers flags and SCANCLEAN_* environment variables over the
// optional config file and the built-in defaults.
func resolveConfig(v *viper.Viper) (config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return config.Config{}, err
	}
	if v.IsSet("input-dir") {
		cfg.InputDir = v.GetString("input-dir")
	}
	if v.IsSet("output-dir") {
		cfg.OutputDir = v.GetString("output-dir")
	}
	if v.IsSet("workers") {
		cfg.Workers = v.GetInt("workers")
	}
	if v.IsSet("support-threshold") {
		cfg.SupportThreshold = v.GetInt("support-threshold")
	}
	if v.IsSet("ledger") {
		cfg.LedgerPath = v.GetString("ledger")
	}
	if v.IsSet("fail-fast") {
		cfg.FailFast = v.GetBool("fail-fast")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger, stdout io.Writer) error {
	jobs, err := batch.Discover(cfg.InputDir, cfg.OutputDir, cfg.Extension)
	if err != nil && jobs == nil {
		logger.Error().Err(err).Str("input_dir", cfg.InputDir).Msg("cannot list input files")
		return err
	}
	if err != nil {
		logger.Warn().Err(err).Msg("some input directories were skipped")
	}

	runner := &batch.Runner{
		Cleaner:  cleaning.NewCleaner(cfg, logger),
		Writer:   sink.Writer{CleanedSuffix: cfg.CleanedSuffix, ArrayExtension: cfg.ArrayExtension},
		Logger:   logger,
		Workers:  cfg.Workers,
		FailFast: cfg.FailFast,
	}
	if path := cfg.LedgerFile(); path != "" {
		led, err := ledger.Open(path)
		if err != nil {
			logger.Warn().Err(err).Str("ledger", path).Msg("run ledger disabled")
		} else {
			defer led.Close()
			runner.Ledger = led
			logger.Debug().Str("ledger", path).Str("run_id", led.RunID()).Msg("recording run")
		}
	}

	sum, err := runner.Run(ctx, jobs)
	for _, o := range sum.Outcomes {
		if o.Err == nil && !o.Skipped {
			fmt.Fprintf(stdout, "Successfully cleaned and saved: %s and %s\n", o.Output.CSVPath, o.Output.ArrayPath)
		}
	}
	fmt.Fprintf(stdout, "Files cleaned: %d, failed: %d, skipped: %d\n", sum.Succeeded, sum.Failed, sum.Skipped)
	return err
}
