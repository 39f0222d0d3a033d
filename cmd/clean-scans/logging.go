package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// logConfig holds logger configuration options.
type logConfig struct {
	// Level is the minimum level to output (trace, debug, info, warn, error).
	Level string
	// Format is console, json, or auto (console on a terminal, json otherwise).
	Format string
	// Output is stderr, stdout, discard, or a file path.
	Output  string
	NoColor bool
}

// newLogger returns a logger for cfg and a close func for any file it opened.
func newLogger(cfg logConfig) (zerolog.Logger, func() error, error) {
	out, closer, err := openOutput(cfg.Output)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	level := parseLevel(cfg.Level)
	logger := zerolog.New(formatWriter(out, cfg)).
		Level(level).
		With().
		Timestamp().
		Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger, closer, nil
}

func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr, noop, nil
	case "stdout":
		return os.Stdout, noop, nil
	case "discard", "none":
		return io.Discard, noop, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}
	return f, f.Close, nil
}

func formatWriter(out io.Writer, cfg logConfig) io.Writer {
	format := strings.ToLower(cfg.Format)
	if format == "auto" || format == "" {
		format = "json"
		if f, ok := out.(*os.File); ok {
			if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
				format = "console"
			}
		}
	}
	if format == "console" || format == "pretty" {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: cfg.NoColor}
	}
	return out
}

// parseLevel maps a level name to a zerolog level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		return l
	}
	return zerolog.InfoLevel
}
