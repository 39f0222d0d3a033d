package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRange reports an interval whose bounds are missing or inverted.
var ErrInvalidRange = errors.New("invalid range")

// Interval is a closed numeric range. NaN is never contained.
type Interval struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (iv Interval) Contains(v float64) bool {
	return v >= iv.Min && v <= iv.Max
}

func (iv Interval) validate(name string) error {
	if math.IsNaN(iv.Min) || math.IsNaN(iv.Max) || iv.Min > iv.Max {
		return fmt.Errorf("%w: %s [%v, %v]", ErrInvalidRange, name, iv.Min, iv.Max)
	}
	return nil
}

// ValidRanges holds the bounds that trusted rows must satisfy.
type ValidRanges struct {
	Scan           Interval `yaml:"scan"`
	BeginTime      Interval `yaml:"begin_time"`
	EndTime        Interval `yaml:"end_time"`
	Channel        Interval `yaml:"channel"`
	SpectralWindow float64  `yaml:"spectral_window"`
}

// Config holds everything a cleaning run needs.
type Config struct {
	InputDir         string      `yaml:"input_dir"`
	OutputDir        string      `yaml:"output_dir"`
	Extension        string      `yaml:"extension"`
	CleanedSuffix    string      `yaml:"cleaned_suffix"`
	ArrayExtension   string      `yaml:"array_extension"`
	SupportThreshold int         `yaml:"support_threshold"`
	Workers          int         `yaml:"workers"`
	LedgerPath       string      `yaml:"ledger_path"`
	FailFast         bool        `yaml:"fail_fast"`
	ValidRanges      ValidRanges `yaml:"valid_ranges"`
}

const (
	DefaultInputDir         = "../data/input"
	DefaultOutputDir        = "../data/output"
	DefaultExtension        = ".csv"
	DefaultCleanedSuffix    = "_cleaned"
	DefaultArrayExtension   = ".npy"
	DefaultSupportThreshold = 10
	DefaultLedgerName       = "clean_report.sqlite"
)

// DefaultValidRanges returns the bounds of the observing campaign.
func DefaultValidRanges() ValidRanges {
	return ValidRanges{
		Scan:           Interval{Min: 4, Max: 129},
		BeginTime:      Interval{Min: 56605.38856481481, Max: 58584.34300925926},
		EndTime:        Interval{Min: 56605.39115740741, Max: 58584.345601851855},
		Channel:        Interval{Min: 0, Max: 129},
		SpectralWindow: 0,
	}
}

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	return Config{
		InputDir:         DefaultInputDir,
		OutputDir:        DefaultOutputDir,
		Extension:        DefaultExtension,
		CleanedSuffix:    DefaultCleanedSuffix,
		ArrayExtension:   DefaultArrayExtension,
		SupportThreshold: DefaultSupportThreshold,
		Workers:          runtime.NumCPU(),
		ValidRanges:      DefaultValidRanges(),
	}
}

// Load reads a YAML config file on top of Default. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate normalizes zero values and rejects unusable settings.
func (c *Config) Validate() error {
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	if c.ArrayExtension == "" {
		c.ArrayExtension = DefaultArrayExtension
	}
	if !strings.HasPrefix(c.ArrayExtension, ".") {
		c.ArrayExtension = "." + c.ArrayExtension
	}
	if c.CleanedSuffix == "" {
		c.CleanedSuffix = DefaultCleanedSuffix
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.SupportThreshold < 0 {
		return fmt.Errorf("support_threshold must be >= 0, got %d", c.SupportThreshold)
	}
	r := c.ValidRanges
	for _, chk := range []struct {
		name string
		iv   Interval
	}{
		{"scan", r.Scan},
		{"begin_time", r.BeginTime},
		{"end_time", r.EndTime},
		{"channel", r.Channel},
	} {
		if err := chk.iv.validate(chk.name); err != nil {
			return err
		}
	}
	return nil
}

// LedgerFile resolves LedgerPath: empty means the default name under
// OutputDir, "none" or "-" disables the ledger and returns "".
func (c Config) LedgerFile() string {
	switch strings.ToLower(strings.TrimSpace(c.LedgerPath)) {
	case "":
		return filepath.Join(c.OutputDir, DefaultLedgerName)
	case "none", "-", "off":
		return ""
	}
	return c.LedgerPath
}
