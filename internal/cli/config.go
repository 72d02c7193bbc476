package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/batchfeed/internal/generator"
	"github.com/ChuLiYu/batchfeed/internal/trainset"
)

// Config represents the complete configuration file.
// Maps config file fields through YAML tags.
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	Run       RunConfig       `yaml:"run"`
	Pack      PackConfig      `yaml:"pack"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

type GeneratorConfig struct {
	Files         []string      `yaml:"files"`
	FileGlob      string        `yaml:"file_glob"`
	BatchSize     int           `yaml:"batch_size"`
	FileTimeout   int           `yaml:"file_timeout"`   // read attempts per file
	RetryInterval time.Duration `yaml:"retry_interval"` // wait between attempts
	Threading     *bool         `yaml:"threading"`      // unset means enabled
	Debug         bool          `yaml:"debug"`
}

type RunConfig struct {
	Epochs     int    `yaml:"epochs"`     // total epochs, resumed runs included
	Checkpoint string `yaml:"checkpoint"` // progress file, empty disables resuming
}

type PackConfig struct {
	Workers        int           `yaml:"workers"`
	TaskTimeout    time.Duration `yaml:"task_timeout"`
	FeatureColumns []string      `yaml:"feature_columns"`
	TruthColumns   []string      `yaml:"truth_columns"`
	WeightColumn   string        `yaml:"weight_column"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills every zero setting with its default.
func (c *Config) applyDefaults() {
	def := generator.DefaultConfig()
	if c.Generator.BatchSize == 0 {
		c.Generator.BatchSize = def.BatchSize
	}
	if c.Generator.FileTimeout == 0 {
		c.Generator.FileTimeout = def.FileTimeout
	}
	if c.Generator.RetryInterval == 0 {
		c.Generator.RetryInterval = def.RetryInterval
	}
	if c.Run.Epochs == 0 {
		c.Run.Epochs = 1
	}
	if c.Pack.Workers == 0 {
		c.Pack.Workers = 4
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// generatorConfig translates the file settings into a generator.Config.
func (c *Config) generatorConfig(logger *slog.Logger, rec generator.Recorder) generator.Config {
	cfg := generator.DefaultConfig()
	cfg.BatchSize = c.Generator.BatchSize
	cfg.FileTimeout = c.Generator.FileTimeout
	cfg.RetryInterval = c.Generator.RetryInterval
	if c.Generator.Threading != nil {
		cfg.Threading = *c.Generator.Threading
	}
	cfg.Debug = c.Generator.Debug
	cfg.Logger = logger
	cfg.Recorder = rec
	return cfg
}

// csvLayout returns the column selection used by pack.
func (c *Config) csvLayout() trainset.CSVLayout {
	return trainset.CSVLayout{
		Features: c.Pack.FeatureColumns,
		Truth:    c.Pack.TruthColumns,
		Weight:   c.Pack.WeightColumn,
	}
}

// resolveFiles returns args when given, otherwise the configured files
// followed by the matches of the configured glob.
func (c *Config) resolveFiles(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	files := append([]string(nil), c.Generator.Files...)
	if c.Generator.FileGlob != "" {
		matches, err := filepath.Glob(c.Generator.FileGlob)
		if err != nil {
			return nil, fmt.Errorf("failed to glob %s: %w", c.Generator.FileGlob, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files: set generator.files, generator.file_glob or pass paths")
	}
	return files, nil
}

// newLogger builds the slog logger described by cfg, tagged with runID.
func newLogger(w io.Writer, cfg LogConfig, runID string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	return slog.New(handler).With("run_id", runID), nil
}
