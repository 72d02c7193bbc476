package generator

import (
	"log/slog"
	"os"
	"time"
)

// Config holds the generator settings. Start from DefaultConfig.
type Config struct {
	BatchSize     int           // samples per batch
	FileTimeout   int           // read attempts per file, one per RetryInterval
	RetryInterval time.Duration // wait between attempts
	Threading     bool          // prefetch on a background goroutine; false reads inline
	Debug         bool          // log progress diagnostics

	Logger     *slog.Logger           // nil means slog.Default()
	Recorder   Recorder               // nil disables instrumentation
	FileExists func(path string) bool // nil means an os.Stat check
}

// DefaultConfig returns the default settings: batch size 2, 10 attempts one
// second apart, threading enabled.
func DefaultConfig() Config {
	return Config{
		BatchSize:     2,
		FileTimeout:   10,
		RetryInterval: time.Second,
		Threading:     true,
	}
}

func (c *Config) normalize() error {
	if c.BatchSize < 1 {
		return &ConfigurationError{Reason: "invalid batch size", Err: ErrInvalidBatchSize}
	}
	if c.FileTimeout < 1 {
		return &ConfigurationError{Reason: "invalid file timeout", Err: ErrInvalidFileTimeout}
	}
	if c.RetryInterval < 0 {
		return &ConfigurationError{Reason: "retry interval must not be negative"}
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Recorder == nil {
		c.Recorder = nopRecorder{}
	}
	if c.FileExists == nil {
		c.FileExists = fileExists
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Recorder receives instrumentation events. Methods may be called from the
// background reader goroutine and must be safe for concurrent use.
type Recorder interface {
	RecordFileRead(duration time.Duration, attempts int)
	RecordReadRetry()
	RecordReadFailure()
	RecordBatch(samples int)
	RecordPrefetchWait(wait time.Duration)
	SetBufferedSamples(n int)
	RecordEpoch()
}

type nopRecorder struct{}

func (nopRecorder) RecordFileRead(time.Duration, int) {}
func (nopRecorder) RecordReadRetry() {}
func (nopRecorder) RecordReadFailure() {}
func (nopRecorder) RecordBatch(int) {}
func (nopRecorder) RecordPrefetchWait(time.Duration) {}
func (nopRecorder) SetBufferedSamples(int) {}
func (nopRecorder) RecordEpoch() {}
