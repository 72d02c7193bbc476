package generator

// ============================================================================
// Generator Error Definitions
//
// Taxonomy:
//   ConfigurationError  fatal, returned by SetFileList / setters
//   transient errors    missing or corrupt file, retried inside the reader
//   ReadFailure         fatal, retry budget exhausted, returned by the next join
//   DataExhaustion      fatal, the file list cannot supply the requested batch
//
// Only transient read errors are retried. Everything else is returned to the
// caller, who is expected to stop training rather than skip data.
// ============================================================================

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration matches every *ConfigurationError
	ErrConfiguration = errors.New("generator: configuration error")

	// ErrReadFailure matches every *ReadFailure
	ErrReadFailure = errors.New("generator: file could not be read")

	// ErrDataExhaustion matches every *DataExhaustionError
	ErrDataExhaustion = errors.New("generator: more batches requested than data in the sample")

	// ErrNotConfigured is returned when no file list has been set
	ErrNotConfigured = errors.New("generator: file list not set")

	// ErrEpochNotStarted is returned by GetBatch before PrepareNextEpoch
	ErrEpochNotStarted = errors.New("generator: epoch not started")

	// ErrInvalidBatchSize is wrapped by the ConfigurationError for a batch size below 1
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrInvalidFileTimeout is wrapped by the ConfigurationError for a retry budget below 1
	ErrInvalidFileTimeout = errors.New("file timeout must be positive")
)

// ConfigurationError reports an unusable file list or setting.
type ConfigurationError struct {
	Path   string // offending file, empty for settings
	Reason string
	Err    error // underlying error, may be nil
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrConfiguration.Error())
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ReadFailure reports a file that could not be read within its retry budget.
// Err is the error of the last attempt.
type ReadFailure struct {
	Path     string
	Attempts int
	Err      error
}

func (e *ReadFailure) Error() string {
	return fmt.Sprintf("generator: file %s could not be read after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *ReadFailure) Unwrap() error { return e.Err }

func (e *ReadFailure) Is(target error) bool { return target == ErrReadFailure }

// DataExhaustionError reports that the buffered and remaining files cannot
// fill another batch.
type DataExhaustionError struct {
	Processed int // samples delivered this epoch
	Buffered  int // samples held but fewer than one batch
	Total     int // samples promised by the file metadata
	FilesRead int // files consumed this epoch
	Files     int // files in the list
}

func (e *DataExhaustionError) Error() string {
	return fmt.Sprintf("%s (processed=%d buffered=%d total=%d files=%d/%d)",
		ErrDataExhaustion.Error(), e.Processed, e.Buffered, e.Total, e.FilesRead, e.Files)
}

func (e *DataExhaustionError) Is(target error) bool { return target == ErrDataExhaustion }
