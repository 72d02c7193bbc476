// ============================================================================
// Batchfeed Generator - prefetching batch generator
// ============================================================================
//
// Package: internal/generator
// File: generator.go
// Function: Feeds fixed-size batches of samples from a list of files while the
//           next file is read in the background
//
// Lifecycle:
//   Idle ──SetFileList──▶ Configured ──PrepareNextEpoch──▶ EpochActive
//                              ▲                              │ GetBatch
//                              │                              ▼
//                              └──────────End───────── EpochDrained
//
//   1. SetFileList  - adopt the files, sum their sample counts from metadata
//   2. SetBatchSize - NBatches = NTotal / BatchSize (remainder never emitted)
//   3. PrepareNextEpoch - join the stale read, reset buffers and counters,
//      reshuffle the files, start reading the first one
//   4. GetBatch     - merge staged data as needed, start the next read,
//      cut one batch
//   5. End          - stop and join the outstanding read
//
// Concurrency:
//   A Generator is driven by one goroutine. The only other goroutine is the
//   background reader, which writes the staging buffer and nothing else. The
//   staging buffer is merged only after the reader has been joined, and a new
//   read starts only after the previous one was joined.
//
// ============================================================================

package generator

import (
	"log/slog"
	"slices"

	"github.com/ChuLiYu/batchfeed/pkg/types"
)

// State is the epoch lifecycle state of a Generator.
type State int

const (
	StateIdle         State = iota // no file list
	StateConfigured                // file list and totals known, no epoch running
	StateEpochActive               // batches may be requested
	StateEpochDrained              // every full batch of the epoch was delivered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateEpochActive:
		return "epoch_active"
	case StateEpochDrained:
		return "epoch_drained"
	default:
		return "unknown"
	}
}

// Generator produces batches of type C from a shuffled list of files.
// It is not safe for concurrent use.
type Generator[C types.Container[C]] struct {
	cfg          Config
	log          *slog.Logger
	rec          Recorder
	newContainer func() C

	state    State
	shuffler *shuffler
	epoch    int

	origFiles []string // as configured
	files     []string // order of the current epoch

	totalSamples  int
	totalBatches  int
	processed     int // samples delivered this epoch
	lastBatchSize int
	fileIndex     int // next file to read in files

	active  C // samples ready to be cut into batches
	staging C // destination of the outstanding read
	reader  *backgroundReader[C]

	err error // failure that ended the epoch, repeated until the next one
}

// New creates a Generator. newContainer must return a fresh, empty container
// on every call.
func New[C types.Container[C]](newContainer func() C, cfg Config) (*Generator[C], error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &Generator[C]{
		cfg:          cfg,
		log:          cfg.Logger,
		rec:          cfg.Recorder,
		newContainer: newContainer,
		shuffler:     newShuffler(),
		active:       newContainer(),
		staging:      newContainer(),
		reader:       newBackgroundReader[C](cfg.Logger, cfg.Recorder),
	}, nil
}

// SetFileList adopts files and computes the total sample count from their
// shape metadata. A running epoch is ended first. On error the previous file
// list is kept.
func (g *Generator[C]) SetFileList(files []string) error {
	if len(files) == 0 {
		return &ConfigurationError{Reason: "empty file list"}
	}
	if err := g.End(); err != nil {
		return err
	}

	total, err := g.countSamples(files)
	if err != nil {
		return err
	}

	g.origFiles = slices.Clone(files)
	g.files = slices.Clone(files)
	g.err = nil
	g.totalSamples = total
	g.totalBatches = total / g.cfg.BatchSize
	g.state = StateConfigured

	g.log.Info("file list configured",
		"files", len(files),
		"total_samples", g.totalSamples,
		"batches", g.totalBatches)
	return nil
}

// SetBatchSize sets the batch size and recomputes NBatches. It is meant to
// be called between epochs.
func (g *Generator[C]) SetBatchSize(n int) error {
	if n < 1 {
		return &ConfigurationError{Reason: "invalid batch size", Err: ErrInvalidBatchSize}
	}
	g.cfg.BatchSize = n
	g.totalBatches = g.totalSamples / n
	return nil
}

// SetFileTimeout sets the number of read attempts per file. It applies to
// reads started afterwards.
func (g *Generator[C]) SetFileTimeout(attempts int) error {
	if attempts < 1 {
		return &ConfigurationError{Reason: "invalid file timeout", Err: ErrInvalidFileTimeout}
	}
	g.cfg.FileTimeout = attempts
	return nil
}

// EnableThreading switches between background prefetching and inline reads.
// It applies to reads started afterwards.
func (g *Generator[C]) EnableThreading(enabled bool) {
	g.cfg.Threading = enabled
}

// SetDebug toggles progress diagnostics.
func (g *Generator[C]) SetDebug(enabled bool) {
	g.cfg.Debug = enabled
}

// PrepareNextEpoch starts a new epoch: the stale read is discarded, buffers
// and counters are reset, the files are reshuffled and the first file is
// requested.
func (g *Generator[C]) PrepareNextEpoch() error {
	if g.state == StateIdle {
		return ErrNotConfigured
	}

	err := g.reader.discard()
	g.active.Clear()
	g.staging.Clear()
	g.processed = 0
	g.lastBatchSize = 0
	g.fileIndex = 0
	g.err = nil
	g.state = StateConfigured
	if err != nil {
		return err
	}

	g.epoch++
	g.files = g.shuffler.next(g.origFiles)

	if err := g.startRead(g.files[0]); err != nil {
		return err
	}
	g.fileIndex = 1

	g.state = StateEpochActive
	if g.totalSamples < g.cfg.BatchSize {
		g.state = StateEpochDrained
	}
	g.rec.RecordEpoch()

	if g.cfg.Debug {
		g.log.Info("epoch prepared", "epoch", g.epoch, "first_file", g.files[0], "batches", g.totalBatches)
	}
	return nil
}

// SkipEpochs advances the epoch counter and the shuffle seed by n without
// reading data, so a resumed run sees the same file orders it would have
// seen without the restart. A running epoch is ended first.
func (g *Generator[C]) SkipEpochs(n int) error {
	if n < 0 {
		return &ConfigurationError{Reason: "negative epoch count"}
	}
	if err := g.End(); err != nil {
		return err
	}
	g.epoch += n
	g.shuffler.seed += int64(n)
	return nil
}

// GetBatch returns the next batch of exactly BatchSize samples, blocking
// while the needed file is still being read. Callers must not request more
// than NBatches batches per epoch; doing so returns a DataExhaustionError.
// Once a file could not be read, every further call returns the same error
// until PrepareNextEpoch starts a new epoch.
func (g *Generator[C]) GetBatch() (C, error) {
	var zero C
	switch g.state {
	case StateIdle:
		return zero, ErrNotConfigured
	case StateConfigured:
		return zero, ErrEpochNotStarted
	case StateEpochDrained:
		return zero, g.exhausted()
	}
	if g.err != nil {
		return zero, g.err
	}
	batch, err := g.produceBatch()
	if err != nil {
		g.err = err
	}
	return batch, err
}

// End stops the outstanding read and joins it. It is safe to call any number
// of times. A read that had already exhausted its retries is reported.
func (g *Generator[C]) End() error {
	err := g.reader.discard()
	if g.state == StateEpochActive || g.state == StateEpochDrained {
		g.state = StateConfigured
	}
	return err
}

// Close implements io.Closer.
func (g *Generator[C]) Close() error {
	return g.End()
}

// LastBatch reports whether the most recently delivered batch left fewer
// than one batch of samples in the epoch.
func (g *Generator[C]) LastBatch() bool {
	return g.lastBatchSize > 0 && g.processed > g.totalSamples-g.lastBatchSize
}

// NTotal returns the total number of samples in the file list.
func (g *Generator[C]) NTotal() int { return g.totalSamples }

// NBatches returns the number of full batches per epoch.
func (g *Generator[C]) NBatches() int { return g.totalBatches }

// BatchSize returns the configured batch size.
func (g *Generator[C]) BatchSize() int { return g.cfg.BatchSize }

// ProcessedSamples returns the number of samples delivered this epoch.
func (g *Generator[C]) ProcessedSamples() int { return g.processed }

// LastBatchSize returns the size of the most recent batch, 0 before the first.
func (g *Generator[C]) LastBatchSize() int { return g.lastBatchSize }

// Epoch returns the number of epochs started so far.
func (g *Generator[C]) Epoch() int { return g.epoch }

// State returns the lifecycle state.
func (g *Generator[C]) State() State { return g.state }

// Files returns the file order of the current epoch.
func (g *Generator[C]) Files() []string { return slices.Clone(g.files) }

func (g *Generator[C]) startRead(path string) error {
	policy := readPolicy{
		attempts: g.cfg.FileTimeout,
		interval: g.cfg.RetryInterval,
		exists:   g.cfg.FileExists,
	}
	return g.reader.start(path, g.staging, policy, g.cfg.Threading)
}
