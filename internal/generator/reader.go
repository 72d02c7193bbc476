// ============================================================================
// Background Reader - single-file prefetch
// ============================================================================
//
// The reader owns at most one outstanding read of one file into the staging
// container. Two strategies share the same start/join protocol:
//
//   threaded  start launches a goroutine (worker.Handle); join waits for it
//   inline    start only records the request; join performs the read on the
//             caller's goroutine, so nothing overlaps
//
// The staging container is written only by the outstanding read and read by
// the generator only after join returns, so no lock guards it.
//
// Retry policy per file:
//   - file absent            wait one interval, try again
//   - read error (corrupt)   log the error, wait one interval, try again
//   - success                return immediately
//   - budget exhausted       clear staging, return *ReadFailure
// ============================================================================

package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ChuLiYu/batchfeed/internal/worker"
	"github.com/ChuLiYu/batchfeed/pkg/types"
)

// readPolicy is captured when a read starts so later setter calls cannot
// race with the running read.
type readPolicy struct {
	attempts int
	interval time.Duration
	exists   func(string) bool
}

type pendingRead[C types.Container[C]] struct {
	path   string
	dst    C
	policy readPolicy
}

type backgroundReader[C types.Container[C]] struct {
	log    *slog.Logger
	rec    Recorder
	handle worker.Handle
	inline *pendingRead[C]
	path   string // file of the outstanding or most recent read
}

func newBackgroundReader[C types.Container[C]](log *slog.Logger, rec Recorder) *backgroundReader[C] {
	return &backgroundReader[C]{log: log, rec: rec}
}

// start issues a read of path into dst.
func (r *backgroundReader[C]) start(path string, dst C, policy readPolicy, threaded bool) error {
	if r.inFlight() {
		return worker.ErrHandleBusy
	}
	r.path = path

	if !threaded {
		r.inline = &pendingRead[C]{path: path, dst: dst, policy: policy}
		return nil
	}
	return r.handle.Start(context.Background(), func(ctx context.Context) error {
		return r.read(ctx, path, dst, policy)
	})
}

func (r *backgroundReader[C]) inFlight() bool {
	return r.inline != nil || r.handle.Running()
}

// prefetching reports whether a background read is outstanding. An inline
// read is not a prefetch: join performs it.
func (r *backgroundReader[C]) prefetching() bool {
	return r.handle.Running()
}

// join waits for the outstanding read and returns its error.
// Without an outstanding read it returns nil.
func (r *backgroundReader[C]) join() error {
	if p := r.inline; p != nil {
		r.inline = nil
		return r.read(context.Background(), p.path, p.dst, p.policy)
	}
	return r.handle.Join()
}

// discard stops waiting between retries of the outstanding read and joins
// it. A read that already failed still reports its ReadFailure.
func (r *backgroundReader[C]) discard() error {
	r.inline = nil
	r.handle.Cancel()
	err := r.handle.Join()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// read loads path into dst following policy.
func (r *backgroundReader[C]) read(ctx context.Context, path string, dst C, policy readPolicy) error {
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= policy.attempts; attempt++ {
		if policy.exists(path) {
			err := dst.ReadFromFile(path)
			if err == nil {
				r.rec.RecordFileRead(time.Since(start), attempt)
				return nil
			}
			lastErr = err
			r.log.Warn("file not read successfully",
				"file", path,
				"attempt", attempt,
				"remaining", policy.attempts-attempt,
				"error", err)
		} else {
			lastErr = fmt.Errorf("%s: %w", path, os.ErrNotExist)
			r.log.Debug("file not found",
				"file", path,
				"attempt", attempt,
				"remaining", policy.attempts-attempt)
		}

		if attempt == policy.attempts {
			break
		}
		r.rec.RecordReadRetry()

		select {
		case <-ctx.Done():
			dst.Clear()
			return ctx.Err()
		case <-time.After(policy.interval):
		}
	}

	dst.Clear()
	r.rec.RecordReadFailure()
	r.log.Error("file could not be read", "file", path, "attempts", policy.attempts, "error", lastErr)
	return &ReadFailure{Path: path, Attempts: policy.attempts, Err: lastErr}
}
