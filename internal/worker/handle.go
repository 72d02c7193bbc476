package worker

import (
	"context"
	"errors"
)

// ErrHandleBusy is returned by Start while a previous run has not been joined.
var ErrHandleBusy = errors.New("worker handle: previous run not joined")

// Handle owns at most one background goroutine at a time.
//
// A run is started with Start and must be joined with Join before the next
// Start. Join is the only synchronisation point: everything the run wrote is
// visible to the caller once Join returns. A Handle is owned by a single
// goroutine and is not safe for concurrent use.
type Handle struct {
	cur *run
}

type run struct {
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// Start runs fn on a new goroutine. The context passed to fn is derived from
// ctx and is cancelled by Cancel or after Join.
func (h *Handle) Start(ctx context.Context, fn func(ctx context.Context) error) error {
	if h.cur != nil {
		return ErrHandleBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{done: make(chan struct{}), cancel: cancel}
	h.cur = r

	go func() {
		defer close(r.done)
		r.err = fn(runCtx)
	}()
	return nil
}

// Join blocks until the current run finishes and returns its error.
// Without a run it returns nil immediately.
func (h *Handle) Join() error {
	r := h.cur
	if r == nil {
		return nil
	}
	<-r.done
	r.cancel()
	h.cur = nil
	return r.err
}

// Cancel cancels the context of the current run without waiting for it.
func (h *Handle) Cancel() {
	if h.cur != nil {
		h.cur.cancel()
	}
}

// Running reports whether a run has been started and not yet joined.
func (h *Handle) Running() bool {
	return h.cur != nil
}
