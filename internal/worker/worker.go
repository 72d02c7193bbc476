// ============================================================================
// Batchfeed Worker - Task Execution Unit
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Function: Work unit of the Pool, each Worker runs in an independent goroutine
//
// How it works:
//   1. Receive task from taskCh (blocking wait)
//   2. Run the Handler under a per-task timeout
//   3. Send result to resultCh
//   4. Repeat until taskCh is closed
//
// Timeout Control:
//   Each task gets its own context.WithTimeout. If the handler does not
//   return before the deadline, the task is reported with
//   context.DeadlineExceeded and the worker moves on; the handler goroutine
//   finishes on its own and its late result is discarded.
//
// ============================================================================

package worker

import (
	"context"
	"time"
)

// Worker represents a work execution unit
type Worker struct {
	id       int           // Worker identifier, used for logging and debugging
	taskCh   <-chan Task   // Task channel (read-only)
	resultCh chan<- Result // Result channel (write-only)
	handler  Handler       // Task logic
}

// newWorker creates a new Worker instance
func newWorker(id int, taskCh <-chan Task, resultCh chan<- Result, handler Handler) *Worker {
	return &Worker{
		id:       id,
		taskCh:   taskCh,
		resultCh: resultCh,
		handler:  handler,
	}
}

// Run is the main loop of Worker. It returns when taskCh is closed.
func (w *Worker) Run() {
	for task := range w.taskCh {
		start := time.Now()

		ctx, cancel := context.Background(), context.CancelFunc(func() {})
		if task.Timeout > 0 {
			ctx, cancel = context.WithTimeout(context.Background(), task.Timeout)
		}

		err := w.execute(ctx, task)
		cancel()

		w.resultCh <- Result{
			TaskID:   task.ID,
			Success:  err == nil,
			Error:    err,
			Duration: time.Since(start),
		}
	}
}

// execute runs the handler and gives up once ctx is done.
func (w *Worker) execute(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- w.handler(ctx, task)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
