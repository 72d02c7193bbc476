// ============================================================================
// Batchfeed Worker Pool - Concurrent Task Executor
// ============================================================================
//
// Package: internal/worker
// File: worker_pool.go
// Function: Manages a fixed set of Worker goroutines for bulk file work
//
// Design:
//   1. A fixed number of Worker goroutines keep running
//   2. Tasks are distributed over a shared buffered channel
//   3. Results are collected on a result channel
//
//   ┌─────────────┐
//   │   pack cmd  │ --Submit()--> taskCh
//   └─────────────┘
//         ↑
//   ReceiveResult()
//         ↑
//   ┌─────────────┐
//   │   Pool      │
//   │  ┌────────┐ │
//   │  │Worker 1│←── taskCh
//   │  │Worker 2│←── taskCh   ──→ resultCh
//   │  │Worker 3│←── taskCh
//   │  └────────┘ │
//   └─────────────┘
//
// Lifecycle:
//   1. NewPool() - create Pool with a Handler
//   2. Start(n)  - start n Worker goroutines
//   3. Submit(task) / ReceiveResult()
//   4. Stop()    - close taskCh, wait for every Worker
//
// Workers block on a full resultCh, so callers submitting more tasks than
// the buffer holds must receive results concurrently.
//
// The generator's prefetch does not use the Pool: it needs exactly one
// in-flight read and uses Handle instead.
//
// ============================================================================

package worker

import (
	"errors"
	"sync"
)

var (
	// ErrPoolClosed means the Pool has been stopped
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolNotStarted means Start has not been called yet
	ErrPoolNotStarted = errors.New("worker pool not started")
)

// Pool manages several concurrent Workers
type Pool struct {
	workers  []*Worker
	handler  Handler
	taskCh   chan Task
	resultCh chan Result
	stopCh   chan struct{}
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	mu       sync.Mutex   // protects started/stopped/workers
	sendMu   sync.RWMutex // held shared by senders, exclusively before taskCh closes
}

// NewPool creates a Pool whose channels buffer bufferSize entries.
func NewPool(bufferSize int, handler Handler) *Pool {
	return &Pool{
		workers:  make([]*Worker, 0),
		handler:  handler,
		taskCh:   make(chan Task, bufferSize),
		resultCh: make(chan Result, bufferSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches workerCount Workers.
func (p *Pool) Start(workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pool already started")
	}
	if workerCount < 1 {
		return errors.New("pool needs at least one worker")
	}

	for i := 0; i < workerCount; i++ {
		worker := newWorker(i, p.taskCh, p.resultCh, p.handler)
		p.workers = append(p.workers, worker)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run()
		}(worker)
	}

	p.started = true
	return nil
}

// Submit queues a task. It blocks while taskCh is full.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.sendMu.RLock()
	p.mu.Unlock()
	defer p.sendMu.RUnlock()

	select {
	case p.taskCh <- task:
		return nil
	case <-p.stopCh:
		return ErrPoolClosed
	}
}

// ReceiveResult waits for the next task result.
func (p *Pool) ReceiveResult() (Result, error) {
	select {
	case result, ok := <-p.resultCh:
		if !ok {
			return Result{}, ErrPoolClosed
		}
		return result, nil
	case <-p.stopCh:
		return Result{}, ErrPoolClosed
	}
}

// Stop closes the task channel and waits for all Workers to exit.
// Results not yet received are discarded.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	// stopCh releases blocked senders; taskCh closes once none is left
	close(p.stopCh)
	p.sendMu.Lock()
	close(p.taskCh)
	p.sendMu.Unlock()

	// Workers may be blocked on a full resultCh.
	go func() {
		for range p.resultCh {
		}
	}()

	p.wg.Wait()

	close(p.resultCh)
}

// GetWorkerCount returns the number of started Workers
func (p *Pool) GetWorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IsStarted reports whether Start succeeded
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}
