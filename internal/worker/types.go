package worker

import (
	"context"
	"time"
)

// Task is one unit of work for the pool, typically a file conversion.
type Task struct {
	ID      string        // unique task identifier
	Source  string        // input path
	Dest    string        // output path
	Timeout time.Duration // execution budget, zero means no limit
}

// Result is the outcome of one Task.
type Result struct {
	TaskID   string        // task ID
	Success  bool          // whether the handler returned nil
	Error    error         // handler or timeout error
	Duration time.Duration // wall time spent on the task
}

// Handler executes a single Task. It should return promptly once ctx is done.
type Handler func(ctx context.Context, task Task) error
