// Package queue provides the durable task queue used to drive pipeline
// execution: coordinator ticks and node execution tasks are both delivered
// through it, each with its own retry budget.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Dequeue after the queue is closed
var ErrQueueClosed = errors.New("queue closed")

// Task is one unit of work delivered at least once
type Task struct {
	// ID of the task
	ID string `json:"id"`

	// Type selects the registered handler
	Type string `json:"type"`

	// Payload is the JSON-encoded task argument
	Payload json.RawMessage `json:"payload"`

	// Attempt is the 1-based number of the current delivery
	Attempt int `json:"attempt"`

	// MaxAttempts is the delivery budget for this task
	MaxAttempts int `json:"max_attempts"`
}

// EnqueueOptions tune a single enqueue
type EnqueueOptions struct {
	// Delay postpones the first delivery
	Delay time.Duration

	// MaxAttempts overrides the default budget of 1
	MaxAttempts int
}

// Queue is a task queue with at-least-once delivery
type Queue interface {
	// Enqueue adds a task and returns its ID. The payload is JSON-encoded.
	Enqueue(ctx context.Context, taskType string, payload interface{}, opts *EnqueueOptions) (string, error)

	// Dequeue blocks until a task is available, the context is done, or the
	// queue is closed
	Dequeue(ctx context.Context) (*Task, error)

	// Requeue schedules a redelivery of a task with an incremented attempt
	// number after the given delay
	Requeue(ctx context.Context, task *Task, delay time.Duration) error

	// Close releases resources and unblocks pending Dequeue calls
	Close() error
}

// HandlerFunc processes one task delivery
type HandlerFunc func(ctx context.Context, task *Task) error

// permanentError marks a handler failure that must not be retried
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps an error so the worker drops the task instead of retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether an error was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
