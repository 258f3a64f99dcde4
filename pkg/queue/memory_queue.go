package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements the Queue interface in process memory.
// Delayed tasks are held by timers until they become ready.
type MemoryQueue struct {
	ready  []*Task
	notify chan struct{}
	closed chan struct{}
	once   sync.Once
	mu     sync.Mutex
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Enqueue adds a task and returns its ID
func (q *MemoryQueue) Enqueue(ctx context.Context, taskType string, payload interface{}, opts *EnqueueOptions) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := &Task{
		ID:          uuid.New().String(),
		Type:        taskType,
		Payload:     data,
		Attempt:     1,
		MaxAttempts: 1,
	}
	if opts != nil && opts.MaxAttempts > 0 {
		task.MaxAttempts = opts.MaxAttempts
	}

	delay := time.Duration(0)
	if opts != nil {
		delay = opts.Delay
	}

	q.schedule(task, delay)

	return task.ID, nil
}

// Requeue schedules a redelivery with an incremented attempt number
func (q *MemoryQueue) Requeue(ctx context.Context, task *Task, delay time.Duration) error {
	retry := *task
	retry.Attempt = task.Attempt + 1
	q.schedule(&retry, delay)

	return nil
}

// Dequeue blocks until a task is available, the context is done, or the
// queue is closed
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.ready) > 0 {
			task := q.ready[0]
			q.ready = q.ready[1:]
			q.mu.Unlock()
			return task, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.closed:
			return nil, ErrQueueClosed
		case <-q.notify:
		}
	}
}

// Close unblocks pending Dequeue calls
func (q *MemoryQueue) Close() error {
	q.once.Do(func() {
		close(q.closed)
	})
	return nil
}

func (q *MemoryQueue) schedule(task *Task, delay time.Duration) {
	if delay <= 0 {
		q.push(task)
		return
	}

	time.AfterFunc(delay, func() {
		select {
		case <-q.closed:
			// Dropped: the queue is gone
		default:
			q.push(task)
		}
	})
}

func (q *MemoryQueue) push(task *Task) {
	q.mu.Lock()
	q.ready = append(q.ready, task)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}
