package queue

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// BackoffFunc computes the redelivery delay for a failed attempt
type BackoffFunc func(attempt int) time.Duration

// DefaultBackoff doubles a half-second base per attempt, capped at 30s
func DefaultBackoff(attempt int) time.Duration {
	delay := 500 * time.Millisecond
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= 30*time.Second {
			return 30 * time.Second
		}
	}
	return delay
}

// Worker pulls tasks from a queue and dispatches them to registered
// handlers over a bounded pool of goroutines. A handler error triggers a
// backoff redelivery while the task's attempt budget lasts, unless the
// error is marked Permanent.
type Worker struct {
	queue       Queue
	handlers    map[string]HandlerFunc
	concurrency int
	backoff     BackoffFunc
	logger      hclog.Logger
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
}

// NewWorker creates a worker pool of the given size
func NewWorker(q Queue, concurrency int, logger hclog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		queue:       q,
		handlers:    make(map[string]HandlerFunc),
		concurrency: concurrency,
		backoff:     DefaultBackoff,
		logger:      logger.Named("worker"),
	}
}

// SetBackoff overrides the redelivery backoff; used in tests
func (w *Worker) SetBackoff(backoff BackoffFunc) {
	w.backoff = backoff
}

// Register installs the handler for a task type
func (w *Worker) Register(taskType string, handler HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[taskType] = handler
}

// Start launches the worker goroutines
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}
}

// Stop cancels the workers and waits for in-flight tasks to finish
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if err == ErrQueueClosed || ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed", "error", err)
			continue
		}

		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task *Task) {
	w.mu.RLock()
	handler, ok := w.handlers[task.Type]
	w.mu.RUnlock()

	if !ok {
		w.logger.Error("no handler for task type", "type", task.Type, "task_id", task.ID)
		return
	}

	err := handler(ctx, task)
	if err == nil {
		return
	}

	if IsPermanent(err) {
		w.logger.Error("task failed permanently", "type", task.Type, "task_id", task.ID, "attempt", task.Attempt, "error", err)
		return
	}

	if task.Attempt >= task.MaxAttempts {
		w.logger.Error("task exhausted attempts", "type", task.Type, "task_id", task.ID, "attempts", task.Attempt, "error", err)
		return
	}

	delay := w.backoff(task.Attempt)
	w.logger.Warn("task failed, retrying", "type", task.Type, "task_id", task.ID, "attempt", task.Attempt, "delay", delay, "error", err)

	if err := w.queue.Requeue(ctx, task, delay); err != nil {
		w.logger.Error("requeue failed", "type", task.Type, "task_id", task.ID, "error", err)
	}
}
