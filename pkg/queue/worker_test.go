package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrex41/reelflow/pkg/logging"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorkerDispatchesToHandler(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	var handled int32
	w := NewWorker(q, 2, logging.NewNop())
	w.Register("noop", func(ctx context.Context, task *Task) error {
		atomic.AddInt32(&handled, 1)
		return nil
	})

	w.Start(context.Background())
	defer w.Stop()

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(context.Background(), "noop", nil, nil)
		require.NoError(t, err)
	}

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&handled) == 5 })
}

func TestWorkerRetriesUntilSuccess(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	var calls int32
	w := NewWorker(q, 1, logging.NewNop())
	w.SetBackoff(func(attempt int) time.Duration { return time.Millisecond })
	w.Register("flaky", func(ctx context.Context, task *Task) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	w.Start(context.Background())
	defer w.Stop()

	_, err := q.Enqueue(context.Background(), "flaky", nil, &EnqueueOptions{MaxAttempts: 5})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&calls) == 3 })

	// No further deliveries after success
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWorkerStopsAtAttemptBudget(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	var calls int32
	w := NewWorker(q, 1, logging.NewNop())
	w.SetBackoff(func(attempt int) time.Duration { return time.Millisecond })
	w.Register("doomed", func(ctx context.Context, task *Task) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("always fails")
	})

	w.Start(context.Background())
	defer w.Stop()

	_, err := q.Enqueue(context.Background(), "doomed", nil, &EnqueueOptions{MaxAttempts: 3})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&calls) == 3 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWorkerPermanentErrorSkipsRetry(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	var calls int32
	w := NewWorker(q, 1, logging.NewNop())
	w.SetBackoff(func(attempt int) time.Duration { return time.Millisecond })
	w.Register("invalid", func(ctx context.Context, task *Task) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("bad config"))
	})

	w.Start(context.Background())
	defer w.Stop()

	_, err := q.Enqueue(context.Background(), "invalid", nil, &EnqueueOptions{MaxAttempts: 5})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&calls) == 1 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDefaultBackoffGrowsAndCaps(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, DefaultBackoff(1))
	assert.Equal(t, time.Second, DefaultBackoff(2))
	assert.Equal(t, 2*time.Second, DefaultBackoff(3))
	assert.Equal(t, 30*time.Second, DefaultBackoff(20))
}

func TestIsPermanent(t *testing.T) {
	assert.False(t, IsPermanent(errors.New("plain")))
	assert.True(t, IsPermanent(Permanent(errors.New("fatal"))))
	assert.Nil(t, Permanent(nil))
}
