package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisQueue(context.Background(), RedisQueueConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestRedisQueueEnqueueDequeue(t *testing.T) {
	q := newTestRedisQueue(t)

	id, err := q.Enqueue(context.Background(), "tick", map[string]string{"run_id": "r1"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, "tick", task.Type)
	assert.Equal(t, 1, task.Attempt)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(task.Payload, &payload))
	assert.Equal(t, "r1", payload["run_id"])
}

func TestRedisQueueFIFO(t *testing.T) {
	q := newTestRedisQueue(t)

	first, err := q.Enqueue(context.Background(), "tick", nil, nil)
	require.NoError(t, err)
	second, err := q.Enqueue(context.Background(), "tick", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, err := q.Dequeue(ctx)
	require.NoError(t, err)
	b, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, a.ID)
	assert.Equal(t, second, b.ID)
}

func TestRedisQueueDelayedPromotion(t *testing.T) {
	q := newTestRedisQueue(t)

	_, err := q.Enqueue(context.Background(), "tick", nil, &EnqueueOptions{Delay: 150 * time.Millisecond})
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tick", task.Type)
}

func TestRedisQueueRequeueIncrementsAttempt(t *testing.T) {
	q := newTestRedisQueue(t)

	_, err := q.Enqueue(context.Background(), "tick", nil, &EnqueueOptions{MaxAttempts: 4})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempt)

	require.NoError(t, q.Requeue(context.Background(), task, 0))

	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, task.ID, redelivered.ID)
	assert.Equal(t, 2, redelivered.Attempt)
	assert.Equal(t, 4, redelivered.MaxAttempts)
}
