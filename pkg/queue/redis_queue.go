package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const promoteBatchSize = 100

// RedisQueue implements the Queue interface on Redis. Ready tasks live in a
// list; delayed tasks live in a sorted set scored by their ready time and
// are promoted to the list as they come due.
type RedisQueue struct {
	client    *redis.Client
	readyKey  string
	delayKey  string
	pollEvery time.Duration
}

// RedisQueueConfig contains configuration for the Redis queue
type RedisQueueConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisQueue creates a new Redis-backed queue
func NewRedisQueue(ctx context.Context, config RedisQueueConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "reelflow"
	}

	return &RedisQueue{
		client:    client,
		readyKey:  prefix + ":tasks:ready",
		delayKey:  prefix + ":tasks:delayed",
		pollEvery: 100 * time.Millisecond,
	}, nil
}

// Enqueue adds a task and returns its ID
func (q *RedisQueue) Enqueue(ctx context.Context, taskType string, payload interface{}, opts *EnqueueOptions) (string, error) {
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

	if err := q.schedule(ctx, task, delay); err != nil {
		return "", err
	}

	return task.ID, nil
}

// Requeue schedules a redelivery with an incremented attempt number
func (q *RedisQueue) Requeue(ctx context.Context, task *Task, delay time.Duration) error {
	retry := *task
	retry.Attempt = task.Attempt + 1

	return q.schedule(ctx, &retry, delay)
}

// Dequeue blocks until a task is available or the context is done
func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	ticker := time.NewTicker(q.pollEvery)
	defer ticker.Stop()

	for {
		if err := q.promoteDue(ctx); err != nil {
			return nil, err
		}

		data, err := q.client.RPop(ctx, q.readyKey).Bytes()
		if err == nil {
			var task Task
			if err := json.Unmarshal(data, &task); err != nil {
				return nil, fmt.Errorf("failed to unmarshal task: %w", err)
			}
			return &task, nil
		}
		if err != redis.Nil {
			return nil, fmt.Errorf("failed to pop task: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) schedule(ctx context.Context, task *Task, delay time.Duration) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if delay > 0 {
		readyAt := float64(time.Now().Add(delay).UnixNano())
		if err := q.client.ZAdd(ctx, q.delayKey, &redis.Z{Score: readyAt, Member: data}).Err(); err != nil {
			return fmt.Errorf("failed to schedule delayed task: %w", err)
		}
		return nil
	}

	if err := q.client.LPush(ctx, q.readyKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// promoteDue moves due delayed tasks onto the ready list. ZRem is the
// arbiter when several workers race on the same member: only the winner
// pushes.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := fmt.Sprintf("%d", time.Now().UnixNano())

	members, err := q.client.ZRangeByScore(ctx, q.delayKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: promoteBatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed tasks: %w", err)
	}

	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.delayKey, member).Result()
		if err != nil {
			return fmt.Errorf("failed to promote delayed task: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.readyKey, member).Err(); err != nil {
			return fmt.Errorf("failed to push promoted task: %w", err)
		}
	}

	return nil
}
