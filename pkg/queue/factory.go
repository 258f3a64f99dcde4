package queue

import (
	"context"
	"fmt"

	"github.com/pyrex41/reelflow/pkg/config"
)

// NewQueue creates a task queue from the application configuration
func NewQueue(ctx context.Context, cfg config.QueueConfig) (Queue, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryQueue(), nil

	case "redis":
		return NewRedisQueue(ctx, RedisQueueConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})

	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}
