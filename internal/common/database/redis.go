package database

import (
	"context"
	"fmt"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs both the recipient cache and realtime pub/sub.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds the client from cfg.URL when set (redis:// or rediss://),
// otherwise from the discrete address fields.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	opts.PoolSize = cfg.PoolSize
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	opts.MinIdleConns = opts.PoolSize / 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	return &RedisClient{Client: redis.NewClient(opts)}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
