package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ardhiansyah/veloria/internal/common/config"
	"github.com/ardhiansyah/veloria/internal/common/logger"
)

// Client wraps the go-redis client.
type Client struct {
	*redis.Client
	logger *logger.Logger
}

// Connect creates a Redis client and verifies it with a ping.
func Connect(cfg config.RedisConfig, log *logger.Logger) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Infof("Connected to Redis at %s:%s", cfg.Host, cfg.Port)

	return &Client{Client: client, logger: log}, nil
}

// DeleteByPattern scans for keys matching pattern and deletes them.
func (c *Client) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := c.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
