// Package redis backs the modern notification center, the permission state
// and the API rate limiter with Redis.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds Redis connection settings.
type Config struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string // namespaces every key, one prefix per application
}

// Client wraps go-redis with the key namespace and logging.
type Client struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

// New connects and pings.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  4 * time.Second,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("key_prefix", cfg.KeyPrefix),
	)

	return Wrap(rdb, cfg.KeyPrefix, logger), nil
}

// Wrap builds a Client around an existing go-redis client.
func Wrap(rdb *redis.Client, prefix string, logger *zap.Logger) *Client {
	if prefix == "" {
		prefix = "beacon"
	}
	return &Client{rdb: rdb, prefix: prefix, logger: logger}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// key joins parts under the client prefix: "beacon:center:due".
func (c *Client) key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}
