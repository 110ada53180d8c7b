package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client shared by the queue and the ledger.
// The underlying connection pool is safe for concurrent use.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a client from a redis:// URL.
func NewClient(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Client{rdb: redis.NewClient(opts)}, nil
}

// NewClientFromOptions builds a client from pre-parsed options. Used by
// tests that point at an in-process Redis.
func NewClientFromOptions(opts *redis.Options) *Client {
	return &Client{rdb: redis.NewClient(opts)}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
