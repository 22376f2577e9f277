package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client. A nil *Client is a valid "cache
// disabled" state for consumers.
type Client struct {
	*redis.Client
}

// ConfigFromEnv reads the optional redis URL from the environment.
func ConfigFromEnv() string {
	return os.Getenv("REDIS_URL")
}

// New creates a redis client from a URL and verifies connectivity.
// Returns nil (no error) when the URL is empty: redis is optional here.
func New(url string) (*Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client}, nil
}

// NewFromClient wraps an existing redis client (tests use miniredis here).
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{Client: rdb}
}

// IsMiss reports whether the error is a plain cache miss.
func (c *Client) IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Health checks the connection.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
