package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lernguide/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis client to centralize configuration.
type Client struct {
	inner *redis.Client
}

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

// NewRedisClient creates the redis client from app config.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	return connect(opts)
}

// NewFromAddr connects to addr directly; used by tests.
func NewFromAddr(addr string) (*Client, error) {
	return connect(&redis.Options{Addr: addr})
}

func connect(opts *redis.Options) (*Client, error) {
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client}, nil
}

// Set stores a key without expiry when ttl is zero.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Set(ctx, key, value, ttl).Err()
}

// Get fetches the key as string.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.inner == nil {
		return "", errNotInitialized
	}
	return c.inner.Get(ctx, key).Result()
}

// Del removes provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Del(ctx, keys...).Err()
}

// UsedBytes sums key and value lengths for every key matching pattern except skip.
func (c *Client) UsedBytes(ctx context.Context, pattern, skip string) (int, error) {
	if c == nil || c.inner == nil {
		return 0, errNotInitialized
	}
	total := 0
	iter := c.inner.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if key == skip {
			continue
		}
		n, err := c.inner.StrLen(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		total += len(key) + int(n)
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return total, nil
}

// IsOOM reports the server rejecting a write because maxmemory is reached.
func IsOOM(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "OOM ")
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
