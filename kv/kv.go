// Package kv is the single typed boundary over the external key-value
// store. The cache, lock, and rate-limiter packages depend on this
// interface only, never on a raw Redis handle.
package kv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sentineldev/sentinel-gateway/config"
	"github.com/sentineldev/sentinel-gateway/errs"
)

// Store is the KV client adapter contract: get/set-with-TTL, delete,
// atomic set-if-absent-with-TTL, key scan, and a pipelined multi-get.
// Every operation surfaces failures as a single StorageUnavailable class.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SetNXEx(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Scan(ctx context.Context, cursor uint64, pattern string, batch int64) (keys []string, next uint64, err error)
	// MGet reads several keys in one round trip. Missing keys come back
	// as empty strings with found=false at the same index.
	MGet(ctx context.Context, keys ...string) ([]Result, error)
	Ping(ctx context.Context) error
	Close() error
}

// Result is one entry of a pipelined multi-get.
type Result struct {
	Value string
	Found bool
}

// Client is a Redis-backed Store.
type Client struct {
	c *redis.Client
}

// New builds a Redis-backed KV client from the configured URL.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errs.Wrap(errs.StorageUnavailable, "parse redis url", err)
	}
	return &Client{c: redis.NewClient(opt)}, nil
}

// Ping verifies connectivity with a short timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.c.Ping(ctx).Err(); err != nil {
		return errs.Wrap(errs.StorageUnavailable, "ping", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.c.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(errs.StorageUnavailable, "get", err)
	}
	return v, true, nil
}

func (c *Client) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return errs.Wrap(errs.StorageUnavailable, "set_ex", err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.c.Del(ctx, keys...).Err(); err != nil {
		return errs.Wrap(errs.StorageUnavailable, "del", err)
	}
	return nil
}

// SetNXEx is the lock primitive: set-iff-absent with expiry, returning
// whether the write occurred.
func (c *Client) SetNXEx(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.c.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, errs.Wrap(errs.StorageUnavailable, "set_nx_ex", err)
	}
	return ok, nil
}

// Scan is cursor-based and safe to interleave with concurrent deletes —
// callers loop until next==0.
func (c *Client) Scan(ctx context.Context, cursor uint64, pattern string, batch int64) ([]string, uint64, error) {
	keys, next, err := c.c.Scan(ctx, cursor, pattern, batch).Result()
	if err != nil {
		return nil, 0, errs.Wrap(errs.StorageUnavailable, "scan", err)
	}
	return keys, next, nil
}

// MGet reads several keys in one pipelined round trip.
func (c *Client) MGet(ctx context.Context, keys ...string) ([]Result, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.StringCmd, len(keys))
	pipe := c.c.Pipeline()
	for i, k := range keys {
		cmds[i] = pipe.Get(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, errs.Wrap(errs.StorageUnavailable, "pipeline", err)
	}
	out := make([]Result, len(keys))
	for i, cmd := range cmds {
		v, err := cmd.Result()
		if err == redis.Nil {
			out[i] = Result{Found: false}
			continue
		}
		if err != nil {
			return nil, errs.Wrap(errs.StorageUnavailable, "pipeline get", err)
		}
		out[i] = Result{Value: v, Found: true}
	}
	return out, nil
}

func (c *Client) Close() error {
	return c.c.Close()
}
