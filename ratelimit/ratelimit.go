// Package ratelimit implements the token-bucket rate limiter (§4.8): per
// API key, backed by the KV store, failing open on KV error.
package ratelimit

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/sentineldev/sentinel-gateway/kv"
)

const keyPrefix = "ratelimit:"

// Limiter enforces a token bucket of capacity C refilling at C/W per
// second, where W is the window length.
type Limiter struct {
	kv       kv.Store
	capacity float64
	window   time.Duration
	refill   float64 // tokens per second
}

// New builds a limiter with capacity C over window W.
func New(store kv.Store, capacity int, window time.Duration) *Limiter {
	return &Limiter{
		kv:       store,
		capacity: float64(capacity),
		window:   window,
		refill:   float64(capacity) / window.Seconds(),
	}
}

// Result is what Check reports back to the caller (and, via the router,
// the X-RateLimit-* response headers).
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

func (l *Limiter) countKey(apiKey string) string { return keyPrefix + apiKey + ":count" }
func (l *Limiter) resetKey(apiKey string) string { return keyPrefix + apiKey + ":reset" }

// Check implements the exact §4.8 algorithm: read both keys via a
// pipelined multi-get, compute the refilled token count, and — if a token
// is available — write both keys back with TTL 2W. The compute-then-write
// sequence is not atomic; under heavy contention from the same key this
// admits a small over-limit burst, an accepted tradeoff for this workload.
// Any KV error fails open (allowed=true).
func (l *Limiter) Check(ctx context.Context, apiKey string) (Result, error) {
	now := time.Now()

	results, err := l.kv.MGet(ctx, l.countKey(apiKey), l.resetKey(apiKey))
	if err != nil {
		return Result{Allowed: true, Remaining: int(l.capacity), Limit: int(l.capacity), ResetAt: now}, nil
	}

	tokens := l.capacity
	lastRefill := now
	if len(results) == 2 {
		if results[0].Found {
			if v, perr := strconv.ParseFloat(results[0].Value, 64); perr == nil {
				tokens = v
			}
		}
		if results[1].Found {
			if v, perr := strconv.ParseFloat(results[1].Value, 64); perr == nil {
				lastRefill = time.Unix(0, int64(v*float64(time.Second)))
			}
		}
	}

	elapsed := now.Sub(lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	tokens = math.Min(l.capacity, tokens+elapsed*l.refill)

	if tokens >= 1.0 {
		tokens -= 1.0
		ttl := 2 * l.window
		nowSec := strconv.FormatFloat(float64(now.UnixNano())/float64(time.Second), 'f', -1, 64)
		tokensStr := strconv.FormatFloat(tokens, 'f', -1, 64)
		if err := l.kv.SetEx(ctx, l.countKey(apiKey), tokensStr, ttl); err != nil {
			return Result{Allowed: true, Remaining: int(l.capacity), Limit: int(l.capacity), ResetAt: now}, nil
		}
		if err := l.kv.SetEx(ctx, l.resetKey(apiKey), nowSec, ttl); err != nil {
			return Result{Allowed: true, Remaining: int(l.capacity), Limit: int(l.capacity), ResetAt: now}, nil
		}
		resetAt := now.Add(time.Duration((l.capacity - tokens) / l.refill * float64(time.Second)))
		return Result{Allowed: true, Remaining: int(tokens), ResetAt: resetAt, Limit: int(l.capacity)}, nil
	}

	resetAt := now.Add(time.Duration((1.0 - tokens) / l.refill * float64(time.Second)))
	return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, Limit: int(l.capacity)}, nil
}

// Reset is an admin operation that deletes both keys for an API key.
func (l *Limiter) Reset(ctx context.Context, apiKey string) error {
	return l.kv.Del(ctx, l.countKey(apiKey), l.resetKey(apiKey))
}
