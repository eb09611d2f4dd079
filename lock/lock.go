// Package lock implements the per-(prompt,model) distributed single-flight
// lock (§4.7): a KV-backed set-if-absent lock with a polling-wait path for
// non-holders.
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sentineldev/sentinel-gateway/kv"
)

const (
	keyPrefix = "sentinel:lock:"
	heldValue = "held"
)

// Lock serializes concurrent generations for the same (prompt, model).
type Lock struct {
	kv          kv.Store
	ttl         time.Duration
	pollInitial time.Duration
	pollMax     time.Duration
}

// New builds a lock manager with the given TTL and poll backoff bounds.
func New(store kv.Store, ttl, pollInitial, pollMax time.Duration) *Lock {
	return &Lock{kv: store, ttl: ttl, pollInitial: pollInitial, pollMax: pollMax}
}

// Key derives the lock key from both prompt and model — a fixed
// cryptographic digest (collision resistance matters, not secrecy) — so
// requests for the same prompt under different models never block each
// other.
func Key(prompt, model string) string {
	sum := sha256.Sum256([]byte(prompt + "\x00" + model))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Acquire attempts to become the single-flight winner for (prompt, model).
// On a KV error, it fails open: the request proceeds as if it were the
// winner, since extra generation cost is preferable to refusing to serve.
func (l *Lock) Acquire(ctx context.Context, prompt, model string) (winner bool, key string, err error) {
	key = Key(prompt, model)
	ok, err := l.kv.SetNXEx(ctx, key, heldValue, l.ttl)
	if err != nil {
		return true, key, nil
	}
	return ok, key, nil
}

// Release deletes the lock record. A failure is logged by the caller but
// non-fatal — the TTL still bounds lock duration.
func (l *Lock) Release(ctx context.Context, key string) error {
	return l.kv.Del(ctx, key)
}

// WaitResult is what the poll loop observed.
type WaitResult int

const (
	// WaitHit means the winner's result appeared in the cache.
	WaitHit WaitResult = iota
	// WaitTimeout means the ceiling elapsed with no result — the caller
	// must fall back to generating itself.
	WaitTimeout
)

// PollForResult implements the loser's polling-wait path: exponentially
// increasing wait (capped at pollMax), until either checkFn reports a hit
// or the total wait ceiling (the lock TTL) elapses.
func (l *Lock) PollForResult(ctx context.Context, checkFn func(context.Context) (string, bool, error)) (response string, result WaitResult, err error) {
	deadline := time.Now().Add(l.ttl)
	wait := l.pollInitial
	for {
		resp, hit, checkErr := checkFn(ctx)
		if checkErr != nil {
			return "", WaitTimeout, checkErr
		}
		if hit {
			return resp, WaitHit, nil
		}
		if time.Now().Add(wait).After(deadline) {
			return "", WaitTimeout, nil
		}
		select {
		case <-ctx.Done():
			return "", WaitTimeout, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > l.pollMax {
			wait = l.pollMax
		}
	}
}
