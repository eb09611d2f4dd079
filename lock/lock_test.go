package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sentineldev/sentinel-gateway/kv"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T, ttl, pollInitial, pollMax time.Duration) (*Lock, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client, err := newKVClient(mr.Addr())
	require.NoError(t, err)
	return New(client, ttl, pollInitial, pollMax), func() { mr.Close() }
}

// newKVClient builds a kv.Store wired to a specific Redis address, mirroring
// kv.New without going through config.Config / URL parsing.
func newKVClient(addr string) (kv.Store, error) {
	return kvTestClient{redis.NewClient(&redis.Options{Addr: addr})}, nil
}

type kvTestClient struct{ c *redis.Client }

func (k kvTestClient) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := k.c.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	return v, err == nil, err
}
func (k kvTestClient) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return k.c.Set(ctx, key, value, ttl).Err()
}
func (k kvTestClient) Del(ctx context.Context, keys ...string) error {
	return k.c.Del(ctx, keys...).Err()
}
func (k kvTestClient) SetNXEx(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return k.c.SetNX(ctx, key, value, ttl).Result()
}
func (k kvTestClient) Scan(ctx context.Context, cursor uint64, pattern string, batch int64) ([]string, uint64, error) {
	return k.c.Scan(ctx, cursor, pattern, batch).Result()
}
func (k kvTestClient) MGet(ctx context.Context, keys ...string) ([]kv.Result, error) { return nil, nil }
func (k kvTestClient) Ping(ctx context.Context) error                                { return k.c.Ping(ctx).Err() }
func (k kvTestClient) Close() error                                                  { return k.c.Close() }

func TestAcquireFirstWinsSecondLoses(t *testing.T) {
	l, cleanup := newTestLock(t, 30*time.Second, 10*time.Millisecond, 50*time.Millisecond)
	defer cleanup()
	ctx := context.Background()

	won1, key1, err := l.Acquire(ctx, "p", "m")
	require.NoError(t, err)
	require.True(t, won1)

	won2, key2, err := l.Acquire(ctx, "p", "m")
	require.NoError(t, err)
	require.False(t, won2)
	require.Equal(t, key1, key2)
}

func TestDifferentModelsDoNotShareLocks(t *testing.T) {
	l, cleanup := newTestLock(t, 30*time.Second, 10*time.Millisecond, 50*time.Millisecond)
	defer cleanup()
	ctx := context.Background()

	won1, _, _ := l.Acquire(ctx, "same prompt", "model-a")
	won2, _, _ := l.Acquire(ctx, "same prompt", "model-b")
	require.True(t, won1)
	require.True(t, won2)
}

func TestReleaseThenReacquire(t *testing.T) {
	l, cleanup := newTestLock(t, 30*time.Second, 10*time.Millisecond, 50*time.Millisecond)
	defer cleanup()
	ctx := context.Background()

	_, key, _ := l.Acquire(ctx, "p", "m")
	require.NoError(t, l.Release(ctx, key))

	won, _, err := l.Acquire(ctx, "p", "m")
	require.NoError(t, err)
	require.True(t, won)
}

func TestPollForResultHitsBeforeCeiling(t *testing.T) {
	l, cleanup := newTestLock(t, time.Second, 5*time.Millisecond, 20*time.Millisecond)
	defer cleanup()

	calls := 0
	resp, result, err := l.PollForResult(context.Background(), func(ctx context.Context) (string, bool, error) {
		calls++
		if calls >= 3 {
			return "the answer", true, nil
		}
		return "", false, nil
	})
	require.NoError(t, err)
	require.Equal(t, WaitHit, result)
	require.Equal(t, "the answer", resp)
}

func TestPollForResultTimesOut(t *testing.T) {
	l, cleanup := newTestLock(t, 30*time.Millisecond, 5*time.Millisecond, 10*time.Millisecond)
	defer cleanup()

	_, result, err := l.PollForResult(context.Background(), func(ctx context.Context) (string, bool, error) {
		return "", false, nil
	})
	require.NoError(t, err)
	require.Equal(t, WaitTimeout, result)
}

func TestPollForResultPropagatesCheckError(t *testing.T) {
	l, cleanup := newTestLock(t, time.Second, 5*time.Millisecond, 20*time.Millisecond)
	defer cleanup()

	boom := errors.New("boom")
	_, _, err := l.PollForResult(context.Background(), func(ctx context.Context) (string, bool, error) {
		return "", false, boom
	})
	require.ErrorIs(t, err, boom)
}
