package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStoreWindow(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Record(ctx, "client:/api/stops", now.Add(time.Duration(i)*time.Second), time.Minute))
	}

	count, err := store.Check(ctx, "client:/api/stops", time.Minute, now.Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// The first hit falls out of the window.
	count, err = store.Check(ctx, "client:/api/stops", time.Minute, now.Add(60*time.Second))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = store.Check(ctx, "other", time.Minute, now)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRedisStoreBlocks(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	_, blocked, err := store.IsBlocked(ctx, "10.0.0.1", now)
	require.NoError(t, err)
	require.False(t, blocked)

	require.NoError(t, store.Block(ctx, "10.0.0.1", now.Add(5*time.Minute)))

	remaining, blocked, err := store.IsBlocked(ctx, "10.0.0.1", now)
	require.NoError(t, err)
	require.True(t, blocked)
	require.InDelta(t, (5 * time.Minute).Seconds(), remaining.Seconds(), 1)

	_, blocked, err = store.IsBlocked(ctx, "10.0.0.1", now.Add(6*time.Minute))
	require.NoError(t, err)
	require.False(t, blocked)

	mr.FastForward(6 * time.Minute)
	require.False(t, mr.Exists(blockPrefix+"10.0.0.1"))
}

func TestRedisStoreBlockKeepsLongestBlock(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Block(ctx, "ip", now.Add(time.Hour)))
	require.NoError(t, store.Block(ctx, "ip", now.Add(time.Minute)))

	remaining, blocked, err := store.IsBlocked(ctx, "ip", now)
	require.NoError(t, err)
	require.True(t, blocked)
	require.InDelta(t, time.Hour.Seconds(), remaining.Seconds(), 1)

	require.NoError(t, store.Block(ctx, "ip", now.Add(2*time.Hour)))
	remaining, _, err = store.IsBlocked(ctx, "ip", now)
	require.NoError(t, err)
	require.InDelta(t, (2 * time.Hour).Seconds(), remaining.Seconds(), 1)
}

func TestLimiterWithRedisStore(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t)
	clock := newFakeClock()
	l := newTestLimiter(store, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "10.0.0.2", "ua", "/api/auth/login")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := l.Allow(ctx, "10.0.0.2", "ua", "/api/auth/login")
	require.NoError(t, err)
	require.True(t, d.Escalated)

	d, err = l.Allow(ctx, "10.0.0.2", "ua", "/api/stops")
	require.NoError(t, err)
	require.True(t, d.Blocked)
}
