package guard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "watering:guard:42:3:2024-06-10"

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisGuard) {
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { c.Close() })
	return mr, NewRedisGuard(c)
}

func TestRedisGuard_AcquireOnce(t *testing.T) {
	mr, g := setupTestRedis(t)
	ctx := context.Background()

	ok, err := g.Acquire(ctx, key, 36*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Acquire(ctx, key, 36*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists(key))
	assert.Equal(t, 36*time.Hour, mr.TTL(key))
}

func TestRedisGuard_ReleaseAllowsRetry(t *testing.T) {
	_, g := setupTestRedis(t)
	ctx := context.Background()

	_, err := g.Acquire(ctx, key, time.Hour)
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx, key))

	ok, err := g.Acquire(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_Expiry(t *testing.T) {
	mr, g := setupTestRedis(t)
	ctx := context.Background()

	_, err := g.Acquire(ctx, key, time.Hour)
	require.NoError(t, err)
	mr.FastForward(time.Hour + time.Second)

	ok, err := g.Acquire(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_ServerDown(t *testing.T) {
	mr, g := setupTestRedis(t)
	mr.Close()

	_, err := g.Acquire(context.Background(), key, time.Hour)
	assert.Error(t, err)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisClient(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

func TestMemoryGuard(t *testing.T) {
	g := NewMemoryGuard()
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := g.Acquire(ctx, key, time.Hour)
	assert.True(t, ok)
	ok, _ = g.Acquire(ctx, key, time.Hour)
	assert.False(t, ok)
	assert.Equal(t, 1, g.Len())

	now = now.Add(time.Hour)
	ok, _ = g.Acquire(ctx, key, time.Hour)
	assert.True(t, ok, "expired keys are free again")

	require.NoError(t, g.Release(ctx, key))
	assert.Equal(t, 0, g.Len())
}
