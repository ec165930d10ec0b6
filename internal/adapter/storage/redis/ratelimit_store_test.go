package redis_test

import (
	"context"
	"testing"
	"time"

	"fx-blockstream/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewRateLimitStore(client)
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			allowed, remaining, err := store.Allow(ctx, "10.0.0.1:write", 3, time.Hour)
			require.NoError(t, err)
			assert.True(t, allowed, "request %d should be allowed", i)
			assert.Equal(t, 3-i, remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		allowed, remaining, err := store.Allow(ctx, "10.0.0.1:write", 3, time.Hour)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		allowed, remaining, err := store.Allow(ctx, "10.0.0.2:write", 5, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 4, remaining)
	})

	t.Run("counters expire", func(t *testing.T) {
		keys := mr.Keys()
		require.NotEmpty(t, keys)
		for _, k := range keys {
			assert.Greater(t, mr.TTL(k), time.Duration(0), "key %s should carry a TTL", k)
		}
		mr.FastForward(2 * time.Hour)
		assert.Empty(t, mr.Keys())
	})
}

func TestRateLimitStore_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	_, _, err := redis.NewRateLimitStore(client).Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}

func TestRateLimitStore_RejectsEmptyWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewRateLimitStore(client)
	for _, window := range []time.Duration{0, -time.Second} {
		assert.NotPanics(t, func() {
			_, _, err := store.Allow(context.Background(), "10.0.0.1:write", 5, window)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, mr.Keys())
}
