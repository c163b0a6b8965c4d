package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return client, mr
}

func TestTokenBucketLimiter_Allow(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), false)

	ctx := context.Background()
	key := "login:127.0.0.1"
	limit := 5
	window := time.Minute

	for i := range limit {
		allowed, err := limiter.Allow(ctx, key, limit, window)
		assert.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, key, limit, window)
	assert.NoError(t, err)
	assert.False(t, allowed, "request over limit should be denied")
}

func TestTokenBucketLimiter_AllowN(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), false)

	ctx := context.Background()
	key := "messages:user-a"
	limit := 10
	window := time.Minute

	allowed, err := limiter.AllowN(ctx, key, 7, limit, window)
	assert.NoError(t, err)
	assert.True(t, allowed)

	// 7 + 4 > 10
	allowed, err = limiter.AllowN(ctx, key, 4, limit, window)
	assert.NoError(t, err)
	assert.False(t, allowed)
}

func TestTokenBucketLimiter_Reset(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), false)

	ctx := context.Background()
	key := "login:user-b"
	limit := 3
	window := time.Minute

	for range limit {
		allowed, err := limiter.Allow(ctx, key, limit, window)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, key))

	allowed, err = limiter.Allow(ctx, key, limit, window)
	assert.NoError(t, err)
	assert.True(t, allowed, "request after reset should be allowed")
}

func TestTokenBucketLimiter_GetRemaining(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), false)

	ctx := context.Background()
	key := "messages:user-c"
	limit := 10
	window := time.Minute

	remaining, err := limiter.GetRemaining(ctx, key, limit, window)
	assert.NoError(t, err)
	assert.Equal(t, limit, remaining, "fresh key should have the full budget")

	for range 4 {
		_, err := limiter.Allow(ctx, key, limit, window)
		require.NoError(t, err)
	}

	remaining, err = limiter.GetRemaining(ctx, key, limit, window)
	assert.NoError(t, err)
	assert.Equal(t, 6, remaining)

	for range 10 {
		_, err := limiter.Allow(ctx, key, limit, window)
		require.NoError(t, err)
	}

	remaining, err = limiter.GetRemaining(ctx, key, limit, window)
	assert.NoError(t, err)
	assert.Equal(t, 0, remaining, "remaining never goes negative")
}

func TestTokenBucketLimiter_ConcurrentRequests(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), false)

	ctx := context.Background()
	key := "messages:user-d"
	limit := 100
	window := time.Minute

	var (
		mu      sync.Mutex
		allowed int
		denied  int
	)

	var wg sync.WaitGroup
	for range 150 {
		wg.Go(func() {
			ok, err := limiter.Allow(ctx, key, limit, window)
			require.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				allowed++
			} else {
				denied++
			}
		})
	}
	wg.Wait()

	assert.Equal(t, limit, allowed, "exactly limit requests should pass")
	assert.Equal(t, 50, denied)
}

func TestTokenBucketLimiter_DifferentKeys(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), false)

	ctx := context.Background()
	limit := 2
	window := time.Minute

	for range limit {
		allowed, err := limiter.Allow(ctx, "login:10.0.0.1", limit, window)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "login:10.0.0.1", limit, window)
	require.NoError(t, err)
	require.False(t, allowed)

	// A different key keeps its own budget.
	allowed, err = limiter.Allow(ctx, "login:10.0.0.2", limit, window)
	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestTokenBucketLimiter_DifferentWindows(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), false)
	ctx := context.Background()

	tests := []struct {
		name   string
		limit  int
		window time.Duration
	}{
		{"minute", 10, time.Minute},
		{"five minutes", 20, 5 * time.Minute},
		{"hour", 30, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := fmt.Sprintf("window:%s", tt.name)

			for range tt.limit {
				allowed, err := limiter.Allow(ctx, key, tt.limit, tt.window)
				require.NoError(t, err)
				require.True(t, allowed)
			}

			allowed, err := limiter.Allow(ctx, key, tt.limit, tt.window)
			assert.NoError(t, err)
			assert.False(t, allowed)
		})
	}
}

func TestTokenBucketLimiter_WindowRecovery(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), false)

	ctx := context.Background()
	key := "login:recover"
	limit := 2
	window := time.Minute

	for range limit {
		allowed, err := limiter.Allow(ctx, key, limit, window)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)
	require.False(t, allowed)

	// The bucket key expires shortly after the window ends.
	mr.FastForward(window + 2*time.Second)

	allowed, err = limiter.Allow(ctx, key, limit, window)
	assert.NoError(t, err)
	assert.True(t, allowed, "budget should recover after the window passes")
}

func TestTokenBucketLimiter_FailOpen(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), true)

	ctx := context.Background()
	mr.Close()

	allowed, err := limiter.Allow(ctx, "login:failopen", 5, time.Minute)
	assert.NoError(t, err)
	assert.True(t, allowed, "fail-open lets requests through when Redis is down")
}

func TestTokenBucketLimiter_FailClosed(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	limiter := NewTokenBucketLimiter(client, zap.NewNop(), false)

	ctx := context.Background()
	mr.Close()

	allowed, err := limiter.Allow(ctx, "login:failclosed", 5, time.Minute)
	assert.Error(t, err)
	assert.False(t, allowed)
}
