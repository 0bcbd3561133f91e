package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	return client, mr
}

func TestTryAcquire_QuotaBoundary(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	defer mr.Close()

	limiter := NewLimiter(client, 30*time.Minute, 3)
	ctx := context.Background()

	// The first three joins of a window are allowed
	for i := 0; i < 3; i++ {
		decision, err := limiter.TryAcquire(ctx, "user1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "join %d should be allowed", i+1)
		assert.Zero(t, decision.RetryAfter)
	}

	// The fourth is denied with a retry hint bounded by the window
	decision, err := limiter.TryAcquire(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, decision.RetryAfter, 30*time.Minute)
}

func TestTryAcquire_IdentitiesAreIndependent(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	defer mr.Close()

	limiter := NewLimiter(client, 30*time.Minute, 1)
	ctx := context.Background()

	decision, err := limiter.TryAcquire(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = limiter.TryAcquire(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "user1 exhausted their quota")

	decision, err = limiter.TryAcquire(ctx, "user2")
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "user2 has their own window")
}

func TestTryAcquire_WindowResets(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	defer mr.Close()

	limiter := NewLimiter(client, 30*time.Minute, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.TryAcquire(ctx, "user1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}

	decision, err := limiter.TryAcquire(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Once the window elapses the counter key expires and joins flow again
	mr.FastForward(30*time.Minute + time.Second)

	decision, err = limiter.TryAcquire(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "fresh window should admit joins again")
}

func TestTryAcquire_ReArmsLostExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	defer mr.Close()

	limiter := NewLimiter(client, 30*time.Minute, 1)
	ctx := context.Background()

	_, err := limiter.TryAcquire(ctx, "user1")
	require.NoError(t, err)

	// Simulate a counter key that lost its TTL (flush, manual edit)
	require.NoError(t, client.Persist(ctx, "rate:queue_join:user1").Err())

	decision, err := limiter.TryAcquire(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 30*time.Minute, decision.RetryAfter, "window should be re-armed, not infinite")
	assert.Equal(t, 30*time.Minute, mr.TTL("rate:queue_join:user1"))
}
