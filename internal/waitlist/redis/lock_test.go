package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client using miniredis for testing
// miniredis is an in-memory Redis mock that doesn't require a real Redis server
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestAcquireEventLock_MutualExclusion(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client)
	ctx := context.Background()

	// Test 1: First holder acquires
	ok, err := r.AcquireEventLock(ctx, "event1", "token-a")
	require.NoError(t, err)
	assert.True(t, ok, "First acquire should succeed")

	// Test 2: Second holder is refused while the lock is held
	ok, err = r.AcquireEventLock(ctx, "event1", "token-b")
	require.NoError(t, err)
	assert.False(t, ok, "Second acquire should be refused")

	// Test 3: A different event is independent
	ok, err = r.AcquireEventLock(ctx, "event2", "token-b")
	require.NoError(t, err)
	assert.True(t, ok, "Lock for another event should be free")

	// Test 4: After release the lock is free again
	err = r.ReleaseEventLock(ctx, "event1", "token-a")
	require.NoError(t, err)

	ok, err = r.AcquireEventLock(ctx, "event1", "token-b")
	require.NoError(t, err)
	assert.True(t, ok, "Acquire should succeed after release")
}

func TestReleaseEventLock_OnlyReleasesOwnLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client)
	ctx := context.Background()

	ok, err := r.AcquireEventLock(ctx, "event1", "token-a")
	require.NoError(t, err)
	assert.True(t, ok)

	// A release with the wrong token must not free the lock
	err = r.ReleaseEventLock(ctx, "event1", "token-b")
	require.NoError(t, err)

	val, err := client.Get(ctx, "event_admission:event1").Result()
	require.NoError(t, err)
	assert.Equal(t, "token-a", val, "Lock should still be held by token-a")
}

func TestWithEventLock_SerializesCriticalSections(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client)
	ctx := context.Background()

	const numGoroutines = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	inside := 0
	maxInside := 0

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := r.WithEventLock(ctx, "event1", "token-"+string(rune('a'+n)), func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 1, maxInside, "Critical sections must never overlap")
}

func TestWithEventLock_ReleasesOnError(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client)
	ctx := context.Background()

	wantErr := errors.New("boom")
	err := r.WithEventLock(ctx, "event1", "token-a", func() error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// The lock must be freed even though fn failed
	ok, err := r.AcquireEventLock(ctx, "event1", "token-b")
	require.NoError(t, err)
	assert.True(t, ok, "Lock should be free after fn returned an error")
}

func TestScheduleAndCancelExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client)
	ctx := context.Background()

	err := r.ScheduleExpiry(ctx, "wl_1", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("offer_expiry:wl_1"))
	assert.Equal(t, 15*time.Minute, mr.TTL("offer_expiry:wl_1"))

	// Cancel disarms the key
	err = r.CancelExpiry(ctx, "wl_1")
	require.NoError(t, err)
	assert.False(t, mr.Exists("offer_expiry:wl_1"))

	// Cancelling again is a no-op
	err = r.CancelExpiry(ctx, "wl_1")
	require.NoError(t, err)
}

func TestScheduleExpiry_KeyLapses(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client)
	ctx := context.Background()

	err := r.ScheduleExpiry(ctx, "wl_1", time.Minute)
	require.NoError(t, err)

	mr.FastForward(time.Minute + time.Second)
	assert.False(t, mr.Exists("offer_expiry:wl_1"), "Expiry key should lapse with its TTL")
}
