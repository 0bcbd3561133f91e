package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis holds the per-event admission mutex. Every capacity-check-then-write
// (join, purchase, expiry, promotion) runs under this lock so two concurrent
// requests for the same event can never both read the same remaining count
// and both reserve it. The TTL bounds how long a crashed holder can wedge an
// event's queue.
type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

func lockKey(eventID string) string {
	return "event_admission:" + eventID
}

// getLockTTL returns the admission lock TTL from the environment or the
// default of 10 seconds.
func (r *Redis) getLockTTL() time.Duration {
	defaultTTL := 10 * time.Second

	ttlStr := os.Getenv("ADMISSION_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil || ttlSec <= 0 {
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

// AcquireEventLock takes the admission mutex for one event. The token must
// be unique per holder so Release cannot free somebody else's lock.
func (r *Redis) AcquireEventLock(ctx context.Context, eventID, token string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, lockKey(eventID), token, r.getLockTTL()).Result()
	if err != nil {
		return false, fmt.Errorf("acquire event lock: %w", err)
	}
	return ok, nil
}

// ReleaseEventLock frees the mutex if this holder still owns it.
func (r *Redis) ReleaseEventLock(ctx context.Context, eventID, token string) error {
	key := lockKey(eventID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // expired or already released
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// WithEventLock retries the mutex with a short backoff and runs fn under it.
// Callers see ErrLockTimeout when the event stays contended for the whole
// retry budget.
func (r *Redis) WithEventLock(ctx context.Context, eventID, token string, fn func() error) error {
	const attempts = 50
	const backoff = 100 * time.Millisecond

	for i := 0; i < attempts; i++ {
		ok, err := r.AcquireEventLock(ctx, eventID, token)
		if err != nil {
			return err
		}
		if ok {
			defer func() {
				_ = r.ReleaseEventLock(context.Background(), eventID, token)
			}()
			return fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return ErrLockTimeout
}

var ErrLockTimeout = fmt.Errorf("timed out waiting for event admission lock")
