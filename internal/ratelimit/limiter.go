package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Limiter bounds how often one identity may join any waiting list. Fixed
// window: the first join of a window starts the clock, the counter resets
// when the window key expires. The Redis INCR/PEXPIRE pair keeps the counter
// correct across service instances.
type Limiter struct {
	Client *redis.Client
	Window time.Duration
	Quota  int
}

// Decision is the outcome of one TryAcquire call. RetryAfter is only set
// when the call was denied.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

func NewLimiter(client *redis.Client, window time.Duration, quota int) *Limiter {
	return &Limiter{Client: client, Window: window, Quota: quota}
}

func windowKey(identity string) string {
	return "rate:queue_join:" + identity
}

// TryAcquire consumes one admission from the identity's current window.
func (l *Limiter) TryAcquire(ctx context.Context, identity string) (*Decision, error) {
	key := windowKey(identity)

	count, err := l.Client.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit incr: %w", err)
	}

	if count == 1 {
		// First hit of a fresh window owns setting the expiry.
		if err := l.Client.PExpire(ctx, key, l.Window).Err(); err != nil {
			return nil, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	if count <= int64(l.Quota) {
		return &Decision{Allowed: true}, nil
	}

	ttl, err := l.Client.PTTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// Counter key lost its expiry (flush or manual edit). Re-arm the
		// window rather than locking the identity out forever.
		if err := l.Client.PExpire(ctx, key, l.Window).Err(); err != nil {
			return nil, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = l.Window
	}

	return &Decision{Allowed: false, RetryAfter: ttl}, nil
}
