package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const expiryKeyPrefix = "offer_expiry:"

// ScheduleExpiry arms the deferred expiry callback for one offer: a Redis
// key whose TTL equals the offer duration. When it expires, the keyspace
// notification drives ExpireOffer on whichever instance is subscribed.
func (r *Redis) ScheduleExpiry(ctx context.Context, entryID string, ttl time.Duration) error {
	key := expiryKeyPrefix + entryID
	if err := r.Client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("schedule offer expiry: %w", err)
	}
	return nil
}

// CancelExpiry disarms a scheduled expiry, used when the offer is consumed
// or released before its deadline. A missing key is fine: the expiry handler
// is an idempotent no-op against consumed entries anyway.
func (r *Redis) CancelExpiry(ctx context.Context, entryID string) error {
	return r.Client.Del(ctx, expiryKeyPrefix+entryID).Err()
}

// EnableKeyspaceNotifications turns on expired-key events, required for the
// offer expiry subscription.
func EnableKeyspaceNotifications(ctx context.Context, client *redis.Client) error {
	return client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
}

// SubscribeOfferExpiries listens for expired offer keys and invokes handle
// with the entry ID for each. Runs until ctx is cancelled. The handler must
// tolerate duplicate and stale invocations: notifications are best-effort
// and the ledger already ignores offers past their deadline, so a missed
// notification degrades to lazy expiry, never to a stuck reservation.
func SubscribeOfferExpiries(ctx context.Context, client *redis.Client, handle func(entryID string)) error {
	db := client.Options().DB
	pattern := fmt.Sprintf("__keyevent@%d__:expired", db)
	pubsub := client.PSubscribe(ctx, pattern)

	// Fail fast if the subscription itself is broken.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe offer expiries: %w", err)
	}

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				if !strings.HasPrefix(msg.Payload, expiryKeyPrefix) {
					continue
				}
				handle(strings.TrimPrefix(msg.Payload, expiryKeyPrefix))
			}
		}
	}()
	return nil
}
