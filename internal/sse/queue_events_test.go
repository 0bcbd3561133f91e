package sse

import (
	"context"
	"testing"
	"time"

	"ms-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBroadcastReachesEventSubscribers(t *testing.T) {
	emitter := NewQueueEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub1 := emitter.Subscribe(ctx, "event1")
	sub2 := emitter.Subscribe(ctx, "event1")
	other := emitter.Subscribe(ctx, "event2")

	update := models.QueueUpdate{
		EventID: "event1", EntryID: "wl_1", UserID: "user1",
		Status: models.WaitingListOffered, Timestamp: time.Now(),
	}
	emitter.Broadcast(update)

	for _, sub := range []chan models.QueueUpdate{sub1, sub2} {
		select {
		case got := <-sub:
			assert.Equal(t, "wl_1", got.EntryID)
			assert.Equal(t, models.WaitingListOffered, got.Status)
		case <-time.After(time.Second):
			t.Fatal("subscriber never received the update")
		}
	}

	select {
	case <-other:
		t.Fatal("subscriber of another event received the update")
	default:
	}
}

func TestSubscribeRemovedOnContextDone(t *testing.T) {
	emitter := NewQueueEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	sub := emitter.Subscribe(ctx, "event1")
	cancel()

	// The channel is closed once the removal goroutine runs
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-sub:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	// Broadcasting afterwards must not panic or deliver
	emitter.Broadcast(models.QueueUpdate{EventID: "event1"})
}

func TestBroadcastSkipsSlowClients(t *testing.T) {
	emitter := NewQueueEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := emitter.Subscribe(ctx, "event1")

	// Fill the buffer and keep going; the admission path must never block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			emitter.Broadcast(models.QueueUpdate{EventID: "event1", EntryID: "wl_x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	assert.Len(t, sub, 10, "buffer holds what fit, the rest was dropped")
}
