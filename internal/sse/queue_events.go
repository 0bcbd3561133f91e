package sse

import (
	"context"
	"sync"

	"ms-marketplace/internal/models"
)

// QueueEventEmitter fans queue state changes out to SSE subscribers, keyed
// by event ID. The UI subscribes instead of polling the position endpoint.
type QueueEventEmitter struct {
	clients map[string][]chan models.QueueUpdate
	mu      sync.RWMutex
}

func NewQueueEventEmitter() *QueueEventEmitter {
	return &QueueEventEmitter{
		clients: make(map[string][]chan models.QueueUpdate),
	}
}

// Subscribe adds a client for one event's queue updates. The channel is
// removed when ctx is done.
func (e *QueueEventEmitter) Subscribe(ctx context.Context, eventID string) chan models.QueueUpdate {
	clientChan := make(chan models.QueueUpdate, 10)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, clientChan)
	}()

	return clientChan
}

// Broadcast delivers an update to every subscriber of its event. Slow
// clients are skipped rather than blocking the admission path.
func (e *QueueEventEmitter) Broadcast(update models.QueueUpdate) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[update.EventID] {
		select {
		case clientChan <- update:
		default:
		}
	}
}

func (e *QueueEventEmitter) remove(eventID string, clientChan chan models.QueueUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	channels := e.clients[eventID]
	for i, ch := range channels {
		if ch == clientChan {
			e.clients[eventID] = append(channels[:i], channels[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}
