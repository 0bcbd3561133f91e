package models

import (
	"time"

	"github.com/uptrace/bun"
)

type WaitingListStatus string

const (
	WaitingListWaiting WaitingListStatus = "waiting"
	WaitingListOffered WaitingListStatus = "offered"
	WaitingListExpired WaitingListStatus = "expired"
)

// WaitingListEntry tracks one identity's position in the admission queue for
// one event. At most one entry per (user, event) may be waiting or offered at
// a time; expired entries are historical and never reconsidered. A consumed
// offer is deleted outright so it stops counting against availability.
type WaitingListEntry struct {
	bun.BaseModel `bun:"table:waiting_list"`

	ID             string            `json:"id" bun:"id,pk"`
	EventID        string            `json:"event_id" bun:"event_id,notnull"`
	UserID         string            `json:"user_id" bun:"user_id,notnull"`
	Status         WaitingListStatus `json:"status" bun:"status,notnull"`
	OfferExpiresAt time.Time         `json:"offer_expires_at,omitempty" bun:"offer_expires_at,nullzero"`
	CreatedAt      time.Time         `json:"created_at" bun:"created_at,notnull"`
}

func (e *WaitingListEntry) Active() bool {
	return e.Status == WaitingListWaiting || e.Status == WaitingListOffered
}

// OfferValid reports whether the entry carries a live offer at the given time.
func (e *WaitingListEntry) OfferValid(now time.Time) bool {
	return e.Status == WaitingListOffered && e.OfferExpiresAt.After(now)
}

type JoinQueueResult struct {
	EntryID        string            `json:"entry_id"`
	Status         WaitingListStatus `json:"status"`
	OfferExpiresAt time.Time         `json:"offer_expires_at,omitempty"`
	Message        string            `json:"message"`
}

// QueuePosition is what the UI renders for one user's place in a queue.
// Position is 1-based and only meaningful while the entry is waiting.
type QueuePosition struct {
	EntryID        string            `json:"entry_id"`
	Status         WaitingListStatus `json:"status"`
	Position       int               `json:"position,omitempty"`
	OfferExpiresAt time.Time         `json:"offer_expires_at,omitempty"`
}

// QueueUpdate is broadcast over SSE whenever an event's queue changes shape.
type QueueUpdate struct {
	EventID   string            `json:"event_id"`
	EntryID   string            `json:"entry_id"`
	UserID    string            `json:"user_id"`
	Status    WaitingListStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}
