package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID           string    `json:"id" bun:"id,pk"`
	Name         string    `json:"name" bun:"name,notnull"`
	Description  string    `json:"description" bun:"description"`
	Location     string    `json:"location" bun:"location"`
	EventDate    time.Time `json:"event_date" bun:"event_date,notnull"`
	Price        float64   `json:"price" bun:"price,notnull"`
	TotalTickets int       `json:"total_tickets" bun:"total_tickets,notnull"`
	OrganizerID  string    `json:"organizer_id" bun:"organizer_id,notnull"`
	IsCancelled  bool      `json:"is_cancelled" bun:"is_cancelled"`
	CreatedAt    time.Time `json:"created_at" bun:"created_at,notnull"`
}

type EventRequest struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	EventDate    time.Time `json:"event_date"`
	Price        float64   `json:"price"`
	TotalTickets int       `json:"total_tickets"`
}

// EventMetrics summarises ticket sales for one event on the organizer dashboard.
type EventMetrics struct {
	SoldTickets      int     `json:"sold_tickets"`
	RefundedTickets  int     `json:"refunded_tickets"`
	CancelledTickets int     `json:"cancelled_tickets"`
	Revenue          float64 `json:"revenue"`
}

type EventWithMetrics struct {
	Event
	Metrics EventMetrics `json:"metrics"`
}

// Availability is the derived inventory position of one event. It is
// recomputed from the tickets and waiting_list tables on every admission
// decision, never cached.
type Availability struct {
	TotalTickets int `json:"total_tickets"`
	Purchased    int `json:"purchased"`
	ActiveOffers int `json:"active_offers"`
	Remaining    int `json:"remaining"`
}

func (a Availability) SoldOut() bool {
	return a.Remaining <= 0
}
