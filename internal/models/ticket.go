package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketValid     TicketStatus = "valid"
	TicketUsed      TicketStatus = "used"
	TicketRefunded  TicketStatus = "refunded"
	TicketCancelled TicketStatus = "cancelled"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID          string       `json:"id" bun:"id,pk"`
	EventID     string       `json:"event_id" bun:"event_id,notnull"`
	UserID      string       `json:"user_id" bun:"user_id,notnull"`
	PaymentID   string       `json:"payment_id" bun:"payment_id,notnull"`
	Status      TicketStatus `json:"status" bun:"status,notnull"`
	Amount      float64      `json:"amount" bun:"amount,notnull"`
	QRCode      []byte       `json:"qr_code,omitempty" bun:"qr_code"`
	PurchasedAt time.Time    `json:"purchased_at" bun:"purchased_at,notnull"`
}

// Counted reports whether the ticket consumes event capacity. Refunded and
// cancelled tickets release their seat back to the pool.
func (t *Ticket) Counted() bool {
	return t.Status == TicketValid || t.Status == TicketUsed
}

type TicketWithEvent struct {
	Ticket
	Event *Event `json:"event,omitempty"`
}
