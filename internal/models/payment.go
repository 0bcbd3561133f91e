package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment backs one purchase. A single payment may cover several tickets
// when the buyer takes more than one unit in the same checkout.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID     string        `json:"payment_id" bun:"payment_id,pk"`
	EventID       string        `json:"event_id" bun:"event_id,notnull"`
	UserID        string        `json:"user_id" bun:"user_id,notnull"`
	Amount        float64       `json:"amount" bun:"amount,notnull"`
	PaymentMethod string        `json:"payment_method" bun:"payment_method,notnull"`
	Status        PaymentStatus `json:"status" bun:"status,notnull"`
	CreatedAt     time.Time     `json:"created_at" bun:"created_at,notnull"`
	CompletedAt   time.Time     `json:"completed_at,omitempty" bun:"completed_at,nullzero"`
	RefundedAt    time.Time     `json:"refunded_at,omitempty" bun:"refunded_at,nullzero"`
	FailureReason string        `json:"failure_reason,omitempty" bun:"failure_reason,nullzero"`
}

type PaymentWithEvent struct {
	Payment
	Event *Event `json:"event,omitempty"`
}

type PurchaseRequest struct {
	EntryID       string `json:"entry_id"`
	PaymentMethod string `json:"payment_method"`
	Quantity      int    `json:"quantity"`
}

type PurchaseResponse struct {
	PaymentID string   `json:"payment_id"`
	TicketIDs []string `json:"ticket_ids"`
}
