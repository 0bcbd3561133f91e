package models

import (
	"errors"
	"fmt"
	"time"
)

// Domain conditions the API layer must be able to tell apart from plain
// infrastructure failures. Handlers match these with errors.Is/errors.As and
// pick the response status; anything else is treated as a 500.
var (
	ErrEventNotFound   = errors.New("event not found")
	ErrEventCancelled  = errors.New("event is no longer active")
	ErrAlreadyQueued   = errors.New("already have an active entry in the waiting list for this event")
	ErrEntryNotFound   = errors.New("waiting list entry not found")
	ErrOfferExpired    = errors.New("ticket offer has expired")
	ErrOfferNotOwned   = errors.New("waiting list entry does not belong to this user")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrPaymentNotFound = errors.New("payment not found")
)

// RateLimitedError carries the time until the fixed window resets so the UI
// can tell the user how long to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("joined the waiting list too many times, retry in %s", e.RetryAfter.Round(time.Second))
}

// InsufficientInventoryError reports how many tickets were actually left when
// a purchase asked for more than the event could still supply.
type InsufficientInventoryError struct {
	Remaining int
}

func (e *InsufficientInventoryError) Error() string {
	if e.Remaining == 1 {
		return "not enough tickets available, only 1 ticket remaining"
	}
	return fmt.Sprintf("not enough tickets available, only %d tickets remaining", e.Remaining)
}
