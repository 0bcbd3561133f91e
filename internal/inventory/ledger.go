package inventory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-marketplace/internal/models"

	"github.com/uptrace/bun"
)

// Ledger derives how much of an event's capacity is spoken for. There is no
// stored counter: purchased tickets and live offers are counted from their
// authoritative tables on every call, so an offer that expired but was not
// yet swept simply stops counting.
type Ledger struct {
	Bun bun.IDB
}

func NewLedger(db bun.IDB) *Ledger {
	return &Ledger{Bun: db}
}

// GetAvailability returns the derived inventory position for one event.
func (l *Ledger) GetAvailability(ctx context.Context, eventID string) (*models.Availability, error) {
	var event models.Event
	err := l.Bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, err
	}

	purchased, err := l.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketValid, models.TicketUsed})).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	activeOffers, err := l.Bun.NewSelect().
		Model((*models.WaitingListEntry)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", models.WaitingListOffered).
		Where("offer_expires_at > ?", time.Now()).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	remaining := event.TotalTickets - purchased - activeOffers
	if remaining < 0 {
		remaining = 0
	}

	return &models.Availability{
		TotalTickets: event.TotalTickets,
		Purchased:    purchased,
		ActiveOffers: activeOffers,
		Remaining:    remaining,
	}, nil
}
