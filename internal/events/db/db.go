package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-marketplace/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

// ---------------- EVENTS ----------------

func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewUpdate().
		Model(event).
		Column("name", "description", "location", "event_date", "price", "total_tickets").
		Where("id = ?", event.ID).
		Exec(ctx)
	return err
}

func (d *DB) MarkCancelled(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("is_cancelled = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ListActive → all events that have not been cancelled, soonest first.
func (d *DB) ListActive(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("is_cancelled = ?", false).
		Order("event_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Search → case-insensitive match over name, description and location.
func (d *DB) Search(ctx context.Context, term string) ([]models.Event, error) {
	pattern := "%" + term + "%"
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("is_cancelled = ?", false).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(name) LIKE LOWER(?)", pattern).
				WhereOr("LOWER(description) LIKE LOWER(?)", pattern).
				WhereOr("LOWER(location) LIKE LOWER(?)", pattern)
		}).
		Order("event_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListByOrganizer → every event the organizer owns, including cancelled ones.
func (d *DB) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("organizer_id = ?", organizerID).
		Order("event_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ---------------- TICKET AGGREGATES ----------------

// CountSold → tickets that consume capacity (valid or used).
func (d *DB) CountSold(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketValid, models.TicketUsed})).
		Count(ctx)
}

// Metrics → per-event sales summary for the organizer dashboard.
func (d *DB) Metrics(ctx context.Context, event *models.Event) (*models.EventMetrics, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Column("status", "amount").
		Where("event_id = ?", event.ID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	metrics := &models.EventMetrics{}
	for _, t := range tickets {
		switch t.Status {
		case models.TicketValid, models.TicketUsed:
			metrics.SoldTickets++
			metrics.Revenue += t.Amount
		case models.TicketRefunded:
			metrics.RefundedTickets++
		case models.TicketCancelled:
			metrics.CancelledTickets++
		}
	}
	return metrics, nil
}
