package tickets

import (
	"context"
	"fmt"
	"time"

	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
)

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	GetTicketsByPayment(ctx context.Context, paymentID string) ([]models.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus) error
	MarkEndedEventTicketsUsed(ctx context.Context, now time.Time) (int64, error)
}

type EventStore interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type Service struct {
	DB     TicketDBLayer
	Events EventStore
	Logger *logger.Logger
}

func NewService(db TicketDBLayer, events EventStore, log *logger.Logger) *Service {
	return &Service{DB: db, Events: events, Logger: log}
}

// GetTicketWithDetails joins the ticket with its event, the shape the
// notification dispatcher and the ticket page render from.
func (s *Service) GetTicketWithDetails(ctx context.Context, ticketID string) (*models.TicketWithEvent, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	event, err := s.Events.GetEventByID(ctx, ticket.EventID)
	if err != nil {
		return nil, fmt.Errorf("event for ticket %s: %w", ticketID, err)
	}

	return &models.TicketWithEvent{Ticket: *ticket, Event: event}, nil
}

func (s *Service) GetUserTickets(ctx context.Context, userID string) ([]models.TicketWithEvent, error) {
	tickets, err := s.DB.GetTicketsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("tickets for user %s: %w", userID, err)
	}

	result := make([]models.TicketWithEvent, 0, len(tickets))
	for i := range tickets {
		event, err := s.Events.GetEventByID(ctx, tickets[i].EventID)
		if err != nil {
			return nil, fmt.Errorf("event for ticket %s: %w", tickets[i].ID, err)
		}
		result = append(result, models.TicketWithEvent{Ticket: tickets[i], Event: event})
	}
	return result, nil
}

// Scan marks a valid ticket used at the door. Only valid tickets scan;
// anything else reports its current state.
func (s *Service) Scan(ctx context.Context, ticketID string) error {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Status != models.TicketValid {
		return fmt.Errorf("ticket is already %s", ticket.Status)
	}

	if err := s.DB.UpdateStatus(ctx, ticketID, models.TicketUsed); err != nil {
		return fmt.Errorf("mark ticket used: %w", err)
	}
	s.Logger.Info("TICKETS", fmt.Sprintf("Ticket %s scanned", ticketID))
	return nil
}

// SweepEnded marks valid tickets of past events as used. Runs periodically;
// safe to repeat.
func (s *Service) SweepEnded(ctx context.Context) (int64, error) {
	updated, err := s.DB.MarkEndedEventTicketsUsed(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("sweep ended events: %w", err)
	}
	if updated > 0 {
		s.Logger.Info("TICKETS", fmt.Sprintf("Swept %d tickets of ended events", updated))
	}
	return updated, nil
}
