package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) error
	UpdateEvent(ctx context.Context, event *models.Event) error
	MarkCancelled(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]models.Event, error)
	Search(ctx context.Context, term string) ([]models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error)
	CountSold(ctx context.Context, eventID string) (int, error)
	Metrics(ctx context.Context, event *models.Event) (*models.EventMetrics, error)
}

type QueuePurger interface {
	DeleteByEvent(ctx context.Context, eventID string) error
}

var (
	ErrNotOrganizer     = errors.New("only the owning organizer may modify this event")
	ErrCapacityBelow    = errors.New("cannot reduce total tickets below the number already sold")
	ErrHasActiveTickets = errors.New("cannot cancel event with active tickets, refund them first")
)

type Service struct {
	DB     DBLayer
	Queue  QueuePurger
	Logger *logger.Logger
}

func NewService(db DBLayer, queue QueuePurger, log *logger.Logger) *Service {
	return &Service{DB: db, Queue: queue, Logger: log}
}

func (s *Service) CreateEvent(ctx context.Context, organizerID string, req models.EventRequest) (*models.Event, error) {
	if req.TotalTickets < 0 {
		return nil, fmt.Errorf("total tickets must not be negative")
	}

	event := &models.Event{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		Location:     req.Location,
		EventDate:    req.EventDate,
		Price:        req.Price,
		TotalTickets: req.TotalTickets,
		OrganizerID:  organizerID,
		CreatedAt:    time.Now(),
	}
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.Logger.Info("EVENTS", fmt.Sprintf("Event %s created by %s (%d tickets)", event.ID, organizerID, event.TotalTickets))
	return event, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.DB.GetEventByID(ctx, id)
}

func (s *Service) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.DB.ListActive(ctx)
}

func (s *Service) SearchEvents(ctx context.Context, term string) ([]models.Event, error) {
	return s.DB.Search(ctx, term)
}

// UpdateEvent applies organizer edits. Capacity may never drop below the
// number of tickets already sold; growth is always allowed.
func (s *Service) UpdateEvent(ctx context.Context, organizerID, eventID string, req models.EventRequest) (*models.Event, error) {
	event, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, ErrNotOrganizer
	}

	sold, err := s.DB.CountSold(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("count sold tickets: %w", err)
	}
	if req.TotalTickets < sold {
		return nil, fmt.Errorf("%w (%d sold)", ErrCapacityBelow, sold)
	}

	event.Name = req.Name
	event.Description = req.Description
	event.Location = req.Location
	event.EventDate = req.EventDate
	event.Price = req.Price
	event.TotalTickets = req.TotalTickets

	if err := s.DB.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

// CancelEvent marks an event cancelled and purges its waiting list. Refused
// while capacity-consuming tickets exist; those must be refunded first.
func (s *Service) CancelEvent(ctx context.Context, organizerID, eventID string) error {
	event, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizerID != organizerID {
		return ErrNotOrganizer
	}

	sold, err := s.DB.CountSold(ctx, eventID)
	if err != nil {
		return fmt.Errorf("count sold tickets: %w", err)
	}
	if sold > 0 {
		return ErrHasActiveTickets
	}

	if err := s.DB.MarkCancelled(ctx, eventID); err != nil {
		return fmt.Errorf("cancel event: %w", err)
	}
	if err := s.Queue.DeleteByEvent(ctx, eventID); err != nil {
		return fmt.Errorf("purge waiting list: %w", err)
	}

	s.Logger.Info("EVENTS", fmt.Sprintf("Event %s cancelled by %s", eventID, organizerID))
	return nil
}

// OrganizerEvents returns the organizer's events with sales metrics.
func (s *Service) OrganizerEvents(ctx context.Context, organizerID string) ([]models.EventWithMetrics, error) {
	events, err := s.DB.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, err
	}

	result := make([]models.EventWithMetrics, 0, len(events))
	for i := range events {
		metrics, err := s.DB.Metrics(ctx, &events[i])
		if err != nil {
			return nil, fmt.Errorf("metrics for event %s: %w", events[i].ID, err)
		}
		result = append(result, models.EventWithMetrics{Event: events[i], Metrics: *metrics})
	}
	return result, nil
}
