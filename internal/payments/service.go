package payments

import (
	"context"
	"errors"
	"fmt"

	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
)

type DBLayer interface {
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentsByUser(ctx context.Context, userID string) ([]models.Payment, error)
	RefundPayment(ctx context.Context, paymentID string) error
}

type EventStore interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type QueuePublisher interface {
	PublishPromotionRequested(eventID string) error
}

var ErrNotRefundable = errors.New("can only refund completed payments")

type Service struct {
	DB     DBLayer
	Events EventStore
	Kafka  QueuePublisher
	Logger *logger.Logger
}

func NewService(db DBLayer, events EventStore, kafka QueuePublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Events: events, Kafka: kafka, Logger: log}
}

// Refund reverses a completed payment and its tickets. The freed capacity
// is handed to the waiting list through a promotion pass.
func (s *Service) Refund(ctx context.Context, organizerID, paymentID string) error {
	payment, err := s.DB.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentCompleted {
		return ErrNotRefundable
	}

	event, err := s.Events.GetEventByID(ctx, payment.EventID)
	if err != nil {
		return err
	}
	if event.OrganizerID != organizerID {
		return fmt.Errorf("only the owning organizer may refund this payment")
	}

	if err := s.DB.RefundPayment(ctx, paymentID); err != nil {
		return fmt.Errorf("refund payment %s: %w", paymentID, err)
	}

	s.Logger.LogPurchase("REFUND", paymentID, fmt.Sprintf("event=%s amount=%.2f", payment.EventID, payment.Amount))

	// Refunded seats are free capacity; wake the queue.
	if err := s.Kafka.PublishPromotionRequested(payment.EventID); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Promotion publish failed after refund %s: %v", paymentID, err))
	}
	return nil
}

func (s *Service) GetUserPayments(ctx context.Context, userID string) ([]models.PaymentWithEvent, error) {
	payments, err := s.DB.GetPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("payments for user %s: %w", userID, err)
	}

	result := make([]models.PaymentWithEvent, 0, len(payments))
	for i := range payments {
		event, err := s.Events.GetEventByID(ctx, payments[i].EventID)
		if err != nil && !errors.Is(err, models.ErrEventNotFound) {
			return nil, err
		}
		result = append(result, models.PaymentWithEvent{Payment: payments[i], Event: event})
	}
	return result, nil
}
