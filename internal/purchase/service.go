package purchase

import (
	"context"
	"fmt"
	"time"

	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/utils"

	"github.com/google/uuid"
)

type DBLayer interface {
	FinalizePurchase(ctx context.Context, payment *models.Payment, tickets []models.Ticket, entryID string) error
}

type EntryStore interface {
	GetEntryByID(ctx context.Context, id string) (*models.WaitingListEntry, error)
}

type EventStore interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type AvailabilityReader interface {
	GetAvailability(ctx context.Context, eventID string) (*models.Availability, error)
}

type AdmissionLock interface {
	WithEventLock(ctx context.Context, eventID, token string, fn func() error) error
	CancelExpiry(ctx context.Context, entryID string) error
}

type PurchasePublisher interface {
	PublishTicketPurchased(payment models.Payment, ticketIDs []string) error
	PublishPromotionRequested(eventID string) error
}

// Promoter is the inline fallback when the deferred promotion publish fails.
type Promoter interface {
	PromoteNext(ctx context.Context, eventID string) error
}

type QRGenerator interface {
	TicketQR(ticketID, eventID, purchaserID string) ([]byte, error)
}

// Notifier sends the purchase confirmation. Strictly best-effort: a failed
// email never touches ticket or payment validity.
type Notifier interface {
	SendPurchaseConfirmation(ctx context.Context, event *models.Event, payment *models.Payment, tickets []models.Ticket) error
}

// Service converts a live offer into tickets and a payment, exactly once.
type Service struct {
	DB       DBLayer
	Entries  EntryStore
	Events   EventStore
	Ledger   AvailabilityReader
	Redis    AdmissionLock
	Kafka    PurchasePublisher
	Promoter Promoter
	QR       QRGenerator
	Notifier Notifier
	Logger   *logger.Logger
}

// Purchase validates the offer, re-derives availability under the event's
// admission lock, and finalizes atomically. The buyer's own live offer
// returns to the pool in the same step it is consumed, so the allowed
// quantity is the derived remaining plus that one slot; an offer is
// eligibility to buy, not a pre-reserved quantity.
func (s *Service) Purchase(ctx context.Context, eventID, userID, entryID, paymentMethod string, quantity int) (*models.PurchaseResponse, error) {
	var (
		response *models.PurchaseResponse
		event    *models.Event
		payment  *models.Payment
		tickets  []models.Ticket
	)
	err := s.Redis.WithEventLock(ctx, eventID, uuid.NewString(), func() error {
		entry, err := s.Entries.GetEntryByID(ctx, entryID)
		if err != nil {
			return err
		}
		if !entry.OfferValid(time.Now()) {
			return models.ErrOfferExpired
		}
		if entry.UserID != userID {
			return models.ErrOfferNotOwned
		}
		if entry.EventID != eventID {
			return models.ErrEntryNotFound
		}

		event, err = s.Events.GetEventByID(ctx, eventID)
		if err != nil {
			return err
		}
		if event.IsCancelled {
			return models.ErrEventCancelled
		}

		if quantity < 1 {
			return models.ErrInvalidQuantity
		}

		availability, err := s.Ledger.GetAvailability(ctx, eventID)
		if err != nil {
			return fmt.Errorf("derive availability: %w", err)
		}
		allowed := availability.Remaining + 1 // the buyer's own offer converts
		if allowed > event.TotalTickets {
			allowed = event.TotalTickets
		}
		if quantity > allowed {
			return &models.InsufficientInventoryError{Remaining: availability.Remaining}
		}

		now := time.Now()
		payment = &models.Payment{
			PaymentID:     utils.GeneratePaymentID(),
			EventID:       eventID,
			UserID:        userID,
			Amount:        event.Price * float64(quantity),
			PaymentMethod: paymentMethod,
			Status:        models.PaymentCompleted,
			CreatedAt:     now,
			CompletedAt:   now,
		}

		tickets = make([]models.Ticket, 0, quantity)
		for i := 0; i < quantity; i++ {
			ticket := models.Ticket{
				ID:          utils.GenerateTicketID(),
				EventID:     eventID,
				UserID:      userID,
				PaymentID:   payment.PaymentID,
				Status:      models.TicketValid,
				Amount:      event.Price,
				PurchasedAt: now,
			}
			qrBytes, err := s.QR.TicketQR(ticket.ID, eventID, userID)
			if err != nil {
				return fmt.Errorf("generate QR: %w", err)
			}
			ticket.QRCode = qrBytes
			tickets = append(tickets, ticket)
		}

		if err := s.DB.FinalizePurchase(ctx, payment, tickets, entryID); err != nil {
			return err
		}

		if err := s.Redis.CancelExpiry(ctx, entryID); err != nil {
			s.Logger.Warn("PURCHASE", fmt.Sprintf("Failed to cancel expiry for %s: %v", entryID, err))
		}

		ticketIDs := make([]string, len(tickets))
		for i, t := range tickets {
			ticketIDs[i] = t.ID
		}
		response = &models.PurchaseResponse{PaymentID: payment.PaymentID, TicketIDs: ticketIDs}

		s.Logger.LogPurchase("FINALIZE", payment.PaymentID,
			fmt.Sprintf("user=%s event=%s tickets=%d amount=%.2f", userID, eventID, quantity, payment.Amount))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterPurchase(event, payment, tickets)
	return response, nil
}

// afterPurchase handles everything the buyer does not wait for: the
// purchase event, the deferred promotion pass, and the confirmation email.
// It runs after the admission lock is released; the purchase is already
// committed and nothing here may hold up the next admission decision.
func (s *Service) afterPurchase(event *models.Event, payment *models.Payment, tickets []models.Ticket) {
	ticketIDs := make([]string, len(tickets))
	for i, t := range tickets {
		ticketIDs[i] = t.ID
	}

	if err := s.Kafka.PublishTicketPurchased(*payment, ticketIDs); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish ticket purchased for %s: %v", payment.PaymentID, err))
	}

	if err := s.Kafka.PublishPromotionRequested(event.ID); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Promotion publish failed for event %s, running inline: %v", event.ID, err))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Promoter.PromoteNext(ctx, event.ID); err != nil {
				s.Logger.Error("WAITLIST", fmt.Sprintf("Inline promotion failed for event %s: %v", event.ID, err))
			}
		}()
	}

	if s.Notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Notifier.SendPurchaseConfirmation(ctx, event, payment, tickets); err != nil {
				s.Logger.Error("NOTIFY", fmt.Sprintf("Confirmation email failed for %s: %v", payment.PaymentID, err))
			}
		}()
	}
}
