package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
	"ms-marketplace/internal/ratelimit"
	"ms-marketplace/internal/utils"

	"github.com/google/uuid"
)

type DBLayer interface {
	GetEntryByID(ctx context.Context, id string) (*models.WaitingListEntry, error)
	GetActiveEntry(ctx context.Context, eventID, userID string) (*models.WaitingListEntry, error)
	InsertEntry(ctx context.Context, entry *models.WaitingListEntry) error
	MarkOffered(ctx context.Context, id string, expiresAt time.Time) error
	MarkExpired(ctx context.Context, id string) error
	DeleteEntry(ctx context.Context, id string) error
	OldestWaiting(ctx context.Context, eventID string, limit int) ([]models.WaitingListEntry, error)
	WaitingPosition(ctx context.Context, entry *models.WaitingListEntry) (int, error)
}

type EventStore interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type AvailabilityReader interface {
	GetAvailability(ctx context.Context, eventID string) (*models.Availability, error)
}

type RateLimiter interface {
	TryAcquire(ctx context.Context, identity string) (*ratelimit.Decision, error)
}

// AdmissionLock serializes capacity decisions per event and owns the
// deferred offer-expiry callbacks.
type AdmissionLock interface {
	WithEventLock(ctx context.Context, eventID, token string, fn func() error) error
	ScheduleExpiry(ctx context.Context, entryID string, ttl time.Duration) error
	CancelExpiry(ctx context.Context, entryID string) error
}

type QueuePublisher interface {
	PublishPromotionRequested(eventID string) error
	PublishOfferExpired(entry models.WaitingListEntry) error
}

type QueueBroadcaster interface {
	Broadcast(update models.QueueUpdate)
}

// Service is the waiting-list admission controller. All writes to the
// waiting_list table go through here; the purchase finalizer only ever
// deletes a consumed entry.
type Service struct {
	DB       DBLayer
	Events   EventStore
	Ledger   AvailabilityReader
	Limiter  RateLimiter
	Redis    AdmissionLock
	Kafka    QueuePublisher
	SSE      QueueBroadcaster
	Logger   *logger.Logger
	OfferTTL time.Duration
}

func NewService(db DBLayer, events EventStore, ledger AvailabilityReader, limiter RateLimiter,
	redis AdmissionLock, kafka QueuePublisher, sse QueueBroadcaster, log *logger.Logger,
	offerTTL time.Duration) *Service {
	return &Service{
		DB:       db,
		Events:   events,
		Ledger:   ledger,
		Limiter:  limiter,
		Redis:    redis,
		Kafka:    kafka,
		SSE:      sse,
		Logger:   log,
		OfferTTL: offerTTL,
	}
}

// JoinQueue enqueues a user for an event. With capacity remaining the entry
// is born offered with a scheduled expiry; otherwise it waits its turn.
func (s *Service) JoinQueue(ctx context.Context, eventID, userID string) (*models.JoinQueueResult, error) {
	decision, err := s.Limiter.TryAcquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !decision.Allowed {
		return nil, &models.RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	var result *models.JoinQueueResult
	err = s.Redis.WithEventLock(ctx, eventID, uuid.NewString(), func() error {
		existing, err := s.DB.GetActiveEntry(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("check active entry: %w", err)
		}
		if existing != nil {
			// A lapsed offer whose scheduled expiry never fired must not
			// block the user forever. Reap it here and admit a fresh join.
			if existing.Status != models.WaitingListOffered || existing.OfferValid(time.Now()) {
				return models.ErrAlreadyQueued
			}
			if err := s.DB.MarkExpired(ctx, existing.ID); err != nil {
				return fmt.Errorf("expire lapsed offer: %w", err)
			}
			s.broadcast(eventID, existing.ID, userID, models.WaitingListExpired)
		}

		event, err := s.Events.GetEventByID(ctx, eventID)
		if err != nil {
			return err
		}
		if event.IsCancelled {
			return models.ErrEventCancelled
		}

		availability, err := s.Ledger.GetAvailability(ctx, eventID)
		if err != nil {
			return fmt.Errorf("derive availability: %w", err)
		}

		entry := &models.WaitingListEntry{
			ID:        utils.GenerateEntryID(),
			EventID:   eventID,
			UserID:    userID,
			CreatedAt: time.Now(),
		}

		if availability.Remaining > 0 {
			entry.Status = models.WaitingListOffered
			entry.OfferExpiresAt = time.Now().Add(s.OfferTTL)
			if err := s.DB.InsertEntry(ctx, entry); err != nil {
				return fmt.Errorf("insert offered entry: %w", err)
			}
			if err := s.Redis.ScheduleExpiry(ctx, entry.ID, s.OfferTTL); err != nil {
				s.Logger.Error("WAITLIST", fmt.Sprintf("Failed to schedule expiry for %s: %v", entry.ID, err))
			}
			result = &models.JoinQueueResult{
				EntryID:        entry.ID,
				Status:         models.WaitingListOffered,
				OfferExpiresAt: entry.OfferExpiresAt,
				Message:        fmt.Sprintf("Ticket offered - you have %d minutes to purchase", int(s.OfferTTL.Minutes())),
			}
		} else {
			entry.Status = models.WaitingListWaiting
			if err := s.DB.InsertEntry(ctx, entry); err != nil {
				return fmt.Errorf("insert waiting entry: %w", err)
			}
			result = &models.JoinQueueResult{
				EntryID: entry.ID,
				Status:  models.WaitingListWaiting,
				Message: "Added to waiting list - you'll be notified when a ticket becomes available",
			}
		}

		s.broadcast(eventID, entry.ID, userID, entry.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogQueue("JOIN", result.EntryID, fmt.Sprintf("user=%s event=%s status=%s", userID, eventID, result.Status))
	return result, nil
}

// GetQueuePosition returns the caller's live entry for an event, or nil when
// there is none. Position is only computed for waiting entries.
func (s *Service) GetQueuePosition(ctx context.Context, eventID, userID string) (*models.QueuePosition, error) {
	entry, err := s.DB.GetActiveEntry(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("get active entry: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	pos := &models.QueuePosition{
		EntryID: entry.ID,
		Status:  entry.Status,
	}
	switch entry.Status {
	case models.WaitingListWaiting:
		position, err := s.DB.WaitingPosition(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("waiting position: %w", err)
		}
		pos.Position = position
	case models.WaitingListOffered:
		pos.OfferExpiresAt = entry.OfferExpiresAt
	}
	return pos, nil
}

// Release is the explicit user cancellation path. An offered entry frees its
// reservation and the next waiter is promoted; a waiting entry just leaves
// the queue.
func (s *Service) Release(ctx context.Context, eventID, entryID, userID string) error {
	entry, err := s.DB.GetEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.UserID != userID {
		return models.ErrOfferNotOwned
	}
	if entry.EventID != eventID {
		return models.ErrEntryNotFound
	}

	err = s.Redis.WithEventLock(ctx, eventID, uuid.NewString(), func() error {
		// Re-read under the lock; the offer may have expired or been
		// consumed while we waited.
		entry, err := s.DB.GetEntryByID(ctx, entryID)
		if errors.Is(err, models.ErrEntryNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !entry.Active() {
			return nil
		}

		if err := s.DB.MarkExpired(ctx, entryID); err != nil {
			return fmt.Errorf("release entry: %w", err)
		}
		if err := s.Redis.CancelExpiry(ctx, entryID); err != nil {
			s.Logger.Warn("WAITLIST", fmt.Sprintf("Failed to cancel expiry for %s: %v", entryID, err))
		}
		s.broadcast(eventID, entryID, userID, models.WaitingListExpired)
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger.LogQueue("RELEASE", entryID, fmt.Sprintf("user=%s event=%s", userID, eventID))
	s.requestPromotion(ctx, eventID)
	return nil
}

// ExpireOffer is the scheduled expiry callback. It must be idempotent: the
// entry may already be consumed, released, or expired by the time the
// notification arrives, and notifications can be duplicated.
func (s *Service) ExpireOffer(ctx context.Context, entryID string) error {
	entry, err := s.DB.GetEntryByID(ctx, entryID)
	if errors.Is(err, models.ErrEntryNotFound) {
		return nil // consumed before the deadline
	}
	if err != nil {
		return fmt.Errorf("load entry %s: %w", entryID, err)
	}

	eventID := entry.EventID
	expired := false
	err = s.Redis.WithEventLock(ctx, eventID, uuid.NewString(), func() error {
		entry, err := s.DB.GetEntryByID(ctx, entryID)
		if errors.Is(err, models.ErrEntryNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if entry.Status != models.WaitingListOffered || entry.OfferValid(time.Now()) {
			return nil
		}

		if err := s.DB.MarkExpired(ctx, entryID); err != nil {
			return fmt.Errorf("mark expired: %w", err)
		}
		expired = true
		s.broadcast(eventID, entryID, entry.UserID, models.WaitingListExpired)
		return nil
	})
	if err != nil {
		return err
	}
	if !expired {
		return nil
	}

	s.Logger.LogQueue("EXPIRE", entryID, fmt.Sprintf("event=%s offer lapsed", eventID))
	if err := s.Kafka.PublishOfferExpired(models.WaitingListEntry{ID: entryID, EventID: eventID}); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish offer expired for %s: %v", entryID, err))
	}
	s.requestPromotion(ctx, eventID)
	return nil
}

// PromoteNext hands fresh offers to the oldest waiters while capacity
// remains. The remaining count is decremented locally per promotion so one
// pass can never hand out more offers than the capacity it observed.
func (s *Service) PromoteNext(ctx context.Context, eventID string) error {
	var promoted int
	err := s.Redis.WithEventLock(ctx, eventID, uuid.NewString(), func() error {
		availability, err := s.Ledger.GetAvailability(ctx, eventID)
		if err != nil {
			return fmt.Errorf("derive availability: %w", err)
		}
		remaining := availability.Remaining
		if remaining <= 0 {
			return nil
		}

		candidates, err := s.DB.OldestWaiting(ctx, eventID, remaining)
		if err != nil {
			return fmt.Errorf("list waiting entries: %w", err)
		}

		for _, entry := range candidates {
			if remaining <= 0 {
				break
			}
			expiresAt := time.Now().Add(s.OfferTTL)
			if err := s.DB.MarkOffered(ctx, entry.ID, expiresAt); err != nil {
				return fmt.Errorf("promote entry %s: %w", entry.ID, err)
			}
			if err := s.Redis.ScheduleExpiry(ctx, entry.ID, s.OfferTTL); err != nil {
				s.Logger.Error("WAITLIST", fmt.Sprintf("Failed to schedule expiry for %s: %v", entry.ID, err))
			}
			s.broadcast(eventID, entry.ID, entry.UserID, models.WaitingListOffered)
			remaining--
			promoted++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if promoted > 0 {
		s.Logger.LogQueue("PROMOTE", eventID, fmt.Sprintf("promoted %d waiter(s)", promoted))
	}
	return nil
}

// requestPromotion defers the next promotion pass through Kafka so the
// caller's latency is decoupled from queue length. When the broker is down
// the pass runs inline instead; a freed seat must never stay unoffered.
func (s *Service) requestPromotion(ctx context.Context, eventID string) {
	if err := s.Kafka.PublishPromotionRequested(eventID); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Promotion publish failed for event %s, running inline: %v", eventID, err))
		if err := s.PromoteNext(ctx, eventID); err != nil {
			s.Logger.Error("WAITLIST", fmt.Sprintf("Inline promotion failed for event %s: %v", eventID, err))
		}
	}
}

func (s *Service) broadcast(eventID, entryID, userID string, status models.WaitingListStatus) {
	if s.SSE == nil {
		return
	}
	s.SSE.Broadcast(models.QueueUpdate{
		EventID:   eventID,
		EntryID:   entryID,
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now(),
	})
}
