package kafka

import (
	"context"
	"encoding/json"
	"time"

	"ms-marketplace/internal/models"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer *kafka.Writer
	Topics Topics
}

type Topics struct {
	QueuePromote    string
	TicketPurchased string
	OfferExpired    string
}

func NewProducer(brokers []string, topics Topics) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
	}
	return &Producer{Writer: writer, Topics: topics}
}

// PromotionRequest defers a promoteNext pass so freeing a seat never blocks
// on however many waiters need processing. Keyed by event so passes for one
// event stay ordered.
type PromotionRequest struct {
	EventID     string    `json:"event_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type TicketPurchasedEvent struct {
	PaymentID string    `json:"payment_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	TicketIDs []string  `json:"ticket_ids"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type OfferExpiredEvent struct {
	EntryID   string    `json:"entry_id"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *Producer) PublishPromotionRequested(eventID string) error {
	return p.publish(p.Topics.QueuePromote, eventID, PromotionRequest{
		EventID:     eventID,
		RequestedAt: time.Now(),
	})
}

func (p *Producer) PublishTicketPurchased(payment models.Payment, ticketIDs []string) error {
	return p.publish(p.Topics.TicketPurchased, payment.EventID, TicketPurchasedEvent{
		PaymentID: payment.PaymentID,
		EventID:   payment.EventID,
		UserID:    payment.UserID,
		TicketIDs: ticketIDs,
		Amount:    payment.Amount,
		Timestamp: time.Now(),
	})
}

func (p *Producer) PublishOfferExpired(entry models.WaitingListEntry) error {
	return p.publish(p.Topics.OfferExpired, entry.EventID, OfferExpiredEvent{
		EntryID:   entry.ID,
		EventID:   entry.EventID,
		Timestamp: time.Now(),
	})
}

func (p *Producer) publish(topic, key string, payload interface{}) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
