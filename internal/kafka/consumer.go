package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-marketplace/internal/logger"

	"github.com/segmentio/kafka-go"
)

// PromotionConsumer drains the queue-promote topic and runs one promotion
// pass per message. Passes are cheap no-ops when nothing is waiting or
// nothing is free, so duplicate requests after a rebalance are harmless.
type PromotionConsumer struct {
	Reader  *kafka.Reader
	Promote func(ctx context.Context, eventID string) error
	Logger  *logger.Logger
}

func NewPromotionConsumer(brokers []string, groupID, topic string,
	promote func(ctx context.Context, eventID string) error, log *logger.Logger) *PromotionConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
	return &PromotionConsumer{Reader: reader, Promote: promote, Logger: log}
}

// Run blocks until ctx is cancelled.
func (c *PromotionConsumer) Run(ctx context.Context) {
	c.Logger.Info("KAFKA", fmt.Sprintf("Promotion consumer started on topic %s", c.Reader.Config().Topic))
	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Promotion consumer read error: %v", err))
			continue
		}

		var req PromotionRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			c.Logger.Error("KAFKA", fmt.Sprintf("Bad promotion request payload: %v", err))
			continue
		}

		if err := c.Promote(ctx, req.EventID); err != nil {
			c.Logger.Error("WAITLIST", fmt.Sprintf("Promotion pass failed for event %s: %v", req.EventID, err))
		}
	}
}

func (c *PromotionConsumer) Close() error {
	return c.Reader.Close()
}
