// Package publisher emits a checkout-paid event once a payment is
// confirmed, so downstream consumers (fulfillment, CRM) pick the order
// up without polling the store.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

const topicCheckoutPaid = "checkout-paid"

// PaidEvent is the wire payload for a confirmed payment.
type PaidEvent struct {
	ExternalReference string    `json:"external_reference"`
	OrderID           string    `json:"order_id"`
	ProductSlug       string    `json:"product_slug"`
	TotalAmount       int64     `json:"total_amount"`
	Quantity          int       `json:"quantity"`
	PaymentMethod     string    `json:"payment_method"`
	PaidAt            time.Time `json:"paid_at"`
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	writer kafkaWriter
}

func NewPublisher(brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topicCheckoutPaid,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w}
}

// PublishPaid keys the message by externalReference so retries for the
// same attempt land on the same partition in order.
func (p *Publisher) PublishPaid(ctx context.Context, event PaidEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal paid event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ExternalReference),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("checkout.paid")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish paid event: %w", err)
	}

	log.WithFields(log.Fields{
		"external_reference": event.ExternalReference,
		"order_id":           event.OrderID,
	}).Info("published checkout-paid event")
	return nil
}

func (p *Publisher) Close() error {
	if w, ok := p.writer.(*kafka.Writer); ok {
		return w.Close()
	}
	return nil
}
