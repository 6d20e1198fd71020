// Package messaging delivers outbox events to RabbitMQ.
package messaging

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"

	"easyentrepreneur/internal/infrastructure/storage/postgres"
	"easyentrepreneur/pkg/logger"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RelayObserver is notified of every delivery attempt.
type RelayObserver interface {
	ObserveRelay(eventType string, err error)
}

// RabbitPublisher implements postgres.OutboxHandler on a topic exchange.
// The routing key is the event type, e.g. "document.created".
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
	observer RelayObserver
}

var _ postgres.OutboxHandler = (*RabbitPublisher)(nil)

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string, observer RelayObserver) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	p, err := NewRabbitPublisher(ch, exchange, observer)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewRabbitPublisher declares a durable topic exchange on ch.
func NewRabbitPublisher(ch Channel, exchange string, observer RelayObserver) (*RabbitPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{channel: ch, exchange: exchange, observer: observer}, nil
}

// Handle publishes one outbox message as a persistent JSON message.
func (p *RabbitPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	err := p.channel.Publish(p.exchange, msg.EventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Timestamp:    msg.CreatedAt,
		Type:         msg.EventType,
		Headers: amqp.Table{
			"aggregate_type": msg.AggregateType,
			"aggregate_id":   msg.AggregateID.String(),
		},
		Body: msg.Payload,
	})
	if p.observer != nil {
		p.observer.ObserveRelay(msg.EventType, err)
	}
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", msg.EventType, p.exchange, err)
	}
	logger.Debug(ctx, "outbox message published", "message_id", msg.ID, "event_type", msg.EventType)
	return nil
}

// Close cleans up channel and connection.
func (p *RabbitPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
