// Package broker publishes booking lifecycle events to RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "events"
	ExchangeKind = "topic"

	RoutingBookingConfirmed = "booking.confirmed"
	RoutingBookingCheckedIn = "booking.checked_in"
)

// BookingEvent is the message body for every booking routing key.
type BookingEvent struct {
	BookingID  string    `json:"booking_id"`
	EventID    string    `json:"event_id"`
	AttendeeID string    `json:"attendee_id"`
	NumTickets int       `json:"num_tickets"`
	OrderID    string    `json:"order_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event BookingEvent) error
}

var ErrPublisherClosed = errors.New("publisher closed")

// RabbitPublisher keeps one channel open and redials when the broker drops
// the connection or the channel.
type RabbitPublisher struct {
	url     string
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
	mu      sync.Mutex
	logger  *slog.Logger
}

func NewRabbitPublisher(url string, logger *slog.Logger) (*RabbitPublisher, error) {
	p := &RabbitPublisher{url: url, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect dials a fresh connection and channel and declares the exchange.
// Callers hold p.mu, except the constructor.
func (p *RabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	p.conn, p.channel = conn, ch
	return nil
}

// ensureOpen reopens whatever the broker closed. A dead connection is
// replaced outright; a dead channel on a live connection gets a new channel.
func (p *RabbitPublisher) ensureOpen() error {
	if p.closed {
		return ErrPublisherClosed
	}
	if p.conn == nil || p.conn.IsClosed() {
		p.logger.Warn("rabbitmq connection lost, redialing")
		return p.connect()
	}
	if p.channel == nil || p.channel.IsClosed() {
		p.logger.Warn("rabbitmq channel closed, reopening")
		ch, err := p.conn.Channel()
		if err != nil {
			p.conn.Close()
			return p.connect()
		}
		if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("rabbitmq exchange declare: %w", err)
		}
		p.channel = ch
	}
	return nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, event BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureOpen(); err != nil {
		return err
	}
	err = p.channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) {
		// Closed between the check and the publish; one more attempt.
		if err = p.ensureOpen(); err == nil {
			err = p.channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, msg)
		}
	}
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.Debug("published booking event", "exchange", ExchangeName, "routing_key", routingKey, "booking_id", event.BookingID)
	return nil
}

// Close shuts the channel and connection. Later publishes fail with
// ErrPublisherClosed instead of redialing.
func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, routingKey string, event BookingEvent) error {
	return nil
}
