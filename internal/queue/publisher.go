package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
)

const bookingQueueName = "booking.confirmed"

// Publisher sends booking.confirmed events to RabbitMQ.  Each call dials
// its own connection so a broker outage never affects the booking path
// beyond the returned error.
type Publisher struct {
	url string
	log *slog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{url: url, log: logger.With("component", "booking-publisher")}
}

// NotifyBookingConfirmed publishes the confirmation of b.
func (p *Publisher) NotifyBookingConfirmed(ctx context.Context, b *model.Booking, screening *model.Screening) error {
	return p.Publish(ctx, NewBookingConfirmedEvent(b, screening))
}

// Publish sends event to the durable booking.confirmed queue as a
// persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, event BookingConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("dial failed", "err", err)
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := declareBookingQueue(ch); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", bookingQueueName, false, false, pub); err != nil {
		p.log.Warn("publish failed", "booking_id", event.BookingID, "err", err)
		return fmt.Errorf("publish: %w", err)
	}
	p.log.Debug("booking published", "booking_id", event.BookingID)
	return nil
}

// declareBookingQueue makes sure the durable queue exists.
func declareBookingQueue(ch *amqp.Channel) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(bookingQueueName, true, false, false, false, nil)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}
