package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	pkgevents "github.com/floroz/accio/pkg/events"
	"github.com/floroz/accio/services/profile-service/internal/domain/profiles"
)

// QueueName is the durable queue the profile service reads item events from
const QueueName = "profile_item_events"

// RoutingKeys are the item events that change a profile
var RoutingKeys = []string{
	pkgevents.EventTypeItemUploaded,
	pkgevents.EventTypeItemClaimed,
	pkgevents.EventTypeItemClaimApproved,
}

// EventProcessor applies one item event
type EventProcessor interface {
	ProcessItemEvent(ctx context.Context, event profiles.ItemEvent) error
}

// ItemConsumer consumes item events and updates user activity
type ItemConsumer struct {
	conn      *amqp.Connection
	processor EventProcessor
	logger    *slog.Logger
}

// NewItemConsumer creates a new item consumer
func NewItemConsumer(conn *amqp.Connection, processor EventProcessor, logger *slog.Logger) *ItemConsumer {
	return &ItemConsumer{
		conn:      conn,
		processor: processor,
		logger:    logger,
	}
}

// Run starts the consumer loop. It returns nil once ctx is cancelled.
func (c *ItemConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupRabbitMQ(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		QueueName, // queue
		"",        // consumer tag
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for messages...", "queue", QueueName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks processed and duplicate events, drops events that can never
// be processed and requeues the rest
func (c *ItemConsumer) handle(ctx context.Context, d amqp.Delivery) {
	event, err := pkgevents.UnmarshalItemEvent(d.Body)
	if err != nil {
		c.logger.Error("Failed to unmarshal event", "routing_key", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
		return
	}

	err = c.processor.ProcessItemEvent(ctx, profiles.ItemEvent{
		EventID:    event.EventID,
		Type:       event.Type,
		ActorID:    event.ActorID,
		OwnerID:    event.OwnerID,
		ClaimantID: event.ClaimantID,
		OccurredAt: event.OccurredAt,
	})
	switch {
	case errors.Is(err, profiles.ErrMissingUser):
		c.logger.Error("Dropping event without user", "event_id", event.EventID, "type", event.Type)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
	case err != nil:
		c.logger.Error("Failed to process event", "event_id", event.EventID, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
		}
	default:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to Ack message", "error", ackErr)
		}
		c.logger.Info("Successfully processed event", "event_id", event.EventID, "type", event.Type)
	}
}

func (c *ItemConsumer) setupRabbitMQ(ch *amqp.Channel) error {
	if err := pkgevents.DeclareExchange(ch); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		QueueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return err
	}

	for _, key := range RoutingKeys {
		if err := ch.QueueBind(q.Name, key, pkgevents.ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}
