package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	pkgdb "github.com/floroz/accio/pkg/database"
	pkgevents "github.com/floroz/accio/pkg/events"
	"github.com/floroz/accio/services/item-service/internal/adapters/database"
)

// RelayOptions tunes the outbox polling loop
type RelayOptions struct {
	BatchSize   int
	Interval    time.Duration
	LockTimeout time.Duration
}

// ItemEventsProducer relays item lifecycle events from the outbox to RabbitMQ
type ItemEventsProducer struct {
	relay     *pkgevents.OutboxRelay
	publisher *pkgevents.RabbitMQPublisher
}

// NewItemEventsProducer creates a new producer
func NewItemEventsProducer(pool *pgxpool.Pool, conn *amqp.Connection, opts RelayOptions, logger *slog.Logger) (*ItemEventsProducer, error) {
	publisher, err := pkgevents.NewRabbitMQPublisher(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, opts.LockTimeout)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		opts.BatchSize,
		opts.Interval,
		pkgevents.ExchangeName,
		logger,
	)

	return &ItemEventsProducer{
		relay:     relay,
		publisher: publisher,
	}, nil
}

// Run starts the relay loop
func (p *ItemEventsProducer) Run(ctx context.Context) error {
	return p.relay.Run(ctx)
}

// Close closes the publisher channel
func (p *ItemEventsProducer) Close() error {
	return p.publisher.Close()
}
