package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/accio/services/item-service/internal/domain/chat"
)

// PostgresMessageRepository implements chat.Repository using pgx
type PostgresMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMessageRepository creates a new PostgreSQL message repository
func NewPostgresMessageRepository(pool *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// SaveMessage inserts a chat message
func (r *PostgresMessageRepository) SaveMessage(ctx context.Context, msg *chat.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, sender_name, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query, msg.ID, msg.SenderID, msg.SenderName, msg.Text, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListRecent returns the newest limit messages in chronological order
func (r *PostgresMessageRepository) ListRecent(ctx context.Context, limit int) ([]*chat.Message, error) {
	query := `
		SELECT id, sender_id, sender_name, text, created_at
		FROM (
			SELECT id, sender_id, sender_name, text, created_at
			FROM messages
			ORDER BY created_at DESC
			LIMIT $1
		) recent
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[chat.Message])
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return msgs, nil
}
