package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/accio/services/item-service/internal/domain/bids"
)

// PostgresLedgerRepository implements bids.LedgerRepository using pgx
type PostgresLedgerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresLedgerRepository creates a new PostgreSQL ledger repository
func NewPostgresLedgerRepository(pool *pgxpool.Pool) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{pool: pool}
}

// UpsertEntry overwrites the item's ledger row with a server-assigned timestamp
func (r *PostgresLedgerRepository) UpsertEntry(ctx context.Context, tx pgx.Tx, entry *bids.LedgerEntry) error {
	query := `
		INSERT INTO bid_ledger (item_id, amount, bidder_name, user_id, recorded_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (item_id) DO UPDATE
		SET amount = EXCLUDED.amount,
			bidder_name = EXCLUDED.bidder_name,
			user_id = EXCLUDED.user_id,
			recorded_at = EXCLUDED.recorded_at
		RETURNING recorded_at
	`
	err := tx.QueryRow(ctx, query, entry.ItemID, entry.Amount, entry.BidderName, entry.UserID).Scan(&entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to upsert ledger entry: %w", err)
	}
	return nil
}

// ClearEntry deletes the item's ledger row within a transaction
func (r *PostgresLedgerRepository) ClearEntry(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error {
	if _, err := tx.Exec(ctx, "DELETE FROM bid_ledger WHERE item_id = $1", itemID); err != nil {
		return fmt.Errorf("failed to clear ledger entry: %w", err)
	}
	return nil
}

// GetEntry retrieves the ledger row of an item
func (r *PostgresLedgerRepository) GetEntry(ctx context.Context, itemID uuid.UUID) (*bids.LedgerEntry, error) {
	query := `
		SELECT item_id, amount, bidder_name, user_id, recorded_at
		FROM bid_ledger
		WHERE item_id = $1
	`
	var entry bids.LedgerEntry
	err := r.pool.QueryRow(ctx, query, itemID).Scan(
		&entry.ItemID,
		&entry.Amount,
		&entry.BidderName,
		&entry.UserID,
		&entry.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bids.ErrNoLedgerEntry
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return &entry, nil
}
