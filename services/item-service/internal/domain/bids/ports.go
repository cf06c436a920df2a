package bids

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/accio/services/item-service/internal/domain/items"
)

// ItemRepository is the part of item persistence bidding needs
type ItemRepository interface {
	// GetItemByID retrieves an item by its ID
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*items.Item, error)

	// GetItemByIDForUpdate retrieves an item by its ID and locks it for update
	// This serializes concurrent bidders on the same item
	// Must be called within a transaction
	GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*items.Item, error)

	// UpdateCurrentBid sets the item's current bid and bidder within a transaction
	UpdateCurrentBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount float64, bidderName string) error
}

// LedgerRepository defines the interface for the per-item bid ledger
type LedgerRepository interface {
	// UpsertEntry overwrites the item's ledger row and stamps entry.Timestamp
	// with the database time
	UpsertEntry(ctx context.Context, tx pgx.Tx, entry *LedgerEntry) error

	// GetEntry returns ErrNoLedgerEntry when the item has never been bid on
	GetEntry(ctx context.Context, itemID uuid.UUID) (*LedgerEntry, error)
}
