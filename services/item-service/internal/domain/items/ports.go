package items

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/accio/pkg/events"
)

// Repository defines the interface for item persistence
type Repository interface {
	// CreateItem inserts a new item within a transaction
	CreateItem(ctx context.Context, tx pgx.Tx, item *Item) error

	// GetItemByID retrieves an item by its ID
	// Returns ErrItemNotFound when the row does not exist
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*Item, error)

	// GetItemByIDForUpdate retrieves an item and locks its row until the transaction ends
	GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*Item, error)

	// UpdateState writes the moderation, claim and auction fields of item and
	// refreshes item.UpdatedAt
	UpdateState(ctx context.Context, tx pgx.Tx, item *Item) error

	// ListItems returns items matching the query, newest first
	ListItems(ctx context.Context, query ListItemsQuery) ([]*Item, error)
}

// OutboxRepository stores events to be relayed after commit
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// BidLedger is the per-item record of the latest committed bid
type BidLedger interface {
	// ClearEntry removes the item's ledger row, if any, within a transaction
	ClearEntry(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error
}

// PhotoStore keeps item photos in object storage
type PhotoStore interface {
	// Put stores data under key and returns its public URL
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
