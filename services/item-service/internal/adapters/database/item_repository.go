package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/floroz/accio/pkg/database"
	"github.com/floroz/accio/services/item-service/internal/domain/items"
)

const itemColumns = `
	id, uploader_id, name, category, color, brand, location, found_date, photo_url,
	status::text, claim_state::text, COALESCE(claimant_id, ''), claimed_at, claim_approved_at,
	is_auction_active, auction_base_price, current_bid, COALESCE(current_bidder_name, ''),
	created_at, updated_at`

// PostgresItemRepository implements items.Repository and bids.ItemRepository using pgx
type PostgresItemRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresItemRepository creates a new PostgreSQL item repository
func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// CreateItem inserts a new item within a transaction
func (r *PostgresItemRepository) CreateItem(ctx context.Context, tx pgx.Tx, item *items.Item) error {
	query := `
		INSERT INTO items (
			id, uploader_id, name, category, color, brand, location, found_date, photo_url,
			status, claim_state, is_auction_active, auction_base_price, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::item_status, $11::claim_state, $12, $13, $14, $15)
	`
	_, err := tx.Exec(ctx, query,
		item.ID,
		item.UploaderID,
		item.Name,
		item.Category,
		item.Color,
		item.Brand,
		item.Location,
		item.FoundDate,
		item.PhotoURL,
		string(item.Status),
		string(item.ClaimState),
		item.IsAuctionActive,
		item.AuctionBasePrice,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// GetItemByID retrieves an item by its ID (non-transactional read)
func (r *PostgresItemRepository) GetItemByID(ctx context.Context, itemID uuid.UUID) (*items.Item, error) {
	return r.getItemByID(ctx, r.pool, itemID, false)
}

// GetItemByIDForUpdate retrieves an item by its ID and locks it for update (transactional)
func (r *PostgresItemRepository) GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*items.Item, error) {
	return r.getItemByID(ctx, tx, itemID, true)
}

func (r *PostgresItemRepository) getItemByID(ctx context.Context, db pkgdb.DBTX, itemID uuid.UUID, forUpdate bool) (*items.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	item, err := scanItem(db.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, items.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// UpdateState writes the moderation, claim and auction fields
func (r *PostgresItemRepository) UpdateState(ctx context.Context, tx pgx.Tx, item *items.Item) error {
	query := `
		UPDATE items
		SET status = $1::item_status,
			claim_state = $2::claim_state,
			claimant_id = NULLIF($3, ''),
			claimed_at = $4,
			claim_approved_at = $5,
			is_auction_active = $6,
			auction_base_price = $7,
			current_bid = $8,
			current_bidder_name = NULLIF($9, ''),
			updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`
	err := tx.QueryRow(ctx, query,
		string(item.Status),
		string(item.ClaimState),
		item.ClaimantID,
		item.ClaimedAt,
		item.ClaimApprovedAt,
		item.IsAuctionActive,
		item.AuctionBasePrice,
		item.CurrentBid,
		item.CurrentBidderName,
		item.ID,
	).Scan(&item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return items.ErrItemNotFound
		}
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

// UpdateCurrentBid sets the current bid for an item within a transaction
func (r *PostgresItemRepository) UpdateCurrentBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount float64, bidderName string) error {
	query := `
		UPDATE items
		SET current_bid = $1, current_bidder_name = $2, updated_at = NOW()
		WHERE id = $3
	`
	result, err := tx.Exec(ctx, query, amount, bidderName, itemID)
	if err != nil {
		return fmt.Errorf("failed to update current bid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return items.ErrItemNotFound
	}

	return nil
}

// ListItems retrieves items matching the query, newest first
func (r *PostgresItemRepository) ListItems(ctx context.Context, q items.ListItemsQuery) ([]*items.Item, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.Status != "" {
		add("status = $%d::item_status", string(q.Status))
	}
	if q.ClaimState != "" {
		add("claim_state = $%d::claim_state", string(q.ClaimState))
	}
	if q.Category != "" {
		add("category = $%d", q.Category)
	}
	if q.Color != "" {
		add("color = $%d", q.Color)
	}
	if q.Location != "" {
		add("location ILIKE '%%' || $%d::text || '%%'", q.Location)
	}
	if q.Search != "" {
		args = append(args, q.Search)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE '%%' || $%d::text || '%%' OR brand ILIKE '%%' || $%d::text || '%%')", n, n))
	}
	if q.AuctionActive != nil {
		add("is_auction_active = $%d", *q.AuctionActive)
	}

	query := "SELECT " + itemColumns + " FROM items"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, q.Limit, q.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	result := make([]*items.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return result, nil
}

func scanItem(row pgx.Row) (*items.Item, error) {
	var (
		item       items.Item
		status     string
		claimState string
	)
	err := row.Scan(
		&item.ID,
		&item.UploaderID,
		&item.Name,
		&item.Category,
		&item.Color,
		&item.Brand,
		&item.Location,
		&item.FoundDate,
		&item.PhotoURL,
		&status,
		&claimState,
		&item.ClaimantID,
		&item.ClaimedAt,
		&item.ClaimApprovedAt,
		&item.IsAuctionActive,
		&item.AuctionBasePrice,
		&item.CurrentBid,
		&item.CurrentBidderName,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Status = items.ItemStatus(status)
	item.ClaimState = items.ClaimState(claimState)
	return &item, nil
}
