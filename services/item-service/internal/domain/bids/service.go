package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/accio/pkg/database"
	reqvalidator "github.com/floroz/accio/pkg/validator"
	"github.com/floroz/accio/services/item-service/internal/domain/items"
)

// Validator raises an item's current bid only if the bid is still the
// strict high bid when the item row is locked. The ledger row is rewritten in
// the same transaction, so it always matches the item.
type Validator struct {
	txManager  database.TransactionManager
	itemRepo   ItemRepository
	ledgerRepo LedgerRepository
}

// NewValidator creates a new bid validator
func NewValidator(txManager database.TransactionManager, itemRepo ItemRepository, ledgerRepo LedgerRepository) *Validator {
	return &Validator{
		txManager:  txManager,
		itemRepo:   itemRepo,
		ledgerRepo: ledgerRepo,
	}
}

// PlaceBid runs the pre-checks, then re-validates and writes in one transaction
func (v *Validator) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*items.Item, error) {
	item, _, err := v.place(ctx, cmd)
	return item, err
}

func (v *Validator) place(ctx context.Context, cmd PlaceBidCommand) (*items.Item, *LedgerEntry, error) {
	if err := v.precheck(ctx, cmd); err != nil {
		return nil, nil, err
	}

	tx, err := v.txManager.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // Rollback if commit is not called
	}()

	item, err := v.placeBidTx(ctx, tx, cmd)
	if err != nil {
		return nil, nil, err
	}

	entry := &LedgerEntry{
		ItemID:     item.ID,
		Amount:     cmd.Amount,
		BidderName: item.CurrentBidderName,
		UserID:     cmd.UserID,
	}
	if err := v.ledgerRepo.UpsertEntry(ctx, tx, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to record bid: %w", err)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return item, entry, nil
}

// precheck rejects bids that cannot win before any transaction is opened
func (v *Validator) precheck(ctx context.Context, cmd PlaceBidCommand) error {
	if strings.TrimSpace(cmd.BidderName) == "" {
		return ErrMissingBidder
	}
	if err := validateAmount(cmd.Amount); err != nil {
		return err
	}

	if cmd.LastKnownBid != nil {
		return validateBidAmount(cmd.Amount, *cmd.LastKnownBid)
	}

	item, err := v.itemRepo.GetItemByID(ctx, cmd.ItemID)
	if err != nil {
		if errors.Is(err, items.ErrItemNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to read item: %w", err)
	}
	if !item.IsAuctionActive {
		return ErrAuctionNotActive
	}
	return validateBidAmount(cmd.Amount, item.HighBid())
}

// placeBidTx locks the item, re-validates against its live state and raises
// the current bid. The caller owns the transaction.
func (v *Validator) placeBidTx(ctx context.Context, tx pgx.Tx, cmd PlaceBidCommand) (*items.Item, error) {
	item, err := v.itemRepo.GetItemByIDForUpdate(ctx, tx, cmd.ItemID)
	if err != nil {
		if errors.Is(err, items.ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to lock item: %w", err)
	}

	if !item.IsAuctionActive {
		return nil, ErrAuctionNotActive
	}
	if cmd.Amount <= item.HighBid() {
		return nil, ErrBidStale
	}

	bidderName := strings.TrimSpace(cmd.BidderName)
	if err := v.itemRepo.UpdateCurrentBid(ctx, tx, item.ID, cmd.Amount, bidderName); err != nil {
		return nil, fmt.Errorf("failed to update current bid: %w", err)
	}

	amount := cmd.Amount
	item.CurrentBid = &amount
	item.CurrentBidderName = bidderName
	return item, nil
}

// CommitService handles bids arriving over HTTP. It checks the required
// fields and places the bid through the Validator.
type CommitService struct {
	validator  *Validator
	ledgerRepo LedgerRepository
	logger     *slog.Logger
}

// NewCommitService creates a new commit service
func NewCommitService(validator *Validator, ledgerRepo LedgerRepository, logger *slog.Logger) *CommitService {
	return &CommitService{
		validator:  validator,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// Commit places the bid and returns the ledger row keyed by item id
func (s *CommitService) Commit(ctx context.Context, cmd CommitBidCommand) (*LedgerEntry, error) {
	missing, err := reqvalidator.MissingFields(cmd)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	itemID, err := uuid.Parse(cmd.ItemID)
	if err != nil {
		return nil, ErrInvalidItemID
	}

	item, entry, err := s.validator.place(ctx, PlaceBidCommand{
		ItemID:     itemID,
		Amount:     cmd.BidAmount,
		BidderName: cmd.BidderName,
		UserID:     cmd.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Bid committed", "item_id", item.ID, "amount", entry.Amount, "user_id", entry.UserID)
	return entry, nil
}

// GetLedgerEntry returns the latest committed bid of an item
func (s *CommitService) GetLedgerEntry(ctx context.Context, itemID uuid.UUID) (*LedgerEntry, error) {
	entry, err := s.ledgerRepo.GetEntry(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNoLedgerEntry) {
			return nil, ErrNoLedgerEntry
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return entry, nil
}

// IsUserError reports whether err is a validation or conflict error whose
// message may be shown to the bidder
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrMalformedAmount, ErrInvalidBidAmount, ErrBidTooLow, ErrMissingBidder,
		ErrMissingFields, ErrInvalidItemID, ErrItemNotFound, ErrAuctionNotActive, ErrBidStale,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
