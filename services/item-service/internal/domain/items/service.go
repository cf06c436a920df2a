package items

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/accio/pkg/database"
	"github.com/floroz/accio/pkg/events"
	reqvalidator "github.com/floroz/accio/pkg/validator"
)

// Service errors
var (
	ErrItemNotFound        = errors.New("item not found")
	ErrMissingFields       = errors.New("all fields are required")
	ErrInvalidFoundDate    = errors.New("found date must be in YYYY-MM-DD format")
	ErrInvalidCategory     = errors.New("unknown category")
	ErrInvalidColor        = errors.New("unknown color")
	ErrUnsupportedPhoto    = errors.New("photo must be a JPEG, PNG, WebP or HEIC image")
	ErrInvalidTransition   = errors.New("item is not in a state that allows this action")
	ErrNotClaimable        = errors.New("item cannot be claimed")
	ErrAuctionNotStartable = errors.New("auction cannot be started for this item")
	ErrAuctionNotRunning   = errors.New("auction is not active")
	ErrInvalidAuctionPrice = errors.New("auction base price must be a positive number")
	ErrSubscriptionClosed  = errors.New("subscription closed")
)

var allowedPhotoTypes = []string{"image/jpeg", "image/png", "image/webp", "image/heic"}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// UploadItemCommand represents a user reporting a found item
type UploadItemCommand struct {
	UploaderID string `json:"uploaderId" validate:"required"`
	Name       string `json:"itemName" validate:"required"`
	Category   string `json:"category" validate:"required"`
	Color      string `json:"color" validate:"required"`
	Brand      string `json:"brandName" validate:"required"`
	Location   string `json:"location" validate:"required"`
	FoundDate  string `json:"date" validate:"required"`
	Photo      []byte `json:"photo"`
}

// ListItemsQuery filters and paginates items. Zero values mean "any".
type ListItemsQuery struct {
	Status        ItemStatus
	ClaimState    ClaimState
	Category      string
	Color         string
	Location      string
	Search        string
	AuctionActive *bool
	Limit         int
	Offset        int
}

// ReviewItemCommand approves or rejects a pending upload
type ReviewItemCommand struct {
	ItemID     uuid.UUID
	ReviewerID string
	Approve    bool
}

// ClaimItemCommand represents an owner claiming their item
type ClaimItemCommand struct {
	ItemID     uuid.UUID
	ClaimantID string
}

// ApproveClaimCommand confirms a pending claim
type ApproveClaimCommand struct {
	ItemID  uuid.UUID
	AdminID string
}

// StartAuctionCommand opens bidding on an item. A nil BasePrice keeps the
// item's current base price.
type StartAuctionCommand struct {
	ItemID    uuid.UUID
	AdminID   string
	BasePrice *float64
}

// CloseAuctionCommand ends bidding on an item
type CloseAuctionCommand struct {
	ItemID  uuid.UUID
	AdminID string
}

// Service implements the item lifecycle
type Service struct {
	txManager     database.TransactionManager
	repo          Repository
	outboxRepo    OutboxRepository
	ledger        BidLedger
	photos        PhotoStore
	watchInterval time.Duration
	logger        *slog.Logger
}

// NewService creates a new item service
func NewService(
	txManager database.TransactionManager,
	repo Repository,
	outboxRepo OutboxRepository,
	ledger BidLedger,
	photos PhotoStore,
	watchInterval time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		txManager:     txManager,
		repo:          repo,
		outboxRepo:    outboxRepo,
		ledger:        ledger,
		photos:        photos,
		watchInterval: watchInterval,
		logger:        logger,
	}
}

// UploadItem validates the report, stores the photo and records a pending item
func (s *Service) UploadItem(ctx context.Context, cmd UploadItemCommand) (*Item, error) {
	missing, err := reqvalidator.MissingFields(cmd)
	if err != nil {
		return nil, err
	}
	if len(cmd.Photo) == 0 {
		missing = append(missing, "photo")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	foundDate, err := time.Parse(FoundDateLayout, strings.TrimSpace(cmd.FoundDate))
	if err != nil {
		return nil, ErrInvalidFoundDate
	}
	if !isChoice(cmd.Category, Categories) {
		return nil, ErrInvalidCategory
	}
	if !isChoice(cmd.Color, Colors) {
		return nil, ErrInvalidColor
	}

	mtype := mimetype.Detect(cmd.Photo)
	if !mimetype.EqualsAny(mtype.String(), allowedPhotoTypes...) {
		return nil, ErrUnsupportedPhoto
	}

	now := time.Now().UTC()
	item := &Item{
		ID:               uuid.New(),
		UploaderID:       cmd.UploaderID,
		Name:             strings.TrimSpace(cmd.Name),
		Category:         cmd.Category,
		Color:            cmd.Color,
		Brand:            strings.TrimSpace(cmd.Brand),
		Location:         strings.TrimSpace(cmd.Location),
		FoundDate:        foundDate,
		Status:           ItemStatusPending,
		ClaimState:       ClaimStateUnclaimed,
		IsAuctionActive:  false,
		AuctionBasePrice: DefaultAuctionBasePrice,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	key := fmt.Sprintf("items/%s%s", item.ID, mtype.Extension())
	item.PhotoURL, err = s.photos.Put(ctx, key, mtype.String(), cmd.Photo)
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.repo.CreateItem(ctx, tx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	event := events.NewItemEvent(events.EventTypeItemUploaded, item.ID, cmd.UploaderID, item.UploaderID)
	if err := s.saveEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return item, nil
}

// GetItem retrieves an item by ID
func (s *Service) GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems browses items with filters
func (s *Service) ListItems(ctx context.Context, query ListItemsQuery) ([]*Item, error) {
	if query.Limit <= 0 {
		query.Limit = defaultListLimit
	}
	if query.Limit > maxListLimit {
		query.Limit = maxListLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	items, err := s.repo.ListItems(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// ListPendingItems lists uploads awaiting admin review
func (s *Service) ListPendingItems(ctx context.Context, limit, offset int) ([]*Item, error) {
	return s.ListItems(ctx, ListItemsQuery{Status: ItemStatusPending, Limit: limit, Offset: offset})
}

// ListPendingClaims lists claims awaiting admin approval
func (s *Service) ListPendingClaims(ctx context.Context, limit, offset int) ([]*Item, error) {
	return s.ListItems(ctx, ListItemsQuery{ClaimState: ClaimStateClaimed, Limit: limit, Offset: offset})
}

// ReviewItem moves a pending item to approved or rejected
func (s *Service) ReviewItem(ctx context.Context, cmd ReviewItemCommand) (*Item, error) {
	eventType := events.EventTypeItemRejected
	if cmd.Approve {
		eventType = events.EventTypeItemApproved
	}

	return s.transition(ctx, cmd.ItemID, cmd.ReviewerID, eventType, func(item *Item) error {
		if !item.CanBeReviewed() {
			return ErrInvalidTransition
		}
		if cmd.Approve {
			item.Status = ItemStatusApproved
		} else {
			item.Status = ItemStatusRejected
		}
		return nil
	})
}

// ClaimItem records the caller as the item's owner, pending admin approval
func (s *Service) ClaimItem(ctx context.Context, cmd ClaimItemCommand) (*Item, error) {
	return s.transition(ctx, cmd.ItemID, cmd.ClaimantID, events.EventTypeItemClaimed, func(item *Item) error {
		if !item.CanBeClaimed() {
			return ErrNotClaimable
		}
		now := time.Now().UTC()
		item.ClaimState = ClaimStateClaimed
		item.ClaimantID = cmd.ClaimantID
		item.ClaimedAt = &now
		return nil
	})
}

// ApproveClaim confirms a claim
func (s *Service) ApproveClaim(ctx context.Context, cmd ApproveClaimCommand) (*Item, error) {
	return s.transition(ctx, cmd.ItemID, cmd.AdminID, events.EventTypeItemClaimApproved, func(item *Item) error {
		if item.ClaimState != ClaimStateClaimed {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		item.ClaimState = ClaimStateClaimApproved
		item.ClaimApprovedAt = &now
		return nil
	})
}

// StartAuction opens bidding on an approved, unclaimed item. The previous
// auction's bid is dropped from both the item and the ledger.
func (s *Service) StartAuction(ctx context.Context, cmd StartAuctionCommand) (*Item, error) {
	if cmd.BasePrice != nil && !validPrice(*cmd.BasePrice) {
		return nil, ErrInvalidAuctionPrice
	}

	return s.transition(ctx, cmd.ItemID, cmd.AdminID, events.EventTypeAuctionStarted, func(item *Item) error {
		if !item.CanStartAuction() {
			return ErrAuctionNotStartable
		}
		if cmd.BasePrice != nil {
			item.AuctionBasePrice = *cmd.BasePrice
		}
		item.IsAuctionActive = true
		item.CurrentBid = nil
		item.CurrentBidderName = ""
		return nil
	}, s.clearLedger)
}

func (s *Service) clearLedger(ctx context.Context, tx pgx.Tx, item *Item) error {
	if err := s.ledger.ClearEntry(ctx, tx, item.ID); err != nil {
		return fmt.Errorf("failed to clear bid ledger: %w", err)
	}
	return nil
}

// CloseAuction ends bidding. The winning bid stays on the item.
func (s *Service) CloseAuction(ctx context.Context, cmd CloseAuctionCommand) (*Item, error) {
	return s.transition(ctx, cmd.ItemID, cmd.AdminID, events.EventTypeAuctionClosed, func(item *Item) error {
		if !item.IsAuctionActive {
			return ErrAuctionNotRunning
		}
		item.IsAuctionActive = false
		return nil
	})
}

// Subscribe starts a live snapshot stream of one item. The stream ends when
// ctx is done or Close is called.
func (s *Service) Subscribe(ctx context.Context, itemID uuid.UUID) *Subscription {
	return NewSubscription(ctx, s.repo, itemID, s.watchInterval, s.logger)
}

// txStep is extra work that must commit together with a transition
type txStep func(ctx context.Context, tx pgx.Tx, item *Item) error

// transition locks the item, applies a state change and records the event in
// the same transaction
func (s *Service) transition(ctx context.Context, itemID uuid.UUID, actorID, eventType string, apply func(*Item) error, steps ...txStep) (*Item, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := s.repo.GetItemByIDForUpdate(ctx, tx, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to lock item: %w", err)
	}

	if err := apply(item); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateState(ctx, tx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	for _, step := range steps {
		if err := step(ctx, tx, item); err != nil {
			return nil, err
		}
	}

	event := events.NewItemEvent(eventType, item.ID, actorID, item.UploaderID)
	event.ClaimantID = item.ClaimantID
	if err := s.saveEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Item transitioned", "item_id", item.ID, "event", eventType, "actor_id", actorID)
	return item, nil
}

func (s *Service) saveEvent(ctx context.Context, tx pgx.Tx, event *events.ItemEvent) error {
	outboxEvent, err := events.NewOutboxEvent(event)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
