package api

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/floroz/accio/pkg/auth"
	"github.com/floroz/accio/services/item-service/internal/domain/analysis"
	"github.com/floroz/accio/services/item-service/internal/domain/bids"
	"github.com/floroz/accio/services/item-service/internal/domain/chat"
	"github.com/floroz/accio/services/item-service/internal/domain/items"
)

type MockItemService struct {
	mock.Mock
	reader items.ItemReader
}

func (m *MockItemService) UploadItem(ctx context.Context, cmd items.UploadItemCommand) (*items.Item, error) {
	args := m.Called(ctx, cmd)
	return itemOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) GetItem(ctx context.Context, itemID uuid.UUID) (*items.Item, error) {
	args := m.Called(ctx, itemID)
	return itemOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) ListItems(ctx context.Context, query items.ListItemsQuery) ([]*items.Item, error) {
	args := m.Called(ctx, query)
	return itemsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) ListPendingItems(ctx context.Context, limit, offset int) ([]*items.Item, error) {
	args := m.Called(ctx, limit, offset)
	return itemsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) ListPendingClaims(ctx context.Context, limit, offset int) ([]*items.Item, error) {
	args := m.Called(ctx, limit, offset)
	return itemsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) ReviewItem(ctx context.Context, cmd items.ReviewItemCommand) (*items.Item, error) {
	args := m.Called(ctx, cmd)
	return itemOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) ClaimItem(ctx context.Context, cmd items.ClaimItemCommand) (*items.Item, error) {
	args := m.Called(ctx, cmd)
	return itemOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) ApproveClaim(ctx context.Context, cmd items.ApproveClaimCommand) (*items.Item, error) {
	args := m.Called(ctx, cmd)
	return itemOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) StartAuction(ctx context.Context, cmd items.StartAuctionCommand) (*items.Item, error) {
	args := m.Called(ctx, cmd)
	return itemOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) CloseAuction(ctx context.Context, cmd items.CloseAuctionCommand) (*items.Item, error) {
	args := m.Called(ctx, cmd)
	return itemOrNil(args.Get(0)), args.Error(1)
}

func (m *MockItemService) Subscribe(ctx context.Context, itemID uuid.UUID) *items.Subscription {
	return items.NewSubscription(ctx, m.reader, itemID, 0, discardLogger())
}

type MockBidPlacer struct {
	mock.Mock
}

func (m *MockBidPlacer) PlaceBid(ctx context.Context, cmd bids.PlaceBidCommand) (*items.Item, error) {
	args := m.Called(ctx, cmd)
	return itemOrNil(args.Get(0)), args.Error(1)
}

type MockBidCommitter struct {
	mock.Mock
}

func (m *MockBidCommitter) Commit(ctx context.Context, cmd bids.CommitBidCommand) (*bids.LedgerEntry, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bids.LedgerEntry), args.Error(1)
}

func (m *MockBidCommitter) GetLedgerEntry(ctx context.Context, itemID uuid.UUID) (*bids.LedgerEntry, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bids.LedgerEntry), args.Error(1)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, image []byte) (*analysis.Result, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.Result), args.Error(1)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (*chat.Message, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Message), args.Error(1)
}

func (m *MockChatService) ListMessages(ctx context.Context, limit int) ([]*chat.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*chat.Message), args.Error(1)
}

func (m *MockChatService) Subscribe(ctx context.Context) (<-chan *chat.Message, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *chat.Message), args.Error(1)
}

// staticTokens accepts a fixed set of bearer tokens
type staticTokens map[string]auth.Identity

func (s staticTokens) ValidateToken(token string) (*auth.Claims, error) {
	id, ok := s[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.UserID},
		Name:             id.DisplayName,
		Email:            id.Email,
		Admin:            id.Admin,
	}, nil
}

// missingReader reports every item as deleted
type missingReader struct{}

func (missingReader) GetItemByID(context.Context, uuid.UUID) (*items.Item, error) {
	return nil, items.ErrItemNotFound
}

func itemOrNil(v any) *items.Item {
	if v == nil {
		return nil
	}
	return v.(*items.Item)
}

func itemsOrNil(v any) []*items.Item {
	if v == nil {
		return nil
	}
	return v.([]*items.Item)
}
