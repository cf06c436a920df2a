package bids

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/accio/pkg/events"
	"github.com/floroz/accio/services/item-service/internal/domain/items"
)

// memStore is an in-memory item table and ledger with row locks held until
// the owning transaction ends, mirroring SELECT ... FOR UPDATE. writes counts
// committed transactions that changed something.
type memStore struct {
	mu     sync.Mutex
	items  map[uuid.UUID]*items.Item
	ledger map[uuid.UUID]*LedgerEntry
	locks  map[uuid.UUID]*sync.Mutex
	writes int

	ledgerErr error
}

func newMemStore() *memStore {
	return &memStore{
		items:  make(map[uuid.UUID]*items.Item),
		ledger: make(map[uuid.UUID]*LedgerEntry),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *memStore) addAuction(basePrice float64, active bool) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.items[id] = &items.Item{
		ID:               id,
		Status:           items.ItemStatusApproved,
		ClaimState:       items.ClaimStateUnclaimed,
		IsAuctionActive:  active,
		AuctionBasePrice: basePrice,
	}
	return id
}

func (s *memStore) item(id uuid.UUID) *items.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil
	}
	cp := *it
	return &cp
}

func (s *memStore) mutate(id uuid.UUID, fn func(*items.Item)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.items[id])
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memStore) ledgerEntry(id uuid.UUID) *LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger[id]
}

func (s *memStore) rowLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *memStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return &memTx{store: s}, nil
}

func (s *memStore) GetItemByID(ctx context.Context, itemID uuid.UUID) (*items.Item, error) {
	it := s.item(itemID)
	if it == nil {
		return nil, items.ErrItemNotFound
	}
	return it, nil
}

func (s *memStore) GetItemByIDForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*items.Item, error) {
	mtx := tx.(*memTx)
	lock := s.rowLock(itemID)
	lock.Lock()
	mtx.held = append(mtx.held, lock)
	return s.GetItemByID(ctx, itemID)
}

func (s *memStore) UpdateCurrentBid(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount float64, bidderName string) error {
	mtx := tx.(*memTx)
	mtx.pending = append(mtx.pending, func() {
		it := s.items[itemID]
		it.CurrentBid = &amount
		it.CurrentBidderName = bidderName
		it.UpdatedAt = time.Now()
	})
	return nil
}

func (s *memStore) UpsertEntry(ctx context.Context, tx pgx.Tx, entry *LedgerEntry) error {
	if s.ledgerErr != nil {
		return s.ledgerErr
	}
	mtx := tx.(*memTx)
	entry.Timestamp = time.Now().UTC()
	cp := *entry
	mtx.pending = append(mtx.pending, func() {
		s.ledger[cp.ItemID] = &cp
	})
	return nil
}

func (s *memStore) ClearEntry(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error {
	mtx := tx.(*memTx)
	mtx.pending = append(mtx.pending, func() {
		delete(s.ledger, itemID)
	})
	return nil
}

func (s *memStore) UpdateState(ctx context.Context, tx pgx.Tx, item *items.Item) error {
	mtx := tx.(*memTx)
	cp := *item
	mtx.pending = append(mtx.pending, func() {
		cp.UpdatedAt = time.Now()
		s.items[cp.ID] = &cp
	})
	return nil
}

func (s *memStore) CreateItem(ctx context.Context, tx pgx.Tx, item *items.Item) error {
	return errors.New("memStore: CreateItem not supported")
}

func (s *memStore) ListItems(ctx context.Context, query items.ListItemsQuery) ([]*items.Item, error) {
	return nil, errors.New("memStore: ListItems not supported")
}

func (s *memStore) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	return nil
}

func (s *memStore) GetEntry(ctx context.Context, itemID uuid.UUID) (*LedgerEntry, error) {
	e := s.ledgerEntry(itemID)
	if e == nil {
		return nil, ErrNoLedgerEntry
	}
	cp := *e
	return &cp, nil
}

// memTx buffers writes until Commit
type memTx struct {
	pgx.Tx
	store   *memStore
	held    []*sync.Mutex
	pending []func()
	done    bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	for _, apply := range t.pending {
		apply()
	}
	if len(t.pending) > 0 {
		t.store.writes++
	}
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memTx) release() {
	t.done = true
	for _, l := range t.held {
		l.Unlock()
	}
	t.held = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
