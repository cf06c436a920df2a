package items

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ItemReader is the read side a Subscription polls
type ItemReader interface {
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*Item, error)
}

// Snapshot is one observed state of a watched item.
// Missing is set, and Item is nil, once the item no longer exists.
type Snapshot struct {
	Item       *Item
	Missing    bool
	ObservedAt time.Time
}

// Subscription is a cancellable, restartable stream of item snapshots.
// A snapshot is emitted on start and whenever the item changes.
type Subscription struct {
	reader   ItemReader
	itemID   uuid.UUID
	interval time.Duration
	logger   *slog.Logger

	out       chan Snapshot
	stopAfter func() bool

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	errMu sync.Mutex
	err   error
}

// NewSubscription starts polling reader for itemID every interval
func NewSubscription(ctx context.Context, reader ItemReader, itemID uuid.UUID, interval time.Duration, logger *slog.Logger) *Subscription {
	if interval <= 0 {
		interval = time.Second
	}
	s := &Subscription{
		reader:   reader,
		itemID:   itemID,
		interval: interval,
		logger:   logger,
		out:      make(chan Snapshot, 1),
		parent:   ctx,
	}
	s.mu.Lock()
	s.startLocked()
	s.stopAfter = context.AfterFunc(ctx, s.Close)
	s.mu.Unlock()
	return s
}

// Snapshots returns the stream. It is closed by Close and survives Restart.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.out
}

// Restart drops the current poller and starts a fresh one that re-emits the
// current state immediately
func (s *Subscription) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.parent.Err() != nil {
		return ErrSubscriptionClosed
	}
	s.stopLocked()
	s.setErr(nil)
	s.startLocked()
	return nil
}

// Close stops polling and closes the stream. It is safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.stopAfter != nil {
		s.stopAfter()
	}
	s.stopLocked()
	close(s.out)
}

// Err returns the last read failure, or nil after a successful read
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Subscription) startLocked() {
	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

func (s *Subscription) stopLocked() {
	s.cancel()
	<-s.done
}

func (s *Subscription) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

func (s *Subscription) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var (
		emitted     bool
		lastUpdated time.Time
		lastMissing bool
	)

	for {
		item, err := s.reader.GetItemByID(ctx, s.itemID)
		switch {
		case err == nil:
			s.setErr(nil)
			if !emitted || lastMissing || !item.UpdatedAt.Equal(lastUpdated) {
				if !s.emit(ctx, Snapshot{Item: item, ObservedAt: time.Now().UTC()}) {
					return
				}
				emitted, lastMissing, lastUpdated = true, false, item.UpdatedAt
			}
		case errors.Is(err, ErrItemNotFound):
			s.setErr(nil)
			if !emitted || !lastMissing {
				if !s.emit(ctx, Snapshot{Missing: true, ObservedAt: time.Now().UTC()}) {
					return
				}
				emitted, lastMissing = true, true
			}
		case ctx.Err() != nil:
			return
		default:
			s.setErr(err)
			s.logger.Warn("Item subscription read failed", "item_id", s.itemID, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Subscription) emit(ctx context.Context, snap Snapshot) bool {
	select {
	case s.out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}
