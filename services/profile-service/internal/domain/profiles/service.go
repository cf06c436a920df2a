package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/floroz/accio/pkg/database"
	"github.com/floroz/accio/pkg/events"
)

var (
	ErrActivityNotFound = errors.New("no activity recorded for user")
	ErrMissingUser      = errors.New("event has no user to credit")
	ErrMissingUserID    = errors.New("user id is required")
)

type Service struct {
	repo      Repository
	txManager database.TransactionManager
}

func NewService(repo Repository, txManager database.TransactionManager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

type credit struct {
	counter Counter
	userID  string
}

// creditsFor lists the counters an event increments and the users they
// credit. Events that do not affect profiles yield none.
func creditsFor(event ItemEvent) []credit {
	switch event.Type {
	case events.EventTypeItemUploaded:
		return []credit{{CounterItemsUploaded, event.OwnerID}}
	case events.EventTypeItemClaimed:
		return []credit{{CounterItemsClaimed, event.ActorID}}
	case events.EventTypeItemClaimApproved:
		return []credit{
			{CounterItemsReturned, event.OwnerID},
			{CounterItemsRecovered, event.ClaimantID},
		}
	}
	return nil
}

// ProcessItemEvent applies an item event to the users' counters exactly once.
// Credits without a user are skipped; an event left with none is rejected.
func (s *Service) ProcessItemEvent(ctx context.Context, event ItemEvent) error {
	all := creditsFor(event)
	if len(all) == 0 {
		return nil
	}
	var credits []credit
	for _, c := range all {
		if c.userID != "" {
			credits = append(credits, c)
		}
	}
	if len(credits) == 0 {
		return ErrMissingUser
	}

	// 1. Start Transaction
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// 2. Check Idempotency
	isProcessed, err := s.repo.IsEventProcessed(ctx, tx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check idempotency: %w", err)
	}
	if isProcessed {
		return nil
	}

	// 3. Update counters
	for _, c := range credits {
		if err := s.repo.IncrementCounter(ctx, tx, c.userID, c.counter, event.OccurredAt); err != nil {
			return fmt.Errorf("failed to increment %s: %w", c.counter, err)
		}
	}

	// 4. Mark Event as Processed
	if err := s.repo.MarkEventProcessed(ctx, tx, event.EventID); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetActivity returns the user's counters. Users with no activity get zeros.
func (s *Service) GetActivity(ctx context.Context, userID string) (*Activity, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	activity, err := s.repo.GetActivity(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrActivityNotFound) {
			return &Activity{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return activity, nil
}
