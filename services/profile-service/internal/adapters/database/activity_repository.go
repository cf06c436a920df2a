package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/accio/services/profile-service/internal/domain/profiles"
)

var counterColumns = map[profiles.Counter]string{
	profiles.CounterItemsUploaded:  "items_uploaded",
	profiles.CounterItemsClaimed:   "items_claimed",
	profiles.CounterItemsReturned:  "items_returned",
	profiles.CounterItemsRecovered: "items_recovered",
}

type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// IncrementCounter increments one of the user's counters atomically
func (r *ActivityRepository) IncrementCounter(ctx context.Context, tx pgx.Tx, userID string, counter profiles.Counter, at time.Time) error {
	column, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("unknown counter %q", counter)
	}

	query := fmt.Sprintf(`
		INSERT INTO user_activity (user_id, %[1]s, last_activity_at, created_at, updated_at)
		VALUES ($1, 1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			%[1]s = user_activity.%[1]s + 1,
			last_activity_at = GREATEST(user_activity.last_activity_at, EXCLUDED.last_activity_at),
			updated_at = NOW()
	`, column)

	if _, err := tx.Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	return nil
}

func (r *ActivityRepository) GetActivity(ctx context.Context, userID string) (*profiles.Activity, error) {
	query := `
		SELECT user_id, items_uploaded, items_claimed, items_returned, items_recovered, last_activity_at
		FROM user_activity
		WHERE user_id = $1
	`
	var activity profiles.Activity
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&activity.UserID,
		&activity.ItemsUploaded,
		&activity.ItemsClaimed,
		&activity.ItemsReturned,
		&activity.ItemsRecovered,
		&activity.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profiles.ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &activity, nil
}

func (r *ActivityRepository) MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	query := `INSERT INTO processed_events (event_id) VALUES ($1)`
	if _, err := tx.Exec(ctx, query, eventID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *ActivityRepository) IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE event_id = $1`
	var exists int
	err := tx.QueryRow(ctx, query, eventID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return true, nil
}
