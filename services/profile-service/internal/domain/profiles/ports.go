package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository interface {
	// IncrementCounter adds one to counter for userID (Upsert)
	IncrementCounter(ctx context.Context, tx pgx.Tx, userID string, counter Counter, at time.Time) error

	// GetActivity returns ErrActivityNotFound for users without recorded activity
	GetActivity(ctx context.Context, userID string) (*Activity, error)

	// MarkEventProcessed marks an event as processed to prevent duplicates
	MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error

	// IsEventProcessed checks if an event has already been processed
	IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error)
}

type ProfileRepository interface {
	// GetProfile returns ErrProfileNotFound for users who never saved a profile
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// MergeProfile applies update atomically, creating the profile if needed
	MergeProfile(ctx context.Context, update ProfileUpdate) (*Profile, error)
}

// PhotoStore keeps profile pictures in object storage
type PhotoStore interface {
	// Put stores data under key and returns its public URL
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
