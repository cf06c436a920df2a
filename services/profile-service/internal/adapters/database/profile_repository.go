package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/accio/services/profile-service/internal/domain/profiles"
)

const profileColumns = "user_id, email, full_name, college, photo_url, updated_at"

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*profiles.Profile, error) {
	query := "SELECT " + profileColumns + " FROM user_profiles WHERE user_id = $1"
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profiles.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// MergeProfile upserts the profile in one statement so concurrent partial
// updates do not overwrite each other's fields
func (r *ProfileRepository) MergeProfile(ctx context.Context, u profiles.ProfileUpdate) (*profiles.Profile, error) {
	query := `
		INSERT INTO user_profiles (user_id, email, full_name, college, photo_url, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3::text, ''), COALESCE($4::text, ''), COALESCE($5::text, ''), NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), user_profiles.email),
			full_name = COALESCE($3::text, user_profiles.full_name),
			college = COALESCE($4::text, user_profiles.college),
			photo_url = COALESCE($5::text, user_profiles.photo_url),
			updated_at = NOW()
		RETURNING ` + profileColumns

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, u.UserID, u.Email, u.FullName, u.College, u.PhotoURL))
	if err != nil {
		return nil, fmt.Errorf("failed to merge profile: %w", err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (*profiles.Profile, error) {
	var p profiles.Profile
	err := row.Scan(&p.UserID, &p.Email, &p.FullName, &p.College, &p.PhotoURL, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
