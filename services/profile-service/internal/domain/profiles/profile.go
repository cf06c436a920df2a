package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	reqvalidator "github.com/floroz/accio/pkg/validator"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrInvalidProfile   = errors.New("invalid profile")
	ErrMissingPhoto     = errors.New("photo is required")
	ErrUnsupportedPhoto = errors.New("photo must be a JPEG, PNG, WebP or HEIC image")
)

var allowedPhotoTypes = []string{"image/jpeg", "image/png", "image/webp", "image/heic"}

// UpdateProfileCommand edits the caller's profile. Nil fields are left as they are.
// UserID and Email come from the caller's token, never from the request body.
type UpdateProfileCommand struct {
	UserID   string  `json:"-" validate:"required"`
	Email    string  `json:"-"`
	FullName *string `json:"fullName" validate:"omitempty,max=100"`
	College  *string `json:"college" validate:"omitempty,max=100"`
}

// UpdatePhotoCommand replaces the caller's profile picture
type UpdatePhotoCommand struct {
	UserID string
	Email  string
	Photo  []byte
}

// ProfileService keeps the user profile documents
type ProfileService struct {
	repo   ProfileRepository
	photos PhotoStore
	logger *slog.Logger
}

func NewProfileService(repo ProfileRepository, photos PhotoStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		repo:   repo,
		photos: photos,
		logger: logger,
	}
}

// GetProfile returns the user's profile. A user who never saved one gets an
// empty profile carrying the email from their token.
func (s *ProfileService) GetProfile(ctx context.Context, userID, email string) (*Profile, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return &Profile{UserID: userID, Email: email}, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile merges the given fields into the stored profile
func (s *ProfileService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (*Profile, error) {
	cmd.FullName = trimmed(cmd.FullName)
	cmd.College = trimmed(cmd.College)

	missing, err := reqvalidator.MissingFields(cmd)
	if err != nil {
		var fe validator.FieldError
		if errors.As(err, &fe) {
			return nil, fmt.Errorf("%w: %s is too long", ErrInvalidProfile, fe.Field())
		}
		return nil, err
	}
	if len(missing) > 0 {
		return nil, ErrMissingUserID
	}

	profile, err := s.repo.MergeProfile(ctx, ProfileUpdate{
		UserID:   cmd.UserID,
		Email:    cmd.Email,
		FullName: cmd.FullName,
		College:  cmd.College,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.Info("Profile updated", "user_id", cmd.UserID)
	return profile, nil
}

// UpdatePhoto stores the picture in object storage and points the profile at it
func (s *ProfileService) UpdatePhoto(ctx context.Context, cmd UpdatePhotoCommand) (*Profile, error) {
	if cmd.UserID == "" {
		return nil, ErrMissingUserID
	}
	if len(cmd.Photo) == 0 {
		return nil, ErrMissingPhoto
	}

	mtype := mimetype.Detect(cmd.Photo)
	if !mimetype.EqualsAny(mtype.String(), allowedPhotoTypes...) {
		return nil, ErrUnsupportedPhoto
	}

	key := fmt.Sprintf("profiles/%s/%s%s", url.PathEscape(cmd.UserID), uuid.New(), mtype.Extension())
	photoURL, err := s.photos.Put(ctx, key, mtype.String(), cmd.Photo)
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	profile, err := s.repo.MergeProfile(ctx, ProfileUpdate{
		UserID:   cmd.UserID,
		Email:    cmd.Email,
		PhotoURL: &photoURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.Info("Profile photo updated", "user_id", cmd.UserID, "key", key)
	return profile, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
