package profiles

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngPhoto = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

func (m *MockProfileRepository) MergeProfile(ctx context.Context, update ProfileUpdate) (*Profile, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

type MockPhotoStore struct {
	mock.Mock
}

func (m *MockPhotoStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, key, contentType, data)
	return args.String(0), args.Error(1)
}

func newProfileService() (*ProfileService, *MockProfileRepository, *MockPhotoStore) {
	repo := new(MockProfileRepository)
	photos := new(MockPhotoStore)
	return NewProfileService(repo, photos, slog.New(slog.NewTextHandler(io.Discard, nil))), repo, photos
}

func TestProfileService_GetProfile(t *testing.T) {
	t.Run("stored profile", func(t *testing.T) {
		svc, repo, _ := newProfileService()
		want := &Profile{UserID: "u1", FullName: "Luna Lovegood", College: "Ravenclaw"}
		repo.On("GetProfile", mock.Anything, "u1").Return(want, nil)

		got, err := svc.GetProfile(context.Background(), "u1", "luna@example.com")

		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("new user gets an empty profile with the token email", func(t *testing.T) {
		svc, repo, _ := newProfileService()
		repo.On("GetProfile", mock.Anything, "u2").Return(nil, ErrProfileNotFound)

		got, err := svc.GetProfile(context.Background(), "u2", "neville@example.com")

		require.NoError(t, err)
		assert.Equal(t, &Profile{UserID: "u2", Email: "neville@example.com"}, got)
	})

	t.Run("backend failure", func(t *testing.T) {
		svc, repo, _ := newProfileService()
		repo.On("GetProfile", mock.Anything, "u3").Return(nil, errors.New("db down"))

		_, err := svc.GetProfile(context.Background(), "u3", "")

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrProfileNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		svc, _, _ := newProfileService()

		_, err := svc.GetProfile(context.Background(), "", "")

		assert.ErrorIs(t, err, ErrMissingUserID)
	})
}

func TestProfileService_UpdateProfile(t *testing.T) {
	t.Run("trims and merges the given fields", func(t *testing.T) {
		svc, repo, _ := newProfileService()
		saved := &Profile{UserID: "u1", FullName: "Ginny Weasley", Email: "ginny@example.com"}
		repo.On("MergeProfile", mock.Anything, mock.MatchedBy(func(u ProfileUpdate) bool {
			return u.UserID == "u1" &&
				u.Email == "ginny@example.com" &&
				u.FullName != nil && *u.FullName == "Ginny Weasley" &&
				u.College == nil &&
				u.PhotoURL == nil
		})).Return(saved, nil)

		name := "  Ginny Weasley "
		got, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{
			UserID:   "u1",
			Email:    "ginny@example.com",
			FullName: &name,
		})

		require.NoError(t, err)
		assert.Equal(t, saved, got)
		repo.AssertExpectations(t)
	})

	t.Run("rejects overlong fields", func(t *testing.T) {
		svc, repo, _ := newProfileService()
		college := strings.Repeat("x", 101)

		_, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{UserID: "u1", College: &college})

		require.ErrorIs(t, err, ErrInvalidProfile)
		assert.Contains(t, err.Error(), "college")
		repo.AssertNotCalled(t, "MergeProfile", mock.Anything, mock.Anything)
	})

	t.Run("requires the caller", func(t *testing.T) {
		svc, repo, _ := newProfileService()
		name := "x"

		_, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{FullName: &name})

		assert.ErrorIs(t, err, ErrMissingUserID)
		repo.AssertNotCalled(t, "MergeProfile", mock.Anything, mock.Anything)
	})
}

func TestProfileService_UpdatePhoto(t *testing.T) {
	t.Run("stores the picture and links it", func(t *testing.T) {
		svc, repo, photos := newProfileService()
		photos.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "profiles/u1/") && strings.HasSuffix(key, ".png")
		}), "image/png", pngPhoto).Return("https://cdn.example/profiles/u1/a.png", nil)
		repo.On("MergeProfile", mock.Anything, mock.MatchedBy(func(u ProfileUpdate) bool {
			return u.UserID == "u1" && u.PhotoURL != nil && *u.PhotoURL == "https://cdn.example/profiles/u1/a.png" &&
				u.FullName == nil && u.College == nil
		})).Return(&Profile{UserID: "u1", PhotoURL: "https://cdn.example/profiles/u1/a.png"}, nil)

		got, err := svc.UpdatePhoto(context.Background(), UpdatePhotoCommand{UserID: "u1", Photo: pngPhoto})

		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/profiles/u1/a.png", got.PhotoURL)
		repo.AssertExpectations(t)
		photos.AssertExpectations(t)
	})

	t.Run("rejects non images", func(t *testing.T) {
		svc, repo, photos := newProfileService()

		_, err := svc.UpdatePhoto(context.Background(), UpdatePhotoCommand{UserID: "u1", Photo: []byte("%PDF-1.4")})

		assert.ErrorIs(t, err, ErrUnsupportedPhoto)
		photos.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "MergeProfile", mock.Anything, mock.Anything)
	})

	t.Run("missing photo", func(t *testing.T) {
		svc, _, _ := newProfileService()

		_, err := svc.UpdatePhoto(context.Background(), UpdatePhotoCommand{UserID: "u1"})

		assert.ErrorIs(t, err, ErrMissingPhoto)
	})

	t.Run("storage failure leaves the profile alone", func(t *testing.T) {
		svc, repo, photos := newProfileService()
		photos.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket gone"))

		_, err := svc.UpdatePhoto(context.Background(), UpdatePhotoCommand{UserID: "u1", Photo: pngPhoto})

		require.Error(t, err)
		repo.AssertNotCalled(t, "MergeProfile", mock.Anything, mock.Anything)
	})
}
