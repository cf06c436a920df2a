package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/floroz/accio/pkg/auth"
	"github.com/floroz/accio/services/profile-service/internal/domain/profiles"
)

// selfAlias lets callers read their own profile without knowing their id
const selfAlias = "me"

const (
	maxPhotoSize   = 5 << 20
	maxUploadSize  = maxPhotoSize + 1<<20
	photoFormField = "photo"
)

// ActivityReader returns a user's activity counters
type ActivityReader interface {
	GetActivity(ctx context.Context, userID string) (*profiles.Activity, error)
}

// ProfileManager reads and edits profile documents
type ProfileManager interface {
	GetProfile(ctx context.Context, userID, email string) (*profiles.Profile, error)
	UpdateProfile(ctx context.Context, cmd profiles.UpdateProfileCommand) (*profiles.Profile, error)
	UpdatePhoto(ctx context.Context, cmd profiles.UpdatePhotoCommand) (*profiles.Profile, error)
}

type ProfileHandler struct {
	activity ActivityReader
	profiles ProfileManager
	logger   *slog.Logger
}

func NewProfileHandler(activity ActivityReader, manager ProfileManager, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		activity: activity,
		profiles: manager,
		logger:   logger,
	}
}

// Routes builds the router; /profiles requires a bearer token
func (h *ProfileHandler) Routes(verifier auth.TokenValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		r.Get("/profiles/me", h.GetProfile)
		r.Put("/profiles/me", h.UpdateProfile)
		r.Put("/profiles/me/photo", h.UpdatePhoto)
		r.Get("/profiles/{userID}/activity", h.GetActivity)
	})

	return r
}

// GetActivity returns the counters of a user. Only the user and admins may read them.
func (h *ProfileHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	userID := chi.URLParam(r, "userID")
	if userID == selfAlias {
		userID = caller.UserID
	}
	if userID != caller.UserID && !caller.Admin {
		respondError(w, http.StatusForbidden, "cannot view another user's activity")
		return
	}

	activity, err := h.activity.GetActivity(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get activity", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, activity)
}

// GetProfile returns the caller's profile document
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	profile, err := h.profiles.GetProfile(r.Context(), caller.UserID, caller.Email)
	if err != nil {
		h.respondProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	FullName *string `json:"fullName"`
	College  *string `json:"college"`
}

// UpdateProfile edits the caller's name and college. Omitted fields are kept.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.profiles.UpdateProfile(r.Context(), profiles.UpdateProfileCommand{
		UserID:   caller.UserID,
		Email:    caller.Email,
		FullName: req.FullName,
		College:  req.College,
	})
	if err != nil {
		h.respondProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UpdatePhoto replaces the caller's profile picture from a multipart upload
func (h *ProfileHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile(photoFormField)
	if err != nil {
		respondError(w, http.StatusBadRequest, profiles.ErrMissingPhoto.Error())
		return
	}
	defer file.Close()

	photo, err := io.ReadAll(io.LimitReader(file, maxPhotoSize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid photo")
		return
	}
	if len(photo) > maxPhotoSize {
		respondError(w, http.StatusRequestEntityTooLarge, "photo is too large")
		return
	}

	profile, err := h.profiles.UpdatePhoto(r.Context(), profiles.UpdatePhotoCommand{
		UserID: caller.UserID,
		Email:  caller.Email,
		Photo:  photo,
	})
	if err != nil {
		h.respondProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) respondProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profiles.ErrInvalidProfile),
		errors.Is(err, profiles.ErrMissingPhoto),
		errors.Is(err, profiles.ErrUnsupportedPhoto),
		errors.Is(err, profiles.ErrMissingUserID):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Profile request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}
