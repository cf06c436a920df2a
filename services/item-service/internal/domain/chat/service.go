package chat

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxMessageLength = 1000
	defaultHistory   = 100
	maxHistory       = 500
	anonymousSender  = "Anonymous"
)

var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = fmt.Errorf("message cannot be longer than %d characters", MaxMessageLength)
	ErrMissingSender  = errors.New("sender id is required")
)

// SendMessageCommand is a chat post by an authenticated user
type SendMessageCommand struct {
	SenderID    string
	DisplayName string
	Email       string
	Text        string
}

// Service implements the public chat room
type Service struct {
	repo        Repository
	broadcaster Broadcaster
	sanitizer   *bluemonday.Policy
	logger      *slog.Logger
}

// NewService creates a new chat service
func NewService(repo Repository, broadcaster Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		broadcaster: broadcaster,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger,
	}
}

// SendMessage stores the message and broadcasts it. A failed broadcast is
// logged; readers catch up from history.
func (s *Service) SendMessage(ctx context.Context, cmd SendMessageCommand) (*Message, error) {
	if cmd.SenderID == "" {
		return nil, ErrMissingSender
	}
	text := s.plainText(cmd.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(html.UnescapeString(text)) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	msg := &Message{
		ID:         uuid.New(),
		SenderID:   cmd.SenderID,
		SenderName: SenderName(s.plainText(cmd.DisplayName), cmd.Email),
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if err := s.broadcaster.Publish(ctx, msg); err != nil {
		s.logger.Warn("Failed to broadcast chat message", "message_id", msg.ID, "error", err)
	}

	return msg, nil
}

// ListMessages returns recent history, oldest first
func (s *Service) ListMessages(ctx context.Context, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	if limit > maxHistory {
		limit = maxHistory
	}
	msgs, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// Subscribe streams new messages until ctx is done
func (s *Service) Subscribe(ctx context.Context) (<-chan *Message, error) {
	ch, err := s.broadcaster.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return ch, nil
}

// plainText strips any markup. The result stays HTML-escaped, so text the
// user typed as an entity never turns back into a tag.
func (s *Service) plainText(in string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(in))
}

// SenderName picks the name shown next to a message: the display name, else
// the local part of the email, else "Anonymous"
func SenderName(displayName, email string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(strings.TrimSpace(email), "@"); ok && local != "" {
		return local
	}
	return anonymousSender
}
