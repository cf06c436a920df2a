package chat

import "context"

// Repository defines the interface for message persistence
type Repository interface {
	SaveMessage(ctx context.Context, msg *Message) error

	// ListRecent returns the newest limit messages, oldest first
	ListRecent(ctx context.Context, limit int) ([]*Message, error)
}

// Broadcaster fans new messages out to every connected reader
type Broadcaster interface {
	Publish(ctx context.Context, msg *Message) error

	// Subscribe streams messages published after it returns. The channel is
	// closed once ctx is done.
	Subscribe(ctx context.Context) (<-chan *Message, error)
}
