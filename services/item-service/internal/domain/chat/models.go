package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message is a post in the public chat room
type Message struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"senderId"`
	SenderName string    `db:"sender_name" json:"sender"`
	Text       string    `db:"text" json:"text"`
	CreatedAt  time.Time `db:"created_at" json:"timestamp"`
}
