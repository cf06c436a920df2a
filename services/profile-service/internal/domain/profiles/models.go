package profiles

import (
	"time"

	"github.com/google/uuid"
)

// Counter names one of the per-user activity counters
type Counter string

// Approved claims credit both sides: the finder gets items_returned and the
// owner gets items_recovered.
const (
	CounterItemsUploaded  Counter = "items_uploaded"
	CounterItemsClaimed   Counter = "items_claimed"
	CounterItemsReturned  Counter = "items_returned"
	CounterItemsRecovered Counter = "items_recovered"
)

// Activity is a user's lost-and-found track record
type Activity struct {
	UserID         string     `json:"userId"`
	ItemsUploaded  int        `json:"itemsUploaded"`
	ItemsClaimed   int        `json:"itemsClaimed"`
	ItemsReturned  int        `json:"itemsReturned"`
	ItemsRecovered int        `json:"itemsRecovered"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
}

// ItemEvent is the part of an item lifecycle event the profile service reads
type ItemEvent struct {
	EventID    uuid.UUID
	Type       string
	ActorID    string
	OwnerID    string
	ClaimantID string
	OccurredAt time.Time
}

// Profile is the user's public profile document
type Profile struct {
	UserID    string     `json:"userId"`
	FullName  string     `json:"fullName"`
	College   string     `json:"college"`
	Email     string     `json:"email"`
	PhotoURL  string     `json:"photoUrl,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ProfileUpdate is a partial write. Nil fields keep their stored value and an
// empty Email keeps the stored email.
type ProfileUpdate struct {
	UserID   string
	Email    string
	FullName *string
	College  *string
	PhotoURL *string
}
