package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event types published by the item service
const (
	EventTypeItemUploaded      = "item.uploaded"
	EventTypeItemApproved      = "item.approved"
	EventTypeItemRejected      = "item.rejected"
	EventTypeItemClaimed       = "item.claimed"
	EventTypeItemClaimApproved = "item.claim_approved"
	EventTypeAuctionStarted    = "auction.started"
	EventTypeAuctionClosed     = "auction.closed"
)

var ErrMalformedEvent = errors.New("malformed item event")

// ItemEvent is the wire contract between the item service and its consumers.
// It travels as a protobuf-encoded google.protobuf.Struct.
type ItemEvent struct {
	EventID    uuid.UUID
	Type       string
	ItemID     uuid.UUID
	ActorID    string // user that caused the transition
	OwnerID    string // uploader of the item
	ClaimantID string // owner who claimed the item, if any
	OccurredAt time.Time
}

// NewItemEvent stamps a fresh event id and time
func NewItemEvent(eventType string, itemID uuid.UUID, actorID, ownerID string) *ItemEvent {
	return &ItemEvent{
		EventID:    uuid.New(),
		Type:       eventType,
		ItemID:     itemID,
		ActorID:    actorID,
		OwnerID:    ownerID,
		OccurredAt: time.Now().UTC(),
	}
}

// Marshal encodes the event as protobuf bytes
func (e *ItemEvent) Marshal() ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]any{
		"event_id":    e.EventID.String(),
		"event_type":  e.Type,
		"item_id":     e.ItemID.String(),
		"actor_id":    e.ActorID,
		"owner_id":    e.OwnerID,
		"claimant_id": e.ClaimantID,
		"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}

// UnmarshalItemEvent decodes bytes produced by ItemEvent.Marshal
func UnmarshalItemEvent(body []byte) (*ItemEvent, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	fields := msg.GetFields()
	str := func(key string) string {
		return fields[key].GetStringValue()
	}

	eventID, err := uuid.Parse(str("event_id"))
	if err != nil {
		return nil, fmt.Errorf("%w: event_id: %v", ErrMalformedEvent, err)
	}
	itemID, err := uuid.Parse(str("item_id"))
	if err != nil {
		return nil, fmt.Errorf("%w: item_id: %v", ErrMalformedEvent, err)
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, str("occurred_at"))
	if err != nil {
		return nil, fmt.Errorf("%w: occurred_at: %v", ErrMalformedEvent, err)
	}
	if str("event_type") == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	}

	return &ItemEvent{
		EventID:    eventID,
		Type:       str("event_type"),
		ItemID:     itemID,
		ActorID:    str("actor_id"),
		OwnerID:    str("owner_id"),
		ClaimantID: str("claimant_id"),
		OccurredAt: occurredAt,
	}, nil
}
