package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestItemEvent_RoundTrip(t *testing.T) {
	itemID := uuid.New()
	ev := NewItemEvent(EventTypeItemClaimed, itemID, "claimant-1", "uploader-1")
	ev.ClaimantID = "claimant-1"

	body, err := ev.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalItemEvent(body)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, EventTypeItemClaimed, got.Type)
	assert.Equal(t, itemID, got.ItemID)
	assert.Equal(t, "claimant-1", got.ActorID)
	assert.Equal(t, "uploader-1", got.OwnerID)
	assert.Equal(t, "claimant-1", got.ClaimantID)
	assert.True(t, ev.OccurredAt.Equal(got.OccurredAt))
}

func TestUnmarshalItemEvent_WithoutClaimant(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]any{
		"event_id":    uuid.NewString(),
		"event_type":  EventTypeItemUploaded,
		"item_id":     uuid.NewString(),
		"owner_id":    "uploader-1",
		"occurred_at": "2025-04-21T10:00:00Z",
	})
	require.NoError(t, err)
	body, err := proto.Marshal(msg)
	require.NoError(t, err)

	got, err := UnmarshalItemEvent(body)

	require.NoError(t, err)
	assert.Empty(t, got.ClaimantID)
}

func TestUnmarshalItemEvent_Rejects(t *testing.T) {
	t.Run("garbage bytes", func(t *testing.T) {
		_, err := UnmarshalItemEvent([]byte{0xff, 0xff, 0xff})
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})

	t.Run("missing item id", func(t *testing.T) {
		msg, err := structpb.NewStruct(map[string]any{
			"event_id":    uuid.NewString(),
			"event_type":  EventTypeItemApproved,
			"occurred_at": "2025-04-21T10:00:00Z",
		})
		require.NoError(t, err)
		body, err := proto.Marshal(msg)
		require.NoError(t, err)

		_, err = UnmarshalItemEvent(body)
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})
}
