package bids

import (
	"time"

	"github.com/google/uuid"
)

// PlaceBidCommand is a bid against the item record itself.
// LastKnownBid is the high bid the bidder saw; nil makes the validator read it.
type PlaceBidCommand struct {
	ItemID       uuid.UUID
	Amount       float64
	BidderName   string
	UserID       string
	LastKnownBid *float64
}

// CommitBidCommand is the request/response form of a bid. A zero BidAmount
// counts as missing.
type CommitBidCommand struct {
	ItemID     string  `json:"itemId" validate:"required"`
	BidAmount  float64 `json:"bidAmount" validate:"required"`
	BidderName string  `json:"bidderName" validate:"required"`
	UserID     string  `json:"userId" validate:"required"`
}

// LedgerEntry is the latest committed bid for an item, one row per item
type LedgerEntry struct {
	ItemID     uuid.UUID `db:"item_id"`
	Amount     float64   `db:"amount"`
	BidderName string    `db:"bidder_name"`
	UserID     string    `db:"user_id"`
	Timestamp  time.Time `db:"recorded_at"`
}
