package items

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the moderation state set by admin review
type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusApproved ItemStatus = "approved"
	ItemStatusRejected ItemStatus = "rejected"
)

// ClaimState tracks an owner claiming a found item
type ClaimState string

const (
	ClaimStateUnclaimed     ClaimState = "unclaimed"
	ClaimStateClaimed       ClaimState = "claimed"
	ClaimStateClaimApproved ClaimState = "claim_approved"
)

// DefaultAuctionBasePrice is the base price given to freshly uploaded items
const DefaultAuctionBasePrice = 10.0

// FoundDateLayout is the accepted format of Item.FoundDate on input
const FoundDateLayout = "2006-01-02"

const otherChoice = "Other"

var (
	Categories = []string{"Electronics", "Clothing", "Accessories", "Books", "Stationery", "Sports Equipment", otherChoice}
	Colors     = []string{"Red", "Blue", "Green", "Yellow", "Black", "White", "Brown", "Purple", "Pink", "Orange", otherChoice}
)

// Item is a found object moving through upload, moderation, claim and auction
type Item struct {
	ID         uuid.UUID `db:"id"`
	UploaderID string    `db:"uploader_id"`
	Name       string    `db:"name"`
	Category   string    `db:"category"`
	Color      string    `db:"color"`
	Brand      string    `db:"brand"`
	Location   string    `db:"location"`
	FoundDate  time.Time `db:"found_date"`
	PhotoURL   string    `db:"photo_url"`

	Status          ItemStatus `db:"status"`
	ClaimState      ClaimState `db:"claim_state"`
	ClaimantID      string     `db:"claimant_id"`
	ClaimedAt       *time.Time `db:"claimed_at"`
	ClaimApprovedAt *time.Time `db:"claim_approved_at"`

	IsAuctionActive   bool     `db:"is_auction_active"`
	AuctionBasePrice  float64  `db:"auction_base_price"`
	CurrentBid        *float64 `db:"current_bid"` // nil until the first accepted bid
	CurrentBidderName string   `db:"current_bidder_name"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// HighBid is the amount a new bid must strictly exceed
func (i *Item) HighBid() float64 {
	if i.CurrentBid != nil {
		return *i.CurrentBid
	}
	return i.AuctionBasePrice
}

// CanBeReviewed reports whether an admin may still approve or reject the item
func (i *Item) CanBeReviewed() bool {
	return i.Status == ItemStatusPending
}

// CanBeClaimed reports whether an owner may claim the item now
func (i *Item) CanBeClaimed() bool {
	return i.Status == ItemStatusApproved &&
		i.ClaimState == ClaimStateUnclaimed &&
		!i.IsAuctionActive
}

// CanStartAuction reports whether the item may be put up for auction
func (i *Item) CanStartAuction() bool {
	return i.Status == ItemStatusApproved &&
		i.ClaimState == ClaimStateUnclaimed &&
		!i.IsAuctionActive
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}

// NormalizeCategory maps free text onto the category vocabulary
func NormalizeCategory(s string) string {
	return normalize(s, Categories)
}

// NormalizeColor maps free text onto the color vocabulary
func NormalizeColor(s string) string {
	return normalize(s, Colors)
}

func normalize(s string, choices []string) string {
	s = strings.TrimSpace(s)
	for _, c := range choices {
		if strings.EqualFold(s, c) {
			return c
		}
	}
	return otherChoice
}

func isChoice(s string, choices []string) bool {
	for _, c := range choices {
		if s == c {
			return true
		}
	}
	return false
}
