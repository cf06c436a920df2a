package bids

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Validation errors. Messages are shown to bidders as is.
var (
	ErrMalformedAmount  = errors.New("bid amount must be a valid number")
	ErrInvalidBidAmount = errors.New("bid amount must be greater than zero")
	ErrBidTooLow        = errors.New("bid must be higher than current bid")
	ErrMissingBidder    = errors.New("bidder name is required")
	ErrMissingFields    = errors.New("missing required fields")
	ErrInvalidItemID    = errors.New("invalid item id")
)

// Commit-time errors, reported after the transaction is aborted
var (
	ErrItemNotFound     = errors.New("item no longer exists")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrBidStale         = errors.New("another bid was placed first, please bid higher")
	ErrNoLedgerEntry    = errors.New("no bid recorded for this item")
)

// ParseBidAmount turns user input into a finite bid amount
func ParseBidAmount(raw string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, ErrMalformedAmount
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrMalformedAmount
	}
	return amount, nil
}

// validateAmount checks a bid on its own, before anything is read
func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrMalformedAmount
	}
	if amount <= 0 {
		return ErrInvalidBidAmount
	}
	return nil
}

// validateBidAmount checks the bid is strictly higher than the current high bid
func validateBidAmount(amount, highBid float64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount <= highBid {
		return ErrBidTooLow
	}
	return nil
}
