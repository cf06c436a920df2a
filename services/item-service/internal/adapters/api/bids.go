package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/floroz/accio/pkg/auth"
	"github.com/floroz/accio/services/item-service/internal/domain/bids"
	"github.com/floroz/accio/services/item-service/internal/domain/chat"
)

type placeBidRequest struct {
	// Amount accepts a JSON number or the raw text typed by the bidder
	Amount       json.RawMessage `json:"amount"`
	LastKnownBid *float64        `json:"lastKnownBid"`
}

type placeBidResponse struct {
	Success bool         `json:"success"`
	Item    ItemResponse `json:"item"`
}

type ledgerResponse struct {
	ItemID     string  `json:"itemId"`
	BidAmount  float64 `json:"bidAmount"`
	BidderName string  `json:"bidderName"`
	UserID     string  `json:"userId"`
	Timestamp  string  `json:"timestamp"`
}

// commitBid handles POST /placeBid. Every rejection is a 400 with the
// reason; backend failures are logged and reported generically.
func (h *Handler) commitBid(w http.ResponseWriter, r *http.Request) {
	var cmd bids.CommitBidCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.committer.Commit(r.Context(), cmd); err != nil {
		if bids.IsUserError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, r, "Failed to commit bid", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, bids.ErrInvalidItemID.Error())
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := bids.ParseBidAmount(strings.Trim(string(req.Amount), `"`))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller := identity(r)
	item, err := h.placer.PlaceBid(r.Context(), bids.PlaceBidCommand{
		ItemID:       itemID,
		Amount:       amount,
		BidderName:   bidderName(caller),
		UserID:       caller.UserID,
		LastKnownBid: req.LastKnownBid,
	})
	if err != nil {
		switch {
		case errors.Is(err, bids.ErrItemNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, bids.ErrAuctionNotActive), errors.Is(err, bids.ErrBidStale):
			respondError(w, http.StatusConflict, err.Error())
		case bids.IsUserError(err):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.internalError(w, r, "Failed to place bid", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, placeBidResponse{Success: true, Item: toItemResponse(item)})
}

func (h *Handler) getLedgerEntry(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, bids.ErrInvalidItemID.Error())
		return
	}

	entry, err := h.committer.GetLedgerEntry(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, bids.ErrNoLedgerEntry) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.internalError(w, r, "Failed to read ledger", err)
		return
	}

	respondJSON(w, http.StatusOK, ledgerResponse{
		ItemID:     entry.ItemID.String(),
		BidAmount:  entry.Amount,
		BidderName: entry.BidderName,
		UserID:     entry.UserID,
		Timestamp:  entry.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// bidderName is the name shown as the current high bidder
func bidderName(id auth.Identity) string {
	return chat.SenderName(id.DisplayName, id.Email)
}
