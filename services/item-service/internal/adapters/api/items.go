package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/accio/services/item-service/internal/domain/analysis"
	"github.com/floroz/accio/services/item-service/internal/domain/items"
)

const (
	maxPhotoSize   = 10 << 20
	maxUploadSize  = maxPhotoSize + 1<<20
	photoFormField = "photo"
)

// ItemResponse is the JSON form of an item
type ItemResponse struct {
	ID                uuid.UUID  `json:"id"`
	UploaderID        string     `json:"uploaderId"`
	Name              string     `json:"itemName"`
	Category          string     `json:"category"`
	Color             string     `json:"color"`
	Brand             string     `json:"brandName"`
	Location          string     `json:"location"`
	FoundDate         string     `json:"date"`
	PhotoURL          string     `json:"photoUrl"`
	Status            string     `json:"status"`
	ClaimState        string     `json:"claimState"`
	UserClaim         bool       `json:"userClaim"`
	ApproveClaim      bool       `json:"approveClaim"`
	ClaimantID        string     `json:"claimantId,omitempty"`
	ClaimTimestamp    *time.Time `json:"claimTimestamp,omitempty"`
	ApproveTimestamp  *time.Time `json:"approveTimestamp,omitempty"`
	IsAuctionActive   bool       `json:"isAuctionActive"`
	AuctionBasePrice  float64    `json:"auctionBasePrice"`
	CurrentBid        *float64   `json:"currentBid,omitempty"`
	CurrentBidderName string     `json:"currentBidderName,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func toItemResponse(item *items.Item) ItemResponse {
	return ItemResponse{
		ID:                item.ID,
		UploaderID:        item.UploaderID,
		Name:              item.Name,
		Category:          item.Category,
		Color:             item.Color,
		Brand:             item.Brand,
		Location:          item.Location,
		FoundDate:         item.FoundDate.Format(items.FoundDateLayout),
		PhotoURL:          item.PhotoURL,
		Status:            string(item.Status),
		ClaimState:        string(item.ClaimState),
		UserClaim:         item.ClaimState != items.ClaimStateUnclaimed,
		ApproveClaim:      item.ClaimState == items.ClaimStateClaimApproved,
		ClaimantID:        item.ClaimantID,
		ClaimTimestamp:    item.ClaimedAt,
		ApproveTimestamp:  item.ClaimApprovedAt,
		IsAuctionActive:   item.IsAuctionActive,
		AuctionBasePrice:  item.AuctionBasePrice,
		CurrentBid:        item.CurrentBid,
		CurrentBidderName: item.CurrentBidderName,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

func toItemResponses(list []*items.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(list))
	for _, item := range list {
		out = append(out, toItemResponse(item))
	}
	return out
}

// itemErrorStatus maps item domain errors to HTTP status codes
func itemErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, items.ErrItemNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, items.ErrMissingFields),
		errors.Is(err, items.ErrInvalidFoundDate),
		errors.Is(err, items.ErrInvalidCategory),
		errors.Is(err, items.ErrInvalidColor),
		errors.Is(err, items.ErrUnsupportedPhoto),
		errors.Is(err, items.ErrInvalidAuctionPrice):
		return http.StatusBadRequest, true
	case errors.Is(err, items.ErrInvalidTransition),
		errors.Is(err, items.ErrNotClaimable),
		errors.Is(err, items.ErrAuctionNotStartable),
		errors.Is(err, items.ErrAuctionNotRunning):
		return http.StatusConflict, true
	}
	return 0, false
}

func (h *Handler) respondItemError(w http.ResponseWriter, r *http.Request, err error) {
	if status, ok := itemErrorStatus(err); ok {
		respondError(w, status, err.Error())
		return
	}
	h.internalError(w, r, "Item request failed", err)
}

func (h *Handler) uploadItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	cmd := items.UploadItemCommand{
		UploaderID: identity(r).UserID,
		Name:       r.FormValue("itemName"),
		Category:   r.FormValue("category"),
		Color:      r.FormValue("color"),
		Brand:      r.FormValue("brandName"),
		Location:   r.FormValue("location"),
		FoundDate:  r.FormValue("date"),
	}

	file, _, err := r.FormFile(photoFormField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid photo")
		return
	default:
		defer file.Close()
		photo, err := io.ReadAll(io.LimitReader(file, maxPhotoSize+1))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid photo")
			return
		}
		if len(photo) > maxPhotoSize {
			respondError(w, http.StatusRequestEntityTooLarge, "photo is too large")
			return
		}
		cmd.Photo = photo
	}

	item, err := h.items.UploadItem(r.Context(), cmd)
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toItemResponse(item))
}

type analyzeRequest struct {
	Image string `json:"image"`
}

func (h *Handler) analyzeImage(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2*maxPhotoSize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	image, err := analysis.DecodeImage(req.Image)
	if err == nil {
		var res *analysis.Result
		res, err = h.analyzer.Analyze(r.Context(), image)
		if err == nil {
			respondJSON(w, http.StatusOK, res)
			return
		}
	}

	switch {
	case errors.Is(err, analysis.ErrNoImage):
		respondError(w, http.StatusBadRequest, "No image provided")
	case errors.Is(err, analysis.ErrUnsupportedImage):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analysis.ErrUnreadableResponse):
		h.logger.Warn("Unreadable analysis reply", "error", err)
		respondError(w, http.StatusBadGateway, analysis.ErrUnreadableResponse.Error())
	default:
		h.logger.Error("Image analysis failed", "error", err)
		respondError(w, http.StatusBadGateway, "Failed to analyze image")
	}
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid pagination parameters")
		return
	}

	q := r.URL.Query()
	query := items.ListItemsQuery{
		Status:     items.ItemStatusApproved,
		ClaimState: items.ClaimState(q.Get("claimState")),
		Category:   q.Get("category"),
		Color:      q.Get("color"),
		Location:   q.Get("location"),
		Search:     q.Get("q"),
		Limit:      limit,
		Offset:     offset,
	}
	// Only admins browse unreviewed or rejected uploads
	if status := q.Get("status"); status != "" && identity(r).Admin {
		query.Status = items.ItemStatus(status)
	}
	if v := q.Get("auction"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid auction filter")
			return
		}
		query.AuctionActive = &active
	}

	list, err := h.items.ListItems(r.Context(), query)
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponses(list))
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.items.GetItem(r.Context(), itemID)
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) claimItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.items.ClaimItem(r.Context(), items.ClaimItemCommand{
		ItemID:     itemID,
		ClaimantID: identity(r).UserID,
	})
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) listPendingItems(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid pagination parameters")
		return
	}

	list, err := h.items.ListPendingItems(r.Context(), limit, offset)
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponses(list))
}

func (h *Handler) listPendingClaims(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid pagination parameters")
		return
	}

	list, err := h.items.ListPendingClaims(r.Context(), limit, offset)
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponses(list))
}

type reviewRequest struct {
	Approve *bool `json:"approve"`
}

func (h *Handler) reviewItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Approve == nil {
		respondError(w, http.StatusBadRequest, "approve is required")
		return
	}

	item, err := h.items.ReviewItem(r.Context(), items.ReviewItemCommand{
		ItemID:     itemID,
		ReviewerID: identity(r).UserID,
		Approve:    *req.Approve,
	})
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) approveClaim(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.items.ApproveClaim(r.Context(), items.ApproveClaimCommand{
		ItemID:  itemID,
		AdminID: identity(r).UserID,
	})
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

type startAuctionRequest struct {
	BasePrice *float64 `json:"basePrice"`
}

func (h *Handler) startAuction(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	// An empty body keeps the item's base price
	var req startAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.items.StartAuction(r.Context(), items.StartAuctionCommand{
		ItemID:    itemID,
		AdminID:   identity(r).UserID,
		BasePrice: req.BasePrice,
	})
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) closeAuction(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.items.CloseAuction(r.Context(), items.CloseAuctionCommand{
		ItemID:  itemID,
		AdminID: identity(r).UserID,
	})
	if err != nil {
		h.respondItemError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}
