package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/floroz/accio/pkg/auth"
	"github.com/floroz/accio/services/item-service/internal/domain/analysis"
	"github.com/floroz/accio/services/item-service/internal/domain/bids"
	"github.com/floroz/accio/services/item-service/internal/domain/chat"
	"github.com/floroz/accio/services/item-service/internal/domain/items"
)

const internalErrorMessage = "internal server error"

// ItemService is the item lifecycle used by the handlers
type ItemService interface {
	UploadItem(ctx context.Context, cmd items.UploadItemCommand) (*items.Item, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*items.Item, error)
	ListItems(ctx context.Context, query items.ListItemsQuery) ([]*items.Item, error)
	ListPendingItems(ctx context.Context, limit, offset int) ([]*items.Item, error)
	ListPendingClaims(ctx context.Context, limit, offset int) ([]*items.Item, error)
	ReviewItem(ctx context.Context, cmd items.ReviewItemCommand) (*items.Item, error)
	ClaimItem(ctx context.Context, cmd items.ClaimItemCommand) (*items.Item, error)
	ApproveClaim(ctx context.Context, cmd items.ApproveClaimCommand) (*items.Item, error)
	StartAuction(ctx context.Context, cmd items.StartAuctionCommand) (*items.Item, error)
	CloseAuction(ctx context.Context, cmd items.CloseAuctionCommand) (*items.Item, error)
	Subscribe(ctx context.Context, itemID uuid.UUID) *items.Subscription
}

// BidPlacer runs the transactional bid validator
type BidPlacer interface {
	PlaceBid(ctx context.Context, cmd bids.PlaceBidCommand) (*items.Item, error)
}

// BidCommitter records bids in the ledger
type BidCommitter interface {
	Commit(ctx context.Context, cmd bids.CommitBidCommand) (*bids.LedgerEntry, error)
	GetLedgerEntry(ctx context.Context, itemID uuid.UUID) (*bids.LedgerEntry, error)
}

// Analyzer suggests upload fields from a photo
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (*analysis.Result, error)
}

// ChatService is the public chat room
type ChatService interface {
	SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (*chat.Message, error)
	ListMessages(ctx context.Context, limit int) ([]*chat.Message, error)
	Subscribe(ctx context.Context) (<-chan *chat.Message, error)
}

// Handler serves the item-service HTTP API
type Handler struct {
	items     ItemService
	placer    BidPlacer
	committer BidCommitter
	analyzer  Analyzer
	chat      ChatService
	logger    *slog.Logger
}

// NewHandler creates a new Handler
func NewHandler(itemService ItemService, placer BidPlacer, committer BidCommitter, analyzer Analyzer, chatService ChatService, logger *slog.Logger) *Handler {
	return &Handler{
		items:     itemService,
		placer:    placer,
		committer: committer,
		analyzer:  analyzer,
		chat:      chatService,
		logger:    logger,
	}
}

// Routes builds the router. Everything except /placeBid and /health
// requires a bearer token accepted by verifier.
func (h *Handler) Routes(verifier auth.TokenValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not Found")
	})

	r.Get("/health", h.health)
	r.Post("/placeBid", h.commitBid)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.listItems)
			r.Post("/", h.uploadItem)
			r.Post("/analyze", h.analyzeImage)

			r.Route("/{itemID}", func(r chi.Router) {
				r.Get("/", h.getItem)
				r.Get("/watch", h.watchItem)
				r.Post("/claim", h.claimItem)
				r.Post("/bids", h.placeBid)
				r.Get("/ledger", h.getLedgerEntry)
			})
		})

		r.Route("/chat", func(r chi.Router) {
			r.Get("/messages", h.listMessages)
			r.Post("/messages", h.sendMessage)
			r.Get("/stream", h.chatStream)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Get("/items/pending", h.listPendingItems)
			r.Get("/claims", h.listPendingClaims)
			r.Post("/items/{itemID}/review", h.reviewItem)
			r.Post("/items/{itemID}/claim/approve", h.approveClaim)
			r.Post("/items/{itemID}/auction/start", h.startAuction)
			r.Post("/items/{itemID}/auction/close", h.closeAuction)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// internalError logs err in full and hides it from the client
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
	respondError(w, http.StatusInternalServerError, internalErrorMessage)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

func itemIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	return id, err == nil
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

// pagination reads limit and offset; missing values are zero
func pagination(r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	var err error
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, false
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, false
		}
	}
	return limit, offset, true
}
