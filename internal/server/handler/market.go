package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/domain"
	"github.com/DemolaJames/xo-market-api/internal/server/middleware"
)

// MarketService defines what the market handler needs from the service
// layer. Declared locally so the handler package does not depend on the
// concrete service implementation.
type MarketService interface {
	Create(ctx context.Context, userID int64, p domain.MarketProposal) (domain.Market, error)
	Approve(ctx context.Context, marketID, marketTypeID, approverID int64) (domain.Market, error)
	FindAll(ctx context.Context, f domain.MarketFilter) ([]domain.Market, error)
	FindByID(ctx context.Context, id int64) (domain.Market, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]domain.Market, error)
}

// MarketHandler serves the market lifecycle endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// marketResponse is the wire shape of a market.
type marketResponse struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Expiry          time.Time  `json:"expiry"`
	ConvictionLevel float64    `json:"convictionLevel"`
	Status          string     `json:"status"`
	CreatorID       int64      `json:"creatorId"`
	ApprovedByID    *int64     `json:"approvedById,omitempty"`
	MarketTypeID    *int64     `json:"marketTypeId,omitempty"`
	OnchainID       *int64     `json:"onchainId,omitempty"`
	TxHash          *string    `json:"txHash,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
}

func toMarketResponse(m domain.Market) marketResponse {
	return marketResponse{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		Expiry:          m.Expiry,
		ConvictionLevel: m.ConvictionLevel,
		Status:          string(m.Status),
		CreatorID:       m.CreatorID,
		ApprovedByID:    m.ApprovedByID,
		MarketTypeID:    m.MarketTypeID,
		OnchainID:       m.OnchainID,
		TxHash:          m.TxHash,
		CreatedAt:       m.CreatedAt,
		ApprovedAt:      m.ApprovedAt,
	}
}

func toMarketResponses(ms []domain.Market) []marketResponse {
	out := make([]marketResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMarketResponse(m))
	}
	return out
}

// createMarketRequest is the body of POST /api/markets.
type createMarketRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Expiry          time.Time `json:"expiry"`
	ConvictionLevel float64   `json:"convictionLevel"`
	MarketTypeID    *int64    `json:"marketTypeId"`
}

// CreateMarket proposes a new market for the authenticated user.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.Create(r.Context(), user.ID, domain.MarketProposal{
		Title:           req.Title,
		Description:     req.Description,
		Expiry:          req.Expiry,
		ConvictionLevel: req.ConvictionLevel,
		MarketTypeID:    req.MarketTypeID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMarketResponse(market))
}

// approveMarketRequest is the body of POST /api/markets/approve.
type approveMarketRequest struct {
	MarketID     int64 `json:"marketId"`
	MarketTypeID int64 `json:"marketTypeId"`
}

// ApproveMarket approves a pending market against a market type's rules.
// Admin only. The market is returned in its APPROVED state; settlement
// completes in the background.
// POST /api/markets/approve
func (h *MarketHandler) ApproveMarket(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req approveMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MarketID == 0 || req.MarketTypeID == 0 {
		writeError(w, http.StatusBadRequest, "marketId and marketTypeId are required")
		return
	}

	market, err := h.markets.Approve(r.Context(), req.MarketID, req.MarketTypeID, user.ID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: approve rejected",
			slog.Int64("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMarketResponse(market))
}

// listMarketsResponse wraps the list endpoint output with paging metadata.
type listMarketsResponse struct {
	Markets []marketResponse `json:"markets"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// ListMarkets returns markets with optional status/type filters.
// GET /api/markets?status=PENDING&marketTypeId=1&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	f := parseMarketFilter(r)

	markets, err := h.markets.FindAll(r.Context(), f)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: toMarketResponses(markets),
		Limit:   f.Limit,
		Offset:  f.Offset,
	})
}

// MyMarkets returns the authenticated user's markets.
// GET /api/markets/my-markets
func (h *MarketHandler) MyMarkets(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	markets, err := h.markets.ListByCreator(r.Context(), user.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: my markets failed",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, toMarketResponses(markets))
}

// GetMarket returns a single market by id.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	market, err := h.markets.FindByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMarketResponse(market))
}
