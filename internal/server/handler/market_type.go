package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// MarketTypeService defines what the market type handler needs from the
// registry.
type MarketTypeService interface {
	FindAllActive(ctx context.Context) ([]domain.MarketType, error)
}

// MarketTypeHandler serves the market type listing.
type MarketTypeHandler struct {
	types  MarketTypeService
	logger *slog.Logger
}

// NewMarketTypeHandler creates a MarketTypeHandler.
func NewMarketTypeHandler(types MarketTypeService, logger *slog.Logger) *MarketTypeHandler {
	return &MarketTypeHandler{
		types:  types,
		logger: logger,
	}
}

type marketTypeResponse struct {
	ID          int64                  `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	IsActive    bool                   `json:"isActive"`
	Rules       domain.ValidationRules `json:"validationRules"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// ListMarketTypes returns every active market type with its rules.
// GET /api/market-types
func (h *MarketTypeHandler) ListMarketTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.types.FindAllActive(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list market types failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list market types")
		return
	}

	out := make([]marketTypeResponse, 0, len(types))
	for _, mt := range types {
		out = append(out, marketTypeResponse{
			ID:          mt.ID,
			Name:        mt.Name,
			Description: mt.Description,
			IsActive:    mt.IsActive,
			Rules:       mt.Rules,
			CreatedAt:   mt.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}
