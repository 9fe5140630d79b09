package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// AuthService defines what the auth handler needs from the service layer.
type AuthService interface {
	Login(ctx context.Context, walletAddress string) (string, domain.User, error)
}

// AuthHandler serves the wallet login endpoint.
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

type loginRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type userResponse struct {
	ID               int64     `json:"id"`
	WalletAddress    string    `json:"walletAddress"`
	IsAdmin          bool      `json:"isAdmin"`
	ConvictionPoints int       `json:"convictionPoints"`
	CreatedAt        time.Time `json:"createdAt"`
}

type loginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

// Login resolves a wallet address to an account, creating it on first sight,
// and returns a bearer token.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.WalletAddress)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		User: userResponse{
			ID:               user.ID,
			WalletAddress:    user.WalletAddress,
			IsAdmin:          user.IsAdmin,
			ConvictionPoints: user.ConvictionPoints,
			CreatedAt:        user.CreatedAt,
		},
	})
}
