package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// Claims is the JWT payload issued at login.
type Claims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"walletAddress"`
	IsAdmin       bool   `json:"isAdmin"`
}

// AuthService issues and validates wallet-identity tokens. Login is
// self-service: presenting a wallet address for the first time creates the
// account.
type AuthService struct {
	users  domain.UserStore
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

// NewAuthService creates an AuthService signing HS256 tokens with the given
// secret, valid for ttl.
func NewAuthService(users domain.UserStore, secret string, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.With(slog.String("component", "auth")),
	}
}

// Login resolves the wallet address to a user, creating the account on first
// sight, and returns a signed token plus the user record.
func (s *AuthService) Login(ctx context.Context, walletAddress string) (string, domain.User, error) {
	addr := strings.TrimSpace(walletAddress)
	if !common.IsHexAddress(addr) {
		return "", domain.User{}, fmt.Errorf("%w: invalid wallet address", domain.ErrInvalidArgument)
	}
	// Canonical lowercase form so the same wallet never maps to two accounts.
	addr = strings.ToLower(addr)

	user, err := s.users.FindOrCreateByWallet(ctx, addr)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("auth: resolve wallet: %w", err)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		WalletAddress: user.WalletAddress,
		IsAdmin:       user.IsAdmin,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("auth: sign token: %w", err)
	}

	s.logger.InfoContext(ctx, "login",
		slog.Int64("user_id", user.ID),
		slog.String("wallet", user.WalletAddress),
	)
	return token, user, nil
}

// ValidateToken parses and verifies a token, returning the user it names.
// Any parse, signature, or expiry failure maps to ErrUnauthorized.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (domain.User, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.User{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return domain.User{}, fmt.Errorf("%w: malformed subject", domain.ErrUnauthorized)
	}

	// The token is a hint, not the source of truth: admin status and
	// existence are re-checked against the store.
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: unknown user", domain.ErrUnauthorized)
	}
	return user, nil
}
