// Package server assembles the HTTP + WebSocket API: routes, middleware
// chain, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/server/handler"
	"github.com/DemolaJames/xo-market-api/internal/server/middleware"
	"github.com/DemolaJames/xo-market-api/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Auth        *handler.AuthHandler
	Markets     *handler.MarketHandler
	MarketTypes *handler.MarketTypeHandler
	Health      *handler.HealthHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux and wires the middleware
// chain. Write endpoints require a valid bearer token; approval additionally
// requires admin.
func NewServer(cfg Config, handlers Handlers, validator middleware.TokenValidator, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(validator)
	adminOnly := func(h http.Handler) http.Handler {
		return authed(middleware.RequireAdmin(h))
	}

	// Public endpoints.
	mux.HandleFunc("POST /api/auth/login", handlers.Auth.Login)
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/chain/health", handlers.Health.ChainHealth)
	mux.HandleFunc("GET /api/market-types", handlers.MarketTypes.ListMarketTypes)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)

	// Authenticated endpoints. my-markets is registered before the {id}
	// pattern would otherwise match it; Go's mux prefers the literal route.
	mux.Handle("POST /api/markets", authed(http.HandlerFunc(handlers.Markets.CreateMarket)))
	mux.Handle("GET /api/markets/my-markets", authed(http.HandlerFunc(handlers.Markets.MyMarkets)))

	// Admin endpoints.
	mux.Handle("POST /api/markets/approve", adminOnly(http.HandlerFunc(handlers.Markets.ApproveMarket)))

	// Event streams: global is open, per-user requires a token.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.ServeGlobal)
		mux.Handle("GET /ws/me", authed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := middleware.UserFromContext(r.Context())
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			wsHub.ServeUser(w, r, user.ID)
		})))
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests up to
// the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
