// Package app provides the top-level application lifecycle: it wires
// dependencies (stores, gateway, bus, services, notifications), seeds the
// market type registry, and runs the API server until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DemolaJames/xo-market-api/internal/config"
	"github.com/DemolaJames/xo-market-api/internal/notify"
	"github.com/DemolaJames/xo-market-api/internal/server"
	"github.com/DemolaJames/xo-market-api/internal/server/handler"
	"github.com/DemolaJames/xo-market-api/internal/server/ws"
)

// shutdownGrace bounds how long in-flight requests may run after a shutdown
// signal.
const shutdownGrace = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and serves the API until the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := deps.Types.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("app: seed market types: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	relay := notify.NewRelay(deps.Notifier, a.logger)
	g.Go(func() error {
		return relay.Run(ctx, deps.Bus)
	})

	handlers := server.Handlers{
		Auth:        handler.NewAuthHandler(deps.Auth, a.logger),
		Markets:     handler.NewMarketHandler(deps.Markets, a.logger),
		MarketTypes: handler.NewMarketTypeHandler(deps.Types, a.logger),
		Health:      handler.NewHealthHandler(deps.Gateway),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, deps.Auth, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
