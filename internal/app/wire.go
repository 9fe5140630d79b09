package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DemolaJames/xo-market-api/internal/bus"
	"github.com/DemolaJames/xo-market-api/internal/cache/redis"
	"github.com/DemolaJames/xo-market-api/internal/chain"
	"github.com/DemolaJames/xo-market-api/internal/config"
	"github.com/DemolaJames/xo-market-api/internal/notify"
	"github.com/DemolaJames/xo-market-api/internal/service"
	"github.com/DemolaJames/xo-market-api/internal/store/postgres"
)

// Dependencies bundles everything the application needs to serve requests. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Bus      *bus.Bus
	Gateway  chain.Gateway
	Markets  *service.MarketService
	Types    *service.MarketTypeService
	Auth     *service.AuthService
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	userStore := postgres.NewUserStore(pool)
	marketStore := postgres.NewMarketStore(pool)
	typeStore := postgres.NewMarketTypeStore(pool)

	// --- Event bus ---
	events := bus.New(logger)

	// --- Settlement gateway ---
	keyCfg := chain.KeyConfig{
		RawPrivateKey:    cfg.Chain.PrivateKey,
		EncryptedKeyPath: cfg.Chain.EncryptedKeyPath,
		KeyPassword:      cfg.Chain.KeyPassword,
	}

	var gateway chain.Gateway
	if keyCfg.Configured() {
		privateKey, err := chain.LoadKey(keyCfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: settlement key: %w", err)
		}
		ethGateway, err := chain.NewEthGateway(ctx, cfg.Chain.RPCURL, cfg.Chain.ContractAddress, privateKey, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: eth gateway: %w", err)
		}
		closers = append(closers, ethGateway.Close)
		gateway = ethGateway
	} else {
		logger.Warn("no settlement signing key configured, using mock gateway")
		gateway = chain.NewMockGateway(marketStore, cfg.Chain.MockDelay.Duration, logger)
	}

	// --- Services ---
	typeSvc := service.NewMarketTypeService(typeStore, logger)
	marketSvc := service.NewMarketService(marketStore, userStore, typeSvc, gateway, events, logger)
	authSvc := service.NewAuthService(userStore, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration, logger)

	// --- Redis (optional): creation rate limiting ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		marketSvc.WithRateLimiter(redis.NewRateLimiter(redisClient))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}

	return &Dependencies{
		Bus:      events,
		Gateway:  gateway,
		Markets:  marketSvc,
		Types:    typeSvc,
		Auth:     authSvc,
		Notifier: notify.NewNotifier(senders, cfg.Notify.Events, logger),
	}, cleanup, nil
}
