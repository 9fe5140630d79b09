package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies XOMARKET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known XOMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "XOMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "XOMARKET_SERVER_CORS_ORIGINS")

	// ── Database ──
	setStr(&cfg.Database.DSN, "XOMARKET_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "XOMARKET_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "XOMARKET_DATABASE_HOST")
	setInt(&cfg.Database.Port, "XOMARKET_DATABASE_PORT")
	setStr(&cfg.Database.Database, "XOMARKET_DATABASE_NAME")
	setStr(&cfg.Database.User, "XOMARKET_DATABASE_USER")
	setStr(&cfg.Database.Password, "XOMARKET_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "XOMARKET_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "XOMARKET_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "XOMARKET_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "XOMARKET_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "XOMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "XOMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "XOMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "XOMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "XOMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "XOMARKET_REDIS_TLS_ENABLED")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "XOMARKET_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ContractAddress, "XOMARKET_CHAIN_CONTRACT_ADDRESS")
	setStr(&cfg.Chain.PrivateKey, "XOMARKET_CHAIN_PRIVATE_KEY")
	setStr(&cfg.Chain.EncryptedKeyPath, "XOMARKET_CHAIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Chain.KeyPassword, "XOMARKET_CHAIN_KEY_PASSWORD")
	setDuration(&cfg.Chain.MockDelay, "XOMARKET_CHAIN_MOCK_DELAY")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "XOMARKET_AUTH_JWT_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "XOMARKET_AUTH_TOKEN_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "XOMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "XOMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "XOMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "XOMARKET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "XOMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
