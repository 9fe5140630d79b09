package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeTempConfig(t, `
log_level = "debug"

[server]
port = 9090

[auth]
jwt_secret = "sekrit"
token_ttl = "2h"

[chain]
mock_delay = "500ms"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Auth.TokenTTL.Duration != 2*time.Hour {
		t.Errorf("token_ttl = %v, want 2h", cfg.Auth.TokenTTL.Duration)
	}
	if cfg.Chain.MockDelay.Duration != 500*time.Millisecond {
		t.Errorf("mock_delay = %v, want 500ms", cfg.Chain.MockDelay.Duration)
	}
	// Untouched defaults survive the merge.
	if cfg.Database.Port != 5432 {
		t.Errorf("database port = %d, want default 5432", cfg.Database.Port)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeTempConfig(t, `
[server]
port = 9090

[auth]
jwt_secret = "from-file"
`)

	t.Setenv("XOMARKET_SERVER_PORT", "7070")
	t.Setenv("XOMARKET_AUTH_JWT_SECRET", "from-env")
	t.Setenv("XOMARKET_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("jwt_secret = %q, want env override", cfg.Auth.JWTSecret)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors_origins = %v", cfg.Server.CORSOrigins)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	cfg.LogLevel = "loud"
	cfg.Auth.JWTSecret = ""
	cfg.Chain.EncryptedKeyPath = "/keys/market.json" // no password

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate passed invalid config")
	}
	for _, want := range []string{"port", "log_level", "jwt_secret", "key_password"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateAcceptsMockModeWithoutChain(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.JWTSecret = "sekrit"
	cfg.Chain.RPCURL = ""
	cfg.Chain.ContractAddress = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "dbpass"
	cfg.Chain.PrivateKey = "deadbeef"
	cfg.Auth.JWTSecret = "sekrit"

	red := RedactedConfig(&cfg)
	if red.Database.Password != redacted || red.Chain.PrivateKey != redacted || red.Auth.JWTSecret != redacted {
		t.Fatalf("secrets not redacted: %+v", red)
	}
	if cfg.Auth.JWTSecret != "sekrit" {
		t.Fatal("original config mutated")
	}
	if red.Database.Host != cfg.Database.Host {
		t.Fatal("non-secret fields must survive redaction")
	}
}
