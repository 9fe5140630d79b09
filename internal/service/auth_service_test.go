package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

const testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"

func newAuthService(users *fakeUserStore, ttl time.Duration) *AuthService {
	return NewAuthService(users, "test-secret", ttl, testLogger())
}

func TestLoginCreatesAccountOnFirstSight(t *testing.T) {
	users := newFakeUserStore()
	svc := newAuthService(users, time.Hour)
	ctx := context.Background()

	token, user, err := svc.Login(ctx, testWallet)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if user.IsAdmin {
		t.Fatal("fresh account must not be admin")
	}

	// Same wallet in different casing maps to the same account.
	_, again, err := svc.Login(ctx, "0x52908400098527886e0f7030069857d2e4169ee7")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("second login created new account %d, want %d", again.ID, user.ID)
	}
}

func TestLoginRejectsMalformedAddress(t *testing.T) {
	svc := newAuthService(newFakeUserStore(), time.Hour)
	for _, addr := range []string{"", "nonsense", "0x1234"} {
		if _, _, err := svc.Login(context.Background(), addr); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("Login(%q) err = %v, want ErrInvalidArgument", addr, err)
		}
	}
}

func TestValidateTokenRoundTrip(t *testing.T) {
	users := newFakeUserStore()
	svc := newAuthService(users, time.Hour)
	ctx := context.Background()

	token, user, err := svc.Login(ctx, testWallet)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.ID != user.ID || got.WalletAddress != user.WalletAddress {
		t.Fatalf("got user %+v, want %+v", got, user)
	}
}

func TestValidateTokenRejectsGarbageAndExpiry(t *testing.T) {
	users := newFakeUserStore()
	ctx := context.Background()

	svc := newAuthService(users, time.Hour)
	if _, err := svc.ValidateToken(ctx, "not.a.token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("garbage token err = %v, want ErrUnauthorized", err)
	}

	expired := newAuthService(users, -time.Minute)
	token, _, err := expired.Login(ctx, testWallet)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := expired.ValidateToken(ctx, token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expired token err = %v, want ErrUnauthorized", err)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	users := newFakeUserStore()
	ctx := context.Background()

	other := NewAuthService(users, "other-secret", time.Hour, testLogger())
	token, _, err := other.Login(ctx, testWallet)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	svc := newAuthService(users, time.Hour)
	if _, err := svc.ValidateToken(ctx, token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("foreign signature err = %v, want ErrUnauthorized", err)
	}
}
