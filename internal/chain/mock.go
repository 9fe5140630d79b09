package chain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"math/big"
	"time"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// mockSettleTimeout bounds the delayed confirmation write.
const mockSettleTimeout = 10 * time.Second

// MockGateway simulates settlement when no signing key is configured. Deploy
// returns a synthetic transaction reference immediately; after a fixed delay
// the gateway independently marks the market LIVE with the same values,
// simulating confirmation latency. The write is guarded on the APPROVED
// status, so it coexists safely with the engine's own completion handling.
type MockGateway struct {
	markets domain.MarketStore
	delay   time.Duration
	logger  *slog.Logger
}

// NewMockGateway creates a MockGateway that settles after the given delay.
func NewMockGateway(markets domain.MarketStore, delay time.Duration, logger *slog.Logger) *MockGateway {
	return &MockGateway{
		markets: markets,
		delay:   delay,
		logger:  logger.With(slog.String("component", "chain"), slog.Bool("mock", true)),
	}
}

// Deploy returns synthetic settlement values and schedules the delayed
// confirmation write. It has no failure path.
func (g *MockGateway) Deploy(ctx context.Context, m domain.Market) (DeployResult, error) {
	result := DeployResult{
		TxHash:    syntheticTxHash(),
		OnchainID: syntheticOnchainID(),
	}

	g.logger.WarnContext(ctx, "mock deployment",
		slog.Int64("market_id", m.ID),
		slog.String("tx_hash", result.TxHash),
	)

	marketID := m.ID
	time.AfterFunc(g.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), mockSettleTimeout)
		defer cancel()

		if _, _, err := g.markets.MarkLive(ctx, marketID, result.TxHash, result.OnchainID); err != nil {
			g.logger.Error("mock confirmation write failed",
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	})

	return result, nil
}

// Health reports a degraded-but-functional mock: no remote connection, no
// signer, no contract binding.
func (g *MockGateway) Health(ctx context.Context) Health {
	return Health{
		Healthy: true,
		Reason:  "mock mode: no signing key configured",
	}
}

// syntheticTxHash returns a random 32-byte hash in 0x hex form.
func syntheticTxHash() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}

// syntheticOnchainID returns a random id in [0, 1e6).
func syntheticOnchainID() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return 0
	}
	return n.Int64()
}

var _ Gateway = (*MockGateway)(nil)
