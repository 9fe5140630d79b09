// Package chain implements the settlement gateway that publishes approved
// markets to the external ledger. Two implementations exist: EthGateway talks
// to a real contract over JSON-RPC, MockGateway simulates settlement when no
// signing key is configured. Callers depend only on the Gateway interface and
// never learn which mode is active.
package chain

import (
	"context"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// DeployResult carries the settlement outputs for a successfully published
// market.
type DeployResult struct {
	TxHash    string
	OnchainID int64
}

// Gateway publishes approved markets to the settlement layer.
type Gateway interface {
	// Deploy publishes the market and blocks until the outcome is known. It
	// is always invoked asynchronously relative to the approval request.
	Deploy(ctx context.Context, m domain.Market) (DeployResult, error)

	// Health reports gateway status. It never returns an error;
	// communication failures yield an unhealthy result with a reason.
	Health(ctx context.Context) Health
}

// Health is a point-in-time snapshot of the gateway's connectivity and
// configuration.
type Health struct {
	Healthy     bool   `json:"healthy"`
	Reason      string `json:"reason,omitempty"`
	Connected   bool   `json:"connected"`
	HasSigner   bool   `json:"hasSigner"`
	HasContract bool   `json:"hasContract"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	Network     string `json:"network,omitempty"`
}
