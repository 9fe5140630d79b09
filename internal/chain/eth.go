package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/DemolaJames/xo-market-api/internal/domain"
)

// marketContractABI covers the createMarket call and the MarketCreated event
// emitted on confirmation.
const marketContractABI = `[
	{"inputs":[
		{"internalType":"string","name":"title","type":"string"},
		{"internalType":"string","name":"description","type":"string"},
		{"internalType":"uint256","name":"expiry","type":"uint256"},
		{"internalType":"uint256","name":"conviction","type":"uint256"}],
	 "name":"createMarket","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"internalType":"uint256","name":"marketId","type":"uint256"},
		{"indexed":true,"internalType":"address","name":"creator","type":"address"},
		{"indexed":false,"internalType":"string","name":"title","type":"string"},
		{"indexed":false,"internalType":"uint256","name":"expiry","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"conviction","type":"uint256"}],
	 "name":"MarketCreated","type":"event"}
]`

// weiPerConviction scales the [0,1] conviction level to an 18-decimal
// fixed-point contract argument.
var weiPerConviction = new(big.Float).SetInt64(1e18)

// EthGateway implements Gateway against a live market contract over JSON-RPC.
type EthGateway struct {
	client       *ethclient.Client
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	opts         *bind.TransactOpts
	chainID      *big.Int
	logger       *slog.Logger
}

// NewEthGateway dials the RPC endpoint, derives the transactor from the given
// hex private key, and binds the market contract at contractAddr.
func NewEthGateway(ctx context.Context, rpcURL, contractAddr, privateKeyHex string, logger *slog.Logger) (*EthGateway, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: fetch chain id: %w", err)
	}

	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: build transactor: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(marketContractABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: parse contract abi: %w", err)
	}

	addr := common.HexToAddress(contractAddr)

	return &EthGateway{
		client:       client,
		contract:     bind.NewBoundContract(addr, parsed, client, client, client),
		contractABI:  parsed,
		contractAddr: addr,
		opts:         opts,
		chainID:      chainID,
		logger:       logger.With(slog.String("component", "chain")),
	}, nil
}

// Deploy submits a createMarket transaction, waits for it to be mined, and
// extracts the on-chain market id from the MarketCreated event in the receipt
// logs. Unparseable auxiliary logs are skipped; a receipt without the expected
// event is a deployment failure.
func (g *EthGateway) Deploy(ctx context.Context, m domain.Market) (DeployResult, error) {
	conviction, _ := new(big.Float).Mul(
		big.NewFloat(m.ConvictionLevel), weiPerConviction,
	).Int(nil)
	expiry := big.NewInt(m.Expiry.Unix())

	opts := *g.opts
	opts.Context = ctx

	tx, err := g.contract.Transact(&opts, "createMarket",
		m.Title, m.Description, expiry, conviction)
	if err != nil {
		return DeployResult{}, fmt.Errorf("chain: submit createMarket for market %d: %w", m.ID, err)
	}

	g.logger.InfoContext(ctx, "createMarket submitted",
		slog.Int64("market_id", m.ID),
		slog.String("tx_hash", tx.Hash().Hex()),
	)

	receipt, err := bind.WaitMined(ctx, g.client, tx)
	if err != nil {
		return DeployResult{}, fmt.Errorf("chain: wait for tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return DeployResult{}, fmt.Errorf("chain: tx %s reverted", tx.Hash().Hex())
	}

	onchainID, found := g.findMarketCreated(receipt.Logs)
	if !found {
		return DeployResult{}, fmt.Errorf("chain: tx %s: no MarketCreated event in receipt", tx.Hash().Hex())
	}

	return DeployResult{
		TxHash:    tx.Hash().Hex(),
		OnchainID: onchainID,
	}, nil
}

// findMarketCreated scans receipt logs for the MarketCreated event and returns
// the indexed marketId. Logs that do not decode against the contract ABI are
// skipped.
func (g *EthGateway) findMarketCreated(logs []*types.Log) (int64, bool) {
	for _, lg := range logs {
		if len(lg.Topics) < 2 || lg.Address != g.contractAddr {
			continue
		}
		ev, err := g.contractABI.EventByID(lg.Topics[0])
		if err != nil || ev.Name != "MarketCreated" {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[1].Bytes()).Int64(), true
	}
	return 0, false
}

// Health reports RPC connectivity, signer and contract configuration, the
// current block height, and the chain id. Failures are folded into the result.
func (g *EthGateway) Health(ctx context.Context) Health {
	h := Health{
		HasSigner:   true,
		HasContract: g.contractAddr != (common.Address{}),
		Network:     g.chainID.String(),
	}

	block, err := g.client.BlockNumber(ctx)
	if err != nil {
		h.Reason = fmt.Sprintf("rpc unreachable: %v", err)
		return h
	}

	h.Healthy = true
	h.Connected = true
	h.BlockNumber = block
	return h
}

// Close releases the underlying RPC connection.
func (g *EthGateway) Close() {
	g.client.Close()
}

var _ Gateway = (*EthGateway)(nil)
