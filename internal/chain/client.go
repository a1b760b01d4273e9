package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/logger"
)

// Backend is the subset of ethclient used by this service. Narrowed for
// testability; *ethclient.Client satisfies it.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReceiptStatus classifies the outcome of waiting for a receipt.
type ReceiptStatus string

const (
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptFailed    ReceiptStatus = "failed"
	// ReceiptTimeout means no receipt landed within the budget. The
	// transaction may still land later; it is never auto-resubmitted.
	ReceiptTimeout ReceiptStatus = "timeout"
)

// Client wraps an EVM RPC connection for one chain.
type Client struct {
	backend Backend
	chainID *big.Int
	rpcURL  string
}

// Dial connects to the configured RPC endpoint.
func Dial(ctx context.Context, rpcURL string, chainID int64) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("RPC URL is empty")
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	logger.Info("Connected to EVM RPC",
		zap.String("rpc_url", rpcURL),
		zap.Int64("chain_id", chainID),
	)
	return &Client{backend: eth, chainID: big.NewInt(chainID), rpcURL: rpcURL}, nil
}

// NewClient wraps an existing backend; used by tests and by accounts.
func NewClient(backend Backend, chainID int64) *Client {
	return &Client{backend: backend, chainID: big.NewInt(chainID)}
}

// Backend exposes the underlying RPC surface.
func (c *Client) Backend() Backend { return c.backend }

// ChainID returns the configured chain id.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// NativeBalance reads an address's native gas balance.
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance of %s: %w", account.Hex(), err)
	}
	return bal, nil
}

// WaitForReceipt polls for a transaction receipt with a bounded timeout.
// A missing receipt at the deadline classifies as ReceiptTimeout, which is
// not a permanent failure.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout, interval time.Duration) (ReceiptStatus, *coretypes.Receipt, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status == coretypes.ReceiptStatusSuccessful {
				return ReceiptConfirmed, receipt, nil
			}
			return ReceiptFailed, receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			logger.Warn("Receipt poll errored, retrying",
				zap.String("tx_hash", txHash.Hex()),
				zap.Error(err),
			)
		}

		if time.Now().After(deadline) {
			return ReceiptTimeout, nil, nil
		}
		select {
		case <-ctx.Done():
			return ReceiptTimeout, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
