package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/logger"
)

// Gas limits for the two shapes of transaction this service submits.
const (
	transferGasLimit = 21_000
	callGasLimit     = 1_500_000
)

// Account is a server-held key on one chain. Nonce allocation is serialized
// per account-chain pair; the relayer's nonce is shared across all
// concurrent executions, so submissions take the mutex for the whole
// allocate-sign-send sequence.
type Account struct {
	key     *ecdsa.PrivateKey
	address common.Address
	client  *Client

	mu sync.Mutex
}

// NewAccount loads an account from a hex-encoded private key.
func NewAccount(hexKey string, client *Client) (*Account, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("private key is empty")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &Account{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		client:  client,
	}, nil
}

// Address returns the account's address.
func (a *Account) Address() common.Address { return a.address }

// Balance reads the account's native gas balance.
func (a *Account) Balance(ctx context.Context) (*big.Int, error) {
	return a.client.NativeBalance(ctx, a.address)
}

// Submit signs and sends a contract call. The returned hash identifies the
// submission; confirmation is the caller's concern.
func (a *Account) Submit(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	return a.send(ctx, to, data, value, callGasLimit)
}

// Transfer moves native gas to another address.
func (a *Account) Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	return a.send(ctx, to, nil, amount, transferGasLimit)
}

func (a *Account) send(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	backend := a.client.Backend()

	nonce, err := backend.PendingNonceAt(ctx, a.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch pending nonce: %w", err)
	}
	tipCap, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch gas tip cap: %w", err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	// Fee cap leaves headroom for base fee movement between suggestion and
	// inclusion.
	feeCap := new(big.Int).Add(new(big.Int).Mul(gasPrice, big.NewInt(2)), tipCap)
	if value == nil {
		value = big.NewInt(0)
	}

	tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   a.client.ChainID(),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signer := coretypes.LatestSignerForChainID(a.client.ChainID())
	signed, err := coretypes.SignTx(tx, signer, a.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	logger.Info("Submitted transaction",
		zap.String("from", a.address.Hex()),
		zap.String("to", to.Hex()),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
	)

	return signed.Hash(), nil
}
