// Package funding decides who pays gas for a relay attempt. Decisions are
// recomputed per attempt and never cached across requests.
package funding

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/db"
	"github.com/blossomfi/blossom-api/internal/logger"
)

// Mode is the funding outcome for one relay attempt.
type Mode string

const (
	ModeRelayed           Mode = "relayed"
	ModeRelayedAfterTopup Mode = "relayed_after_topup"
	ModeUserPaidRequired  Mode = "user_paid_required"
	ModeBlockedNeedsGas   Mode = "blocked_needs_gas"
)

// Reason codes attached to decisions.
const (
	ReasonRelayerFunded   = "RELAYER_FUNDED"
	ReasonRelayerToppedUp = "RELAYER_TOPPED_UP"
	ReasonDripSent        = "DRIP_SENT"
	ReasonUserHasGas      = "USER_HAS_GAS"
	ReasonNoGasPath       = "NO_GAS_PATH"
)

// Decision is the outcome of one ladder evaluation. The relay step runs
// only when Mode is relayed or relayed_after_topup.
type Decision struct {
	Mode           Mode     `json:"mode"`
	ReasonCode     string   `json:"reason_code"`
	RelayerBalance *big.Int `json:"relayer_balance_wei"`
	MinBalance     *big.Int `json:"min_balance_wei"`
	DidTopup       bool     `json:"did_topup"`
	DripTxHash     string   `json:"drip_tx_hash,omitempty"`
}

// Relayable reports whether the relayer may submit under this decision.
func (d *Decision) Relayable() bool {
	return d.Mode == ModeRelayed || d.Mode == ModeRelayedAfterTopup
}

// BalanceReader reads native gas balances on the execution chain.
type BalanceReader interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

// GasSource is a wallet that can transfer native gas (the funding wallet).
type GasSource interface {
	Address() common.Address
	Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
}

// Config bounds the ladder.
type Config struct {
	MinRelayerBalance *big.Int
	TopupTarget       *big.Int
	TopupTimeout      time.Duration
	DripAmount        *big.Int
	DripMaxPerWallet  int64
}

// Service evaluates the funding ladder.
type Service struct {
	reader  BalanceReader
	relayer common.Address
	source  GasSource // nil when no funding wallet is configured
	queries db.Querier
	cfg     Config
}

// NewService creates a funding service. source may be nil, disabling the
// top-up and drip rungs.
func NewService(reader BalanceReader, relayer common.Address, source GasSource, queries db.Querier, cfg Config) *Service {
	return &Service{reader: reader, relayer: relayer, source: source, queries: queries, cfg: cfg}
}

// Decide walks the ladder in its load-bearing order: relayed, then
// relayer top-up, then sponsorship drip, then user-paid, then blocked.
func (s *Service) Decide(ctx context.Context, userAddress common.Address) (*Decision, error) {
	balance, err := s.reader.NativeBalance(ctx, s.relayer)
	if err != nil {
		return nil, fmt.Errorf("failed to read relayer balance: %w", err)
	}

	decision := &Decision{
		RelayerBalance: balance,
		MinBalance:     new(big.Int).Set(s.cfg.MinRelayerBalance),
	}

	if balance.Cmp(s.cfg.MinRelayerBalance) >= 0 {
		decision.Mode = ModeRelayed
		decision.ReasonCode = ReasonRelayerFunded
		return decision, nil
	}

	if s.source != nil {
		topped, newBalance := s.attemptTopup(ctx, balance)
		if topped {
			decision.Mode = ModeRelayedAfterTopup
			decision.ReasonCode = ReasonRelayerToppedUp
			decision.RelayerBalance = newBalance
			decision.DidTopup = true
			return decision, nil
		}

		if txHash, dripped := s.attemptDrip(ctx, userAddress); dripped {
			// The drip receipt lets the client retry once funds land.
			decision.Mode = ModeBlockedNeedsGas
			decision.ReasonCode = ReasonDripSent
			decision.DripTxHash = txHash
			return decision, nil
		}
	}

	userBalance, err := s.reader.NativeBalance(ctx, userAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to read user balance: %w", err)
	}
	if userBalance.Cmp(s.cfg.DripAmount) >= 0 {
		decision.Mode = ModeUserPaidRequired
		decision.ReasonCode = ReasonUserHasGas
		return decision, nil
	}

	decision.Mode = ModeBlockedNeedsGas
	decision.ReasonCode = ReasonNoGasPath
	return decision, nil
}

// Peek evaluates the ladder without moving any funds, for dry-run requests.
// A below-threshold relayer with a configured funding wallet reports the
// top-up rung without sweeping.
func (s *Service) Peek(ctx context.Context, userAddress common.Address) (*Decision, error) {
	balance, err := s.reader.NativeBalance(ctx, s.relayer)
	if err != nil {
		return nil, fmt.Errorf("failed to read relayer balance: %w", err)
	}

	decision := &Decision{
		RelayerBalance: balance,
		MinBalance:     new(big.Int).Set(s.cfg.MinRelayerBalance),
	}

	if balance.Cmp(s.cfg.MinRelayerBalance) >= 0 {
		decision.Mode = ModeRelayed
		decision.ReasonCode = ReasonRelayerFunded
		return decision, nil
	}
	if s.source != nil {
		decision.Mode = ModeRelayedAfterTopup
		decision.ReasonCode = ReasonRelayerToppedUp
		return decision, nil
	}

	userBalance, err := s.reader.NativeBalance(ctx, userAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to read user balance: %w", err)
	}
	if userBalance.Cmp(s.cfg.DripAmount) >= 0 {
		decision.Mode = ModeUserPaidRequired
		decision.ReasonCode = ReasonUserHasGas
		return decision, nil
	}

	decision.Mode = ModeBlockedNeedsGas
	decision.ReasonCode = ReasonNoGasPath
	return decision, nil
}

// attemptTopup sweeps the shortfall from the funding wallet and waits,
// bounded by the top-up timeout, for the relayer balance to clear the
// threshold.
func (s *Service) attemptTopup(ctx context.Context, balance *big.Int) (bool, *big.Int) {
	shortfall := new(big.Int).Sub(s.cfg.TopupTarget, balance)
	if shortfall.Sign() <= 0 {
		shortfall = new(big.Int).Set(s.cfg.MinRelayerBalance)
	}

	topupCtx, cancel := context.WithTimeout(ctx, s.cfg.TopupTimeout)
	defer cancel()

	txHash, err := s.source.Transfer(topupCtx, s.relayer, shortfall)
	if err != nil {
		logger.Warn("Relayer top-up sweep failed",
			zap.String("relayer", s.relayer.Hex()),
			zap.Error(err),
		)
		return false, balance
	}

	logger.Info("Relayer top-up submitted",
		zap.String("tx_hash", txHash.Hex()),
		zap.String("shortfall_wei", shortfall.String()),
	)

	// Re-read until the threshold clears or the budget runs out.
	var newBalance *big.Int
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), topupCtx)
	err = backoff.Retry(func() error {
		b, err := s.reader.NativeBalance(topupCtx, s.relayer)
		if err != nil {
			return err
		}
		if b.Cmp(s.cfg.MinRelayerBalance) < 0 {
			return fmt.Errorf("relayer balance %s still below threshold", b.String())
		}
		newBalance = b
		return nil
	}, policy)
	if err != nil {
		logger.Warn("Relayer top-up did not clear threshold in time", zap.Error(err))
		return false, balance
	}

	return true, newBalance
}

// attemptDrip sends a capped gas-sponsorship drip to the user's wallet.
func (s *Service) attemptDrip(ctx context.Context, userAddress common.Address) (string, bool) {
	count, err := s.queries.CountDripsForWallet(ctx, userAddress.Hex())
	if err != nil {
		logger.Warn("Failed to count drips for wallet", zap.Error(err))
		return "", false
	}
	if count >= s.cfg.DripMaxPerWallet {
		return "", false
	}

	txHash, err := s.source.Transfer(ctx, userAddress, s.cfg.DripAmount)
	if err != nil {
		logger.Warn("Gas drip transfer failed",
			zap.String("wallet", userAddress.Hex()),
			zap.Error(err),
		)
		return "", false
	}

	if _, err := s.queries.CreateGasDrip(ctx, db.CreateGasDripParams{
		ID:            uuid.New(),
		WalletAddress: userAddress.Hex(),
		AmountWei:     s.cfg.DripAmount.String(),
		TxHash:        txHash.Hex(),
	}); err != nil {
		logger.Error("Failed to record gas drip", zap.Error(err))
	}

	logger.Info("Gas drip sent",
		zap.String("wallet", userAddress.Hex()),
		zap.String("tx_hash", txHash.Hex()),
	)

	return txHash.Hex(), true
}
