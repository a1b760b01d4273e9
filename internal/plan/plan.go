package plan

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind is the closed set of action kinds an adapter can perform.
type Kind string

const (
	KindSwap  Kind = "swap"
	KindPerp  Kind = "perp"
	KindDefi  Kind = "defi"
	KindEvent Kind = "event"
)

// Valid reports whether k is a known action kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSwap, KindPerp, KindDefi, KindEvent:
		return true
	default:
		return false
	}
}

// Payload is the typed, per-kind body of an action. The set of
// implementations is closed so encoders and spend estimation stay
// exhaustiveness-checked.
type Payload interface {
	Kind() Kind
	isPayload()
}

// SwapPayload swaps AmountIn of TokenIn for at least MinAmountOut of TokenOut.
// Amounts are in spend units (USD cents equivalent of the session contract).
type SwapPayload struct {
	TokenIn      common.Address `json:"token_in"`
	TokenOut     common.Address `json:"token_out"`
	AmountIn     int64          `json:"amount_in"`
	MinAmountOut int64          `json:"min_amount_out"`
}

func (SwapPayload) Kind() Kind { return KindSwap }
func (SwapPayload) isPayload() {}

// PerpPayload opens a leveraged perpetual position.
type PerpPayload struct {
	Market          string `json:"market"`
	Side            string `json:"side"` // "long" or "short"
	CollateralUnits int64  `json:"collateral_units"`
	Leverage        int32  `json:"leverage"`
}

func (PerpPayload) Kind() Kind { return KindPerp }
func (PerpPayload) isPayload() {}

// DefiOp is the closed set of defi adapter operations.
type DefiOp string

const (
	DefiSupply   DefiOp = "supply"
	DefiWithdraw DefiOp = "withdraw"
)

// DefiPayload supplies to or withdraws from a lending protocol.
type DefiPayload struct {
	Protocol    string         `json:"protocol"`
	Op          DefiOp         `json:"op"`
	Token       common.Address `json:"token"`
	AmountUnits int64          `json:"amount_units"`
}

func (DefiPayload) Kind() Kind { return KindDefi }
func (DefiPayload) isPayload() {}

// EventOp is the closed set of event-market operations.
type EventOp string

const (
	EventStake EventOp = "stake"
	EventClaim EventOp = "claim"
)

// EventPayload stakes on, or claims from, a prediction-market outcome.
type EventPayload struct {
	MarketID   string  `json:"market_id"`
	Outcome    string  `json:"outcome"`
	Op         EventOp `json:"op"`
	StakeUnits int64   `json:"stake_units"`
}

func (EventPayload) Kind() Kind { return KindEvent }
func (EventPayload) isPayload() {}

// Action is one adapter call within a plan.
type Action struct {
	Kind    Kind           `json:"kind"`
	Adapter common.Address `json:"adapter"`
	Payload Payload        `json:"payload"`
}

// ActionPlan is the normalized, on-chain-encodable description of 1-4
// adapter calls executed atomically under a session.
type ActionPlan struct {
	User     common.Address `json:"user"`
	Nonce    uint64         `json:"nonce"`
	Deadline time.Time      `json:"deadline"`
	Actions  []Action       `json:"actions"`
}

// MaxActions bounds a plan; MaxDeadlineWindow bounds how far out a deadline
// may sit. Both are hard limits, not defaults.
const (
	MaxActions        = 4
	MaxDeadlineWindow = 600 * time.Second
	DefaultDeadline   = 300 * time.Second
)

// NewNonce produces a collision-resistant nonce from the clock plus random
// low bits, so two plans normalized in the same millisecond still differ.
func NewNonce(now time.Time) uint64 {
	return uint64(now.UnixMilli())<<20 | uint64(rand.Int63n(1<<20))
}

// ContentHash computes the plan's canonical hash server-side. Callers may
// send a hash for display purposes but it is never trusted.
func (p *ActionPlan) ContentHash() (common.Hash, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, p.User.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, p.Nonce)
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Deadline.Unix()))
	for _, a := range p.Actions {
		buf = append(buf, []byte(a.Kind)...)
		buf = append(buf, a.Adapter.Bytes()...)
		inner, err := encodeInner(a.Payload)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to encode action payload: %w", err)
		}
		buf = append(buf, crypto.Keccak256(inner)...)
	}
	return common.BytesToHash(crypto.Keccak256(buf)), nil
}

// SpendEstimate is the decoded spend of one action, feeding the policy
// engine. Non-determinable spend is treated conservatively there.
type SpendEstimate struct {
	Instrument   string
	SpendUnits   int64
	Determinable bool
}

// EstimateSpend decodes an action's payload into its spend estimate.
// Withdrawals and claims move funds toward the user and are spend-free.
func EstimateSpend(a Action) SpendEstimate {
	switch p := a.Payload.(type) {
	case SwapPayload:
		return SpendEstimate{Instrument: "swap", SpendUnits: p.AmountIn, Determinable: p.AmountIn > 0}
	case PerpPayload:
		return SpendEstimate{Instrument: "perp", SpendUnits: p.CollateralUnits, Determinable: p.CollateralUnits > 0}
	case DefiPayload:
		if p.Op == DefiWithdraw {
			return SpendEstimate{Instrument: "defi_withdraw", SpendUnits: 0, Determinable: true}
		}
		return SpendEstimate{Instrument: "defi_supply", SpendUnits: p.AmountUnits, Determinable: p.AmountUnits > 0}
	case EventPayload:
		if p.Op == EventClaim {
			return SpendEstimate{Instrument: "event_claim", SpendUnits: 0, Determinable: true}
		}
		return SpendEstimate{Instrument: "event_stake", SpendUnits: p.StakeUnits, Determinable: p.StakeUnits > 0}
	default:
		return SpendEstimate{Instrument: "unknown", Determinable: false}
	}
}

// TotalSpend sums the determinable spend across the plan. The second return
// is false when any action's spend could not be determined.
func (p *ActionPlan) TotalSpend() (int64, bool) {
	var total int64
	determinable := true
	for _, a := range p.Actions {
		est := EstimateSpend(a)
		if !est.Determinable {
			determinable = false
			continue
		}
		total += est.SpendUnits
	}
	return total, determinable
}
