package plan

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ABI component types for adapter payload encoding.
func mustType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid abi type %q: %v", t, err))
	}
	return ty
}

var (
	typeAddress = mustType("address")
	typeUint256 = mustType("uint256")
	typeUint32  = mustType("uint32")
	typeUint8   = mustType("uint8")
	typeBytes32 = mustType("bytes32")
	typeBytes   = mustType("bytes")
)

var (
	swapArgs = abi.Arguments{
		{Type: typeAddress}, {Type: typeAddress}, {Type: typeUint256}, {Type: typeUint256},
	}
	perpArgs = abi.Arguments{
		{Type: typeBytes32}, {Type: typeUint8}, {Type: typeUint256}, {Type: typeUint32},
	}
	defiArgs = abi.Arguments{
		{Type: typeBytes32}, {Type: typeUint8}, {Type: typeAddress}, {Type: typeUint256},
	}
	eventArgs = abi.Arguments{
		{Type: typeBytes32}, {Type: typeBytes32}, {Type: typeUint8}, {Type: typeUint256},
	}
	capArgs = abi.Arguments{
		{Type: typeUint256}, {Type: typeBytes},
	}
)

// encodeInner packs a payload into the adapter's expected calldata shape.
func encodeInner(p Payload) ([]byte, error) {
	switch v := p.(type) {
	case SwapPayload:
		return swapArgs.Pack(v.TokenIn, v.TokenOut, big.NewInt(v.AmountIn), big.NewInt(v.MinAmountOut))
	case PerpPayload:
		var side uint8
		if v.Side == "short" {
			side = 1
		}
		return perpArgs.Pack(label32(v.Market), side, big.NewInt(v.CollateralUnits), uint32(v.Leverage))
	case DefiPayload:
		var op uint8
		if v.Op == DefiWithdraw {
			op = 1
		}
		return defiArgs.Pack(label32(v.Protocol), op, v.Token, big.NewInt(v.AmountUnits))
	case EventPayload:
		var op uint8
		if v.Op == EventClaim {
			op = 1
		}
		return eventArgs.Pack(label32(v.MarketID), label32(v.Outcome), op, big.NewInt(v.StakeUnits))
	default:
		return nil, fmt.Errorf("unsupported payload kind %q", p.Kind())
	}
}

// EncodeAction wraps the payload with the session spend-cap header
// (maxSpendUnits, innerData) expected by every adapter under session auth.
func EncodeAction(a Action, maxSpendUnits int64) ([]byte, error) {
	inner, err := encodeInner(a.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", a.Kind, err)
	}
	wrapped, err := capArgs.Pack(big.NewInt(maxSpendUnits), inner)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap payload with spend cap: %w", err)
	}
	return wrapped, nil
}

var (
	typeUint64     = mustType("uint64")
	typeActionList = mustActionList()

	executeArgs = abi.Arguments{
		{Type: typeBytes32}, {Type: typeAddress}, {Type: typeUint64}, {Type: typeUint64}, {Type: typeActionList},
	}
)

func mustActionList() abi.Type {
	ty, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "adapter", Type: "address"},
		{Name: "data", Type: "bytes"},
	})
	if err != nil {
		panic(fmt.Sprintf("invalid action list type: %v", err))
	}
	return ty
}

// executeSelector is the 4-byte method id of the router's entrypoint,
// executePlan(bytes32,address,uint64,uint64,(address,bytes)[]).
var executeSelector = crypto.Keccak256([]byte("executePlan(bytes32,address,uint64,uint64,(address,bytes)[])"))[:4]

// EncodePlanCall builds the router calldata executing the whole plan under
// the given session, with every action capped at maxSpendUnits.
func EncodePlanCall(sessionID [32]byte, p *ActionPlan, maxSpendUnits int64) ([]byte, error) {
	type routerAction struct {
		Adapter common.Address
		Data    []byte
	}
	actions := make([]routerAction, len(p.Actions))
	for i, a := range p.Actions {
		data, err := EncodeAction(a, maxSpendUnits)
		if err != nil {
			return nil, err
		}
		actions[i] = routerAction{Adapter: a.Adapter, Data: data}
	}

	packed, err := executeArgs.Pack(sessionID, p.User, p.Nonce, uint64(p.Deadline.Unix()), actions)
	if err != nil {
		return nil, fmt.Errorf("failed to pack plan call: %w", err)
	}
	return append(append([]byte{}, executeSelector...), packed...), nil
}

// label32 left-aligns a short string label into a bytes32, truncating past 32.
func label32(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}
