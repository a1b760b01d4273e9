package parser_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blossomfi/blossom-api/internal/intent"
	"github.com/blossomfi/blossom-api/internal/parser"
	"github.com/blossomfi/blossom-api/internal/plan"
)

var (
	usdc = common.HexToAddress("0xC1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1")
	weth = common.HexToAddress("0xC2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2")
)

func newParser() *parser.Deterministic {
	return parser.NewDeterministic(map[string]common.Address{
		"USDC": usdc,
		"ETH":  weth,
	})
}

func TestDeterministic_ParseSwap(t *testing.T) {
	actions, err := newParser().Parse(context.Background(), "swap 50 USDC for ETH", intent.PathSwap)
	require.NoError(t, err)
	require.Len(t, actions, 1)

	assert.Equal(t, plan.KindSwap, actions[0].Kind)
	payload, ok := actions[0].Payload.(plan.SwapPayload)
	require.True(t, ok)
	assert.Equal(t, usdc, payload.TokenIn)
	assert.Equal(t, weth, payload.TokenOut)
	assert.Equal(t, int64(5000), payload.AmountIn)
}

func TestDeterministic_ParseSwap_TokenOrderFollowsText(t *testing.T) {
	actions, err := newParser().Parse(context.Background(), "trade 1.5 ETH into USDC", intent.PathSwap)
	require.NoError(t, err)

	payload := actions[0].Payload.(plan.SwapPayload)
	assert.Equal(t, weth, payload.TokenIn)
	assert.Equal(t, usdc, payload.TokenOut)
	assert.Equal(t, int64(150), payload.AmountIn)
}

func TestDeterministic_ParsePerp(t *testing.T) {
	actions, err := newParser().Parse(context.Background(), "short ETH with 200 at 3x", intent.PathPerp)
	require.NoError(t, err)

	payload, ok := actions[0].Payload.(plan.PerpPayload)
	require.True(t, ok)
	assert.Equal(t, "ETH-USD", payload.Market)
	assert.Equal(t, "short", payload.Side)
	assert.Equal(t, int32(3), payload.Leverage)
	assert.Equal(t, int64(20000), payload.CollateralUnits)
}

func TestDeterministic_ParsePerp_LeverageBeforeAmount(t *testing.T) {
	// The leverage term comes first here; it must not be read as collateral.
	actions, err := newParser().Parse(context.Background(), "long ETH 3x with 500 USDC", intent.PathPerp)
	require.NoError(t, err)

	payload := actions[0].Payload.(plan.PerpPayload)
	assert.Equal(t, "long", payload.Side)
	assert.Equal(t, int32(3), payload.Leverage)
	assert.Equal(t, int64(50000), payload.CollateralUnits)
}

func TestDeterministic_ParsePerp_DefaultsLongAtOneX(t *testing.T) {
	actions, err := newParser().Parse(context.Background(), "open an ETH position with 100", intent.PathPerp)
	require.NoError(t, err)

	payload := actions[0].Payload.(plan.PerpPayload)
	assert.Equal(t, "long", payload.Side)
	assert.Equal(t, int32(1), payload.Leverage)
}

func TestDeterministic_ParseDefi(t *testing.T) {
	actions, err := newParser().Parse(context.Background(), "supply 100 USDC", intent.PathDefi)
	require.NoError(t, err)

	payload, ok := actions[0].Payload.(plan.DefiPayload)
	require.True(t, ok)
	assert.Equal(t, plan.DefiSupply, payload.Op)
	assert.Equal(t, usdc, payload.Token)
	assert.Equal(t, int64(10000), payload.AmountUnits)
}

func TestDeterministic_ParseDefi_WithdrawNeedsNoAmount(t *testing.T) {
	actions, err := newParser().Parse(context.Background(), "withdraw my USDC", intent.PathDefi)
	require.NoError(t, err)

	payload := actions[0].Payload.(plan.DefiPayload)
	assert.Equal(t, plan.DefiWithdraw, payload.Op)
}

func TestDeterministic_ParseEvent(t *testing.T) {
	actions, err := newParser().Parse(context.Background(), "bet 20 on no", intent.PathEvent)
	require.NoError(t, err)

	payload, ok := actions[0].Payload.(plan.EventPayload)
	require.True(t, ok)
	assert.Equal(t, plan.EventStake, payload.Op)
	assert.Equal(t, "no", payload.Outcome)
	assert.Equal(t, int64(2000), payload.StakeUnits)
}

func TestDeterministic_ParseEvent_Claim(t *testing.T) {
	actions, err := newParser().Parse(context.Background(), "claim my winnings", intent.PathEvent)
	require.NoError(t, err)

	payload := actions[0].Payload.(plan.EventPayload)
	assert.Equal(t, plan.EventClaim, payload.Op)
}

func TestDeterministic_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		text string
		path intent.Path
	}{
		{name: "swap with one token", text: "swap 50 USDC", path: intent.PathSwap},
		{name: "swap without amount", text: "swap USDC for ETH", path: intent.PathSwap},
		{name: "perp without amount", text: "long ETH", path: intent.PathPerp},
		{name: "defi supply without amount", text: "supply USDC", path: intent.PathDefi},
		{name: "event stake without amount", text: "bet on yes", path: intent.PathEvent},
		{name: "unknown lane", text: "hello there", path: intent.PathUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newParser().Parse(context.Background(), tt.text, tt.path)
			assert.ErrorIs(t, err, parser.ErrUnparseable)
		})
	}
}
