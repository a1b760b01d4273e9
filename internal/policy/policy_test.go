package policy_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blossomfi/blossom-api/internal/chain"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/plan"
	"github.com/blossomfi/blossom-api/internal/policy"
)

func init() {
	logger.Init("test")
}

var (
	owner       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherWallet = common.HexToAddress("0x2222222222222222222222222222222222222222")
	adapterA    = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	adapterB    = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	tokenUSDC   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	tokenWETH   = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

const sessionID = "0xabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcd"

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func activeSnapshot() *chain.SessionSnapshot {
	return &chain.SessionSnapshot{
		ID:              sessionID,
		Owner:           owner,
		Executor:        common.HexToAddress("0x5555555555555555555555555555555555555555"),
		ExpiresAt:       fixedNow().Add(time.Hour),
		MaxSpend:        1000,
		Spent:           0,
		Active:          true,
		AllowedAdapters: []common.Address{adapterA},
	}
}

func swapPlan(user common.Address, adapter common.Address, amount int64) *plan.ActionPlan {
	return &plan.ActionPlan{
		User:     user,
		Nonce:    42,
		Deadline: fixedNow().Add(2 * time.Minute),
		Actions: []plan.Action{{
			Kind:    plan.KindSwap,
			Adapter: adapter,
			Payload: plan.SwapPayload{
				TokenIn:  tokenUSDC,
				TokenOut: tokenWETH,
				AmountIn: amount,
			},
		}},
	}
}

func lookupFor(snap *chain.SessionSnapshot) policy.SessionLookup {
	return func(context.Context, string) (*chain.SessionSnapshot, error) {
		return snap, nil
	}
}

func TestEngine_Evaluate(t *testing.T) {
	engine := policy.NewEngine(fixedNow)
	ctx := context.Background()

	tests := []struct {
		name        string
		snapshot    func() *chain.SessionSnapshot
		params      func(snap *chain.SessionSnapshot) policy.EvaluateParams
		wantAllowed bool
		wantCode    string
	}{
		{
			name:     "active session within cap is allowed",
			snapshot: activeSnapshot,
			params: func(snap *chain.SessionSnapshot) policy.EvaluateParams {
				return policy.EvaluateParams{
					SessionID:       sessionID,
					UserAddress:     owner,
					Plan:            swapPlan(owner, adapterA, 500),
					AllowedAdapters: []common.Address{adapterA},
					Lookup:          lookupFor(snap),
				}
			},
			wantAllowed: true,
			wantCode:    policy.CodeAllowed,
		},
		{
			name: "expired session is denied",
			snapshot: func() *chain.SessionSnapshot {
				snap := activeSnapshot()
				snap.ExpiresAt = fixedNow().Add(-time.Minute)
				return snap
			},
			params: func(snap *chain.SessionSnapshot) policy.EvaluateParams {
				return policy.EvaluateParams{
					SessionID:       sessionID,
					UserAddress:     owner,
					Plan:            swapPlan(owner, adapterA, 100),
					AllowedAdapters: []common.Address{adapterA},
					Lookup:          lookupFor(snap),
				}
			},
			wantAllowed: false,
			wantCode:    policy.CodeSessionExpired,
		},
		{
			name: "revoked session is denied",
			snapshot: func() *chain.SessionSnapshot {
				snap := activeSnapshot()
				snap.Active = false
				return snap
			},
			params: func(snap *chain.SessionSnapshot) policy.EvaluateParams {
				return policy.EvaluateParams{
					SessionID:       sessionID,
					UserAddress:     owner,
					Plan:            swapPlan(owner, adapterA, 100),
					AllowedAdapters: []common.Address{adapterA},
					Lookup:          lookupFor(snap),
				}
			},
			wantAllowed: false,
			wantCode:    policy.CodeSessionRevoked,
		},
		{
			name: "uncreated session is denied",
			snapshot: func() *chain.SessionSnapshot {
				return &chain.SessionSnapshot{ID: sessionID}
			},
			params: func(snap *chain.SessionSnapshot) policy.EvaluateParams {
				return policy.EvaluateParams{
					SessionID:       sessionID,
					UserAddress:     owner,
					Plan:            swapPlan(owner, adapterA, 100),
					AllowedAdapters: []common.Address{adapterA},
					Lookup:          lookupFor(snap),
				}
			},
			wantAllowed: false,
			wantCode:    policy.CodeSessionNotCreated,
		},
		{
			name:     "caller who is not the owner is denied",
			snapshot: activeSnapshot,
			params: func(snap *chain.SessionSnapshot) policy.EvaluateParams {
				return policy.EvaluateParams{
					SessionID:       sessionID,
					UserAddress:     otherWallet,
					Plan:            swapPlan(otherWallet, adapterA, 100),
					AllowedAdapters: []common.Address{adapterA},
					Lookup:          lookupFor(snap),
				}
			},
			wantAllowed: false,
			wantCode:    policy.CodeOwnerMismatch,
		},
		{
			name: "adapter outside the session allowlist is denied",
			snapshot: func() *chain.SessionSnapshot {
				snap := activeSnapshot()
				snap.AllowedAdapters = []common.Address{adapterB}
				return snap
			},
			params: func(snap *chain.SessionSnapshot) policy.EvaluateParams {
				return policy.EvaluateParams{
					SessionID:       sessionID,
					UserAddress:     owner,
					Plan:            swapPlan(owner, adapterA, 100),
					AllowedAdapters: []common.Address{adapterA, adapterB},
					Lookup:          lookupFor(snap),
				}
			},
			wantAllowed: false,
			wantCode:    policy.CodeAdapterNotAllowed,
		},
		{
			name: "adapter outside the router allowlist is denied even when the session allows it",
			snapshot: func() *chain.SessionSnapshot {
				snap := activeSnapshot()
				snap.AllowedAdapters = []common.Address{adapterA}
				return snap
			},
			params: func(snap *chain.SessionSnapshot) policy.EvaluateParams {
				return policy.EvaluateParams{
					SessionID:       sessionID,
					UserAddress:     owner,
					Plan:            swapPlan(owner, adapterA, 100),
					AllowedAdapters: []common.Address{adapterB},
					Lookup:          lookupFor(snap),
				}
			},
			wantAllowed: false,
			wantCode:    policy.CodeAdapterNotAllowed,
		},
		{
			name: "spend that would cross the cap is denied, never downsized",
			snapshot: func() *chain.SessionSnapshot {
				snap := activeSnapshot()
				snap.MaxSpend = 1000
				snap.Spent = 900
				return snap
			},
			params: func(snap *chain.SessionSnapshot) policy.EvaluateParams {
				return policy.EvaluateParams{
					SessionID:       sessionID,
					UserAddress:     owner,
					Plan:            swapPlan(owner, adapterA, 150),
					AllowedAdapters: []common.Address{adapterA},
					Lookup:          lookupFor(snap),
				}
			},
			wantAllowed: false,
			wantCode:    policy.CodeSpendCapExceeded,
		},
		{
			name: "spend exactly at the cap is allowed",
			snapshot: func() *chain.SessionSnapshot {
				snap := activeSnapshot()
				snap.MaxSpend = 1000
				snap.Spent = 900
				return snap
			},
			params: func(snap *chain.SessionSnapshot) policy.EvaluateParams {
				return policy.EvaluateParams{
					SessionID:       sessionID,
					UserAddress:     owner,
					Plan:            swapPlan(owner, adapterA, 100),
					AllowedAdapters: []common.Address{adapterA},
					Lookup:          lookupFor(snap),
				}
			},
			wantAllowed: true,
			wantCode:    policy.CodeAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := tt.snapshot()
			result, err := engine.Evaluate(ctx, tt.params(snap))
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllowed, result.Allowed)
			assert.Equal(t, tt.wantCode, result.Code)
		})
	}
}

func TestEngine_Evaluate_NonDeterminableSpend(t *testing.T) {
	engine := policy.NewEngine(fixedNow)
	snap := activeSnapshot()

	p := swapPlan(owner, adapterA, 100)
	p.Actions[0].Payload = plan.SwapPayload{TokenIn: tokenUSDC, TokenOut: tokenWETH, AmountIn: 0}

	result, err := engine.Evaluate(context.Background(), policy.EvaluateParams{
		SessionID:       sessionID,
		UserAddress:     owner,
		Plan:            p,
		AllowedAdapters: []common.Address{adapterA},
		Lookup:          lookupFor(snap),
	})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, policy.CodeSpendNotDeterminable, result.Code)
}

func TestEngine_Evaluate_WithdrawalsAreSpendFree(t *testing.T) {
	engine := policy.NewEngine(fixedNow)
	snap := activeSnapshot()
	snap.MaxSpend = 100
	snap.Spent = 100 // fully spent; only spend-free actions can pass

	p := &plan.ActionPlan{
		User:     owner,
		Nonce:    7,
		Deadline: fixedNow().Add(time.Minute),
		Actions: []plan.Action{{
			Kind:    plan.KindDefi,
			Adapter: adapterA,
			Payload: plan.DefiPayload{
				Protocol: "blossom-lend",
				Op:       plan.DefiWithdraw,
				Token:    tokenUSDC,
			},
		}},
	}

	result, err := engine.Evaluate(context.Background(), policy.EvaluateParams{
		SessionID:       sessionID,
		UserAddress:     owner,
		Plan:            p,
		AllowedAdapters: []common.Address{adapterA},
		Lookup:          lookupFor(snap),
	})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, policy.CodeAllowed, result.Code)
}

func TestEngine_Evaluate_TestOverrideBypassesOnlyStatus(t *testing.T) {
	engine := policy.NewEngine(fixedNow)
	snap := activeSnapshot()
	snap.ExpiresAt = fixedNow().Add(-time.Hour) // expired

	// Status is bypassed, but the owner check still runs.
	result, err := engine.Evaluate(context.Background(), policy.EvaluateParams{
		SessionID:       sessionID,
		UserAddress:     otherWallet,
		Plan:            swapPlan(otherWallet, adapterA, 50),
		AllowedAdapters: []common.Address{adapterA},
		Lookup:          lookupFor(snap),
		TestOverride:    true,
	})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, policy.CodeOwnerMismatch, result.Code)

	// With a matching owner the expired session passes under the override.
	result, err = engine.Evaluate(context.Background(), policy.EvaluateParams{
		SessionID:       sessionID,
		UserAddress:     owner,
		Plan:            swapPlan(owner, adapterA, 50),
		AllowedAdapters: []common.Address{adapterA},
		Lookup:          lookupFor(snap),
		TestOverride:    true,
	})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
