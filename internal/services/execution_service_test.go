package services_test

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/blossomfi/blossom-api/internal/chain"
	"github.com/blossomfi/blossom-api/internal/db"
	"github.com/blossomfi/blossom-api/internal/funding"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/mocks"
	"github.com/blossomfi/blossom-api/internal/plan"
	"github.com/blossomfi/blossom-api/internal/policy"
	"github.com/blossomfi/blossom-api/internal/routing"
	"github.com/blossomfi/blossom-api/internal/services"
)

func init() {
	logger.Init("test")
}

var (
	testUser     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRelayer  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	swapAdapter  = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	actionRouter = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	usdc         = common.HexToAddress("0xC1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1C1")
	weth         = common.HexToAddress("0xC2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2C2")
)

const testSessionID = "0xabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcd"

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

// allowAllChecker stands in for the on-chain adapter allowlist.
type allowAllChecker struct{}

func (allowAllChecker) IsAdapterAllowed(context.Context, common.Address) (bool, error) {
	return true, nil
}

// fakeRelayer counts submissions and hands out one fixed hash.
type fakeRelayer struct {
	submits atomic.Int64
}

func (r *fakeRelayer) Address() common.Address { return testRelayer }

func (r *fakeRelayer) Submit(_ context.Context, _ common.Address, _ []byte, _ *big.Int) (common.Hash, error) {
	r.submits.Add(1)
	return common.HexToHash("0xfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeed"), nil
}

// fakeReceipts confirms every transaction, optionally after a delay so tests
// can overlap concurrent requests.
type fakeReceipts struct {
	delay time.Duration
}

func (f *fakeReceipts) WaitForReceipt(_ context.Context, _ common.Hash, _, _ time.Duration) (chain.ReceiptStatus, *coretypes.Receipt, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return chain.ReceiptConfirmed, &coretypes.Receipt{
		Status:            coretypes.ReceiptStatusSuccessful,
		GasUsed:           150_000,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
	}, nil
}

// balanceReader serves fixed native balances.
type balanceReader struct {
	balances map[common.Address]*big.Int
}

func (r *balanceReader) NativeBalance(_ context.Context, addr common.Address) (*big.Int, error) {
	if b, ok := r.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// richCollateral reports ample settled collateral on every chain.
type richCollateral struct{}

func (richCollateral) CollateralUsdCents(context.Context, string, string, string) (int64, error) {
	return 1_000_000, nil
}

type noopBridge struct{}

func (noopBridge) Credit(_ context.Context, p routing.CreditParams) (int64, error) {
	return p.AmountUsdCents, nil
}

func activeSnapshot() *chain.SessionSnapshot {
	return &chain.SessionSnapshot{
		ID:              testSessionID,
		Owner:           testUser,
		Executor:        testRelayer,
		ExpiresAt:       fixedNow().Add(time.Hour),
		MaxSpend:        100_000,
		Spent:           0,
		Active:          true,
		AllowedAdapters: []common.Address{swapAdapter},
	}
}

func swapRequest() services.ExecuteRequest {
	return services.ExecuteRequest{
		DraftID:     "draft-1",
		SessionID:   testSessionID,
		UserAddress: testUser,
		Plan: &plan.ActionPlan{
			User:     testUser,
			Nonce:    42,
			Deadline: fixedNow().Add(2 * time.Minute),
			Actions: []plan.Action{{
				Kind:    plan.KindSwap,
				Adapter: swapAdapter,
				Payload: plan.SwapPayload{TokenIn: usdc, TokenOut: weth, AmountIn: 5_000},
			}},
		},
	}
}

type fixture struct {
	svc     *services.ExecutionService
	relayer *fakeRelayer
	querier *mocks.MockQuerier
	reader  *balanceReader
}

func newFixture(t *testing.T, snap *chain.SessionSnapshot, relayerBalance *big.Int, receiptDelay time.Duration) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	querier := mocks.NewMockQuerier(ctrl)
	relayer := &fakeRelayer{}

	validator := plan.NewValidator(plan.ValidatorConfig{
		AllowedTokens:      []common.Address{usdc, weth},
		Adapters:           map[plan.Kind]common.Address{plan.KindSwap: swapAdapter},
		MaxSwapAmountUnits: 1_000_000,
	}, allowAllChecker{}, fixedNow)

	reader := &balanceReader{balances: map[common.Address]*big.Int{testRelayer: relayerBalance}}
	fundingSvc := funding.NewService(reader, testRelayer, nil, querier, funding.Config{
		MinRelayerBalance: big.NewInt(3_000_000_000_000_000),
		TopupTarget:       big.NewInt(10_000_000_000_000_000),
		TopupTimeout:      time.Second,
		DripAmount:        big.NewInt(1_000_000_000_000_000),
		DripMaxPerWallet:  3,
	})

	router := routing.NewRouter(richCollateral{}, noopBridge{}, querier,
		[]string{"base-sepolia", "solana-devnet"}, time.Second)

	lookup := func(context.Context, string) (*chain.SessionSnapshot, error) { return snap, nil }

	svc := services.NewExecutionService(
		validator, policy.NewEngine(fixedNow), lookup, fundingSvc, router,
		relayer, &fakeReceipts{delay: receiptDelay}, querier,
		services.ExecutionConfig{
			Chain:           "base-sepolia",
			Network:         "testnet",
			ExplorerBaseURL: "https://sepolia.basescan.org",
			ActionRouter:    actionRouter,
			AllowedAdapters: []common.Address{swapAdapter},
			ReceiptTimeout:  time.Second,
			ReceiptInterval: 10 * time.Millisecond,
		}, fixedNow)

	return &fixture{svc: svc, relayer: relayer, querier: querier, reader: reader}
}

func expectFreshQueueEntry(f *fixture) {
	f.querier.EXPECT().GetQueueEntry(gomock.Any(), gomock.Any()).Return(db.QueueEntry{}, pgx.ErrNoRows)
	f.querier.EXPECT().CreateQueueEntry(gomock.Any(), gomock.Any()).Return(db.QueueEntry{}, nil)
}

func expectHappySubmission(f *fixture) {
	f.querier.EXPECT().GetCrossChainRoute(gomock.Any(), gomock.Any()).Return(db.CrossChainRoute{}, pgx.ErrNoRows)
	f.querier.EXPECT().CreateCrossChainRoute(gomock.Any(), gomock.Any()).Return(db.CrossChainRoute{}, nil)
	f.querier.EXPECT().CreateExecution(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, arg db.CreateExecutionParams) (db.Execution, error) {
			return db.Execution{ID: arg.ID}, nil
		})
	f.querier.EXPECT().UpdateExecutionStatus(gomock.Any(), gomock.Any()).Return(db.Execution{}, nil)
	f.querier.EXPECT().FinalizeQueueEntry(gomock.Any(), gomock.Any()).Return(db.QueueEntry{}, nil)
}

func TestExecuteRelayed_ConfirmedEndToEnd(t *testing.T) {
	f := newFixture(t, activeSnapshot(), big.NewInt(10_000_000_000_000_000), 0)
	expectFreshQueueEntry(f)
	expectHappySubmission(f)

	result, err := f.svc.ExecuteRelayed(context.Background(), swapRequest())
	require.NoError(t, err)

	assert.Equal(t, services.StatusConfirmed, result.Status)
	assert.Equal(t, "EXECUTED", result.Code)
	assert.NotEmpty(t, result.TxHash)
	assert.NotEmpty(t, result.ExecutionID)
	assert.NotEmpty(t, result.ContentHash)
	assert.NotEmpty(t, result.QueueKey)
	assert.Contains(t, result.ExplorerURL, result.TxHash)
	require.NotNil(t, result.Policy)
	assert.True(t, result.Policy.Allowed)
	require.NotNil(t, result.Meta)
	assert.Equal(t, funding.ModeRelayed, result.Meta.Funding.Mode)
	assert.False(t, result.Meta.Route.DidRoute)
	assert.Equal(t, int64(1), f.relayer.submits.Load())
}

func TestExecuteRelayed_ConcurrentDuplicatesShareOneSubmission(t *testing.T) {
	f := newFixture(t, activeSnapshot(), big.NewInt(10_000_000_000_000_000), 150*time.Millisecond)
	expectFreshQueueEntry(f)
	expectHappySubmission(f)

	req := swapRequest()

	var wg sync.WaitGroup
	results := make([]*services.ExecuteResult, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.svc.ExecuteRelayed(context.Background(), req)
	}()
	time.Sleep(30 * time.Millisecond) // let the first request take the key
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = f.svc.ExecuteRelayed(context.Background(), req)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int64(1), f.relayer.submits.Load())
	assert.Equal(t, services.StatusConfirmed, results[0].Status)
	assert.Equal(t, results[0].TxHash, results[1].TxHash)
	assert.Equal(t, results[0].ExecutionID, results[1].ExecutionID)
}

func TestExecuteRelayed_ReplaysStoredTerminalResult(t *testing.T) {
	f := newFixture(t, activeSnapshot(), big.NewInt(10_000_000_000_000_000), 0)

	stored := services.ExecuteResult{
		Status:      services.StatusConfirmed,
		Code:        "EXECUTED",
		TxHash:      "0x1234",
		ExecutionID: "11111111-1111-1111-1111-111111111111",
	}
	raw, err := json.Marshal(stored)
	require.NoError(t, err)

	f.querier.EXPECT().GetQueueEntry(gomock.Any(), gomock.Any()).
		Return(db.QueueEntry{Status: db.QueueStatusDone, Result: raw}, nil)

	result, err := f.svc.ExecuteRelayed(context.Background(), swapRequest())
	require.NoError(t, err)

	// The stored result comes back verbatim; nothing re-executes.
	assert.True(t, result.Replayed)
	assert.Equal(t, stored.Status, result.Status)
	assert.Equal(t, stored.TxHash, result.TxHash)
	assert.Equal(t, stored.ExecutionID, result.ExecutionID)
	assert.Equal(t, int64(0), f.relayer.submits.Load())
}

func TestExecuteRelayed_DenialReleasesQueueKey(t *testing.T) {
	snap := activeSnapshot()
	snap.Spent = snap.MaxSpend // nothing left to spend

	f := newFixture(t, snap, big.NewInt(10_000_000_000_000_000), 0)
	expectFreshQueueEntry(f)
	f.querier.EXPECT().DeleteQueueEntry(gomock.Any(), gomock.Any()).Return(nil)

	result, err := f.svc.ExecuteRelayed(context.Background(), swapRequest())
	require.NoError(t, err)

	assert.Equal(t, services.StatusDenied, result.Status)
	assert.Equal(t, policy.CodeSpendCapExceeded, result.Code)
	assert.Equal(t, int64(0), f.relayer.submits.Load())
}

func TestExecuteRelayed_BlockedWithoutGasPath(t *testing.T) {
	// Relayer broke, no funding wallet, user broke: the ladder blocks.
	f := newFixture(t, activeSnapshot(), big.NewInt(0), 0)
	expectFreshQueueEntry(f)
	f.querier.EXPECT().DeleteQueueEntry(gomock.Any(), gomock.Any()).Return(nil)

	result, err := f.svc.ExecuteRelayed(context.Background(), swapRequest())
	require.NoError(t, err)

	assert.Equal(t, services.StatusBlocked, result.Status)
	assert.Equal(t, funding.ReasonNoGasPath, result.Code)
	assert.Equal(t, int64(0), f.relayer.submits.Load())
}

func TestExecuteRelayed_RetrySucceedsAfterFundingRecovers(t *testing.T) {
	// A funding block is not terminal: once the relayer holds gas again,
	// retrying the same draft must run the full gate sequence and submit.
	f := newFixture(t, activeSnapshot(), big.NewInt(0), 0)

	expectFreshQueueEntry(f)
	f.querier.EXPECT().DeleteQueueEntry(gomock.Any(), gomock.Any()).Return(nil)

	req := swapRequest()
	first, err := f.svc.ExecuteRelayed(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, services.StatusBlocked, first.Status)
	require.Equal(t, funding.ReasonNoGasPath, first.Code)
	require.Equal(t, int64(0), f.relayer.submits.Load())

	f.reader.balances[testRelayer] = big.NewInt(10_000_000_000_000_000)

	expectFreshQueueEntry(f)
	expectHappySubmission(f)

	second, err := f.svc.ExecuteRelayed(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, services.StatusConfirmed, second.Status)
	assert.False(t, second.Replayed)
	assert.NotEmpty(t, second.TxHash)
	assert.Equal(t, int64(1), f.relayer.submits.Load())
}

func TestExecuteRelayed_InvalidPlanNeverSubmits(t *testing.T) {
	f := newFixture(t, activeSnapshot(), big.NewInt(10_000_000_000_000_000), 0)
	expectFreshQueueEntry(f)
	f.querier.EXPECT().DeleteQueueEntry(gomock.Any(), gomock.Any()).Return(nil)

	req := swapRequest()
	req.Plan.Actions[0].Payload = plan.SwapPayload{
		TokenIn:  common.HexToAddress("0xDEADDEADDEADDEADDEADDEADDEADDEADDEADDEAD"),
		TokenOut: weth,
		AmountIn: 100,
	}

	result, err := f.svc.ExecuteRelayed(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, services.StatusInvalid, result.Status)
	assert.Equal(t, plan.CodeTokenNotAllowed, result.Code)
	assert.Equal(t, int64(0), f.relayer.submits.Load())
}

func TestExecuteRelayed_DryRunTouchesNothing(t *testing.T) {
	f := newFixture(t, activeSnapshot(), big.NewInt(10_000_000_000_000_000), 0)
	// No querier expectations: a dry run must not touch the queue, the
	// route memo, or the ledger.

	req := swapRequest()
	req.ValidateOnly = true

	result, err := f.svc.ExecuteRelayed(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, services.StatusDryRun, result.Status)
	assert.True(t, result.WouldAllow)
	assert.NotEmpty(t, result.ContentHash)
	assert.Empty(t, result.TxHash)
	require.NotNil(t, result.Meta)
	assert.Equal(t, funding.ModeRelayed, result.Meta.Funding.Mode)
	assert.Equal(t, int64(0), f.relayer.submits.Load())
}

func TestQueueKey_Deterministic(t *testing.T) {
	k1 := services.QueueKey("draft-1", testUser, testSessionID, 42)
	k2 := services.QueueKey("draft-1", testUser, testSessionID, 42)
	k3 := services.QueueKey("draft-1", testUser, testSessionID, 43)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 66)
}
