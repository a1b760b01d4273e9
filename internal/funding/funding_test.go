package funding_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/blossomfi/blossom-api/internal/db"
	"github.com/blossomfi/blossom-api/internal/funding"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/mocks"
)

func init() {
	logger.Init("test")
}

var (
	relayerAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	fundingAddr = common.HexToAddress("0x1000000000000000000000000000000000000002")
	userAddr    = common.HexToAddress("0x1000000000000000000000000000000000000003")
)

func wei(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal: " + s)
	}
	return n
}

// fakeReader serves native balances from a mutable map.
type fakeReader struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

func newFakeReader() *fakeReader {
	return &fakeReader{balances: make(map[common.Address]*big.Int)}
}

func (r *fakeReader) set(addr common.Address, amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[addr] = new(big.Int).Set(amount)
}

func (r *fakeReader) NativeBalance(_ context.Context, addr common.Address) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// fakeSource transfers gas by crediting the fake reader, or fails when
// scripted to.
type fakeSource struct {
	reader    *fakeReader
	fail      bool
	transfers int
}

func (s *fakeSource) Address() common.Address { return fundingAddr }

func (s *fakeSource) Transfer(_ context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	if s.fail {
		return common.Hash{}, errors.New("funding wallet transfer failed")
	}
	s.transfers++
	s.reader.mu.Lock()
	current, ok := s.reader.balances[to]
	if !ok {
		current = big.NewInt(0)
	}
	s.reader.balances[to] = new(big.Int).Add(current, amount)
	s.reader.mu.Unlock()
	return common.HexToHash("0xfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeedfeed"), nil
}

func testConfig() funding.Config {
	return funding.Config{
		MinRelayerBalance: wei("3000000000000000"),  // 0.003 ETH
		TopupTarget:       wei("10000000000000000"), // 0.01 ETH
		TopupTimeout:      2 * time.Second,
		DripAmount:        wei("1000000000000000"), // 0.001 ETH
		DripMaxPerWallet:  3,
	}
}

func TestDecide_RelayerFunded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := newFakeReader()
	reader.set(relayerAddr, wei("5000000000000000"))

	svc := funding.NewService(reader, relayerAddr, nil, mocks.NewMockQuerier(ctrl), testConfig())

	decision, err := svc.Decide(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Equal(t, funding.ModeRelayed, decision.Mode)
	assert.Equal(t, funding.ReasonRelayerFunded, decision.ReasonCode)
	assert.True(t, decision.Relayable())
}

func TestDecide_TopupRecovers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := newFakeReader()
	reader.set(relayerAddr, wei("900000000000000")) // 0.0009 ETH, below threshold
	source := &fakeSource{reader: reader}

	svc := funding.NewService(reader, relayerAddr, source, mocks.NewMockQuerier(ctrl), testConfig())

	decision, err := svc.Decide(context.Background(), userAddr)
	require.NoError(t, err)

	// A successful top-up must never leave the request blocked.
	assert.Equal(t, funding.ModeRelayedAfterTopup, decision.Mode)
	assert.Equal(t, funding.ReasonRelayerToppedUp, decision.ReasonCode)
	assert.True(t, decision.DidTopup)
	assert.True(t, decision.Relayable())
	assert.Equal(t, 1, source.transfers)
	// Swept to the target, not just past the threshold.
	assert.Equal(t, wei("10000000000000000"), decision.RelayerBalance)
}

func TestDecide_DripWhenTopupFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := newFakeReader()
	reader.set(relayerAddr, wei("100000000000000"))

	// Every transfer fails, so both the top-up and the drip rung fall through.
	source := &fakeSource{reader: reader, fail: true}

	querier := mocks.NewMockQuerier(ctrl)
	querier.EXPECT().CountDripsForWallet(gomock.Any(), userAddr.Hex()).Return(int64(0), nil)
	cfg := testConfig()
	cfg.TopupTimeout = 200 * time.Millisecond

	svc := funding.NewService(reader, relayerAddr, source, querier, cfg)

	decision, err := svc.Decide(context.Background(), userAddr)
	require.NoError(t, err)

	// Both top-up and drip transfers failed and the user holds no gas.
	assert.Equal(t, funding.ModeBlockedNeedsGas, decision.Mode)
	assert.Equal(t, funding.ReasonNoGasPath, decision.ReasonCode)
	assert.False(t, decision.Relayable())
}

func TestDecide_DripSentWhenUnderCap(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := newFakeReader()
	reader.set(relayerAddr, wei("100000000000000"))

	querier := mocks.NewMockQuerier(ctrl)
	querier.EXPECT().CountDripsForWallet(gomock.Any(), userAddr.Hex()).Return(int64(1), nil)
	querier.EXPECT().CreateGasDrip(gomock.Any(), gomock.Any()).Return(db.GasDrip{}, nil)

	// The source fails the first transfer (top-up) then succeeds (drip).
	source := &flakySource{reader: reader, failures: 1}

	cfg := testConfig()
	cfg.TopupTimeout = 200 * time.Millisecond

	svc := funding.NewService(reader, relayerAddr, source, querier, cfg)

	decision, err := svc.Decide(context.Background(), userAddr)
	require.NoError(t, err)

	assert.Equal(t, funding.ModeBlockedNeedsGas, decision.Mode)
	assert.Equal(t, funding.ReasonDripSent, decision.ReasonCode)
	assert.NotEmpty(t, decision.DripTxHash)
	assert.False(t, decision.Relayable())
}

func TestDecide_DripCapReached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := newFakeReader()
	reader.set(relayerAddr, wei("100000000000000"))
	reader.set(userAddr, wei("2000000000000000")) // user can self-fund

	querier := mocks.NewMockQuerier(ctrl)
	querier.EXPECT().CountDripsForWallet(gomock.Any(), userAddr.Hex()).Return(int64(3), nil)

	source := &flakySource{reader: reader, failures: 1}

	cfg := testConfig()
	cfg.TopupTimeout = 200 * time.Millisecond

	svc := funding.NewService(reader, relayerAddr, source, querier, cfg)

	decision, err := svc.Decide(context.Background(), userAddr)
	require.NoError(t, err)

	assert.Equal(t, funding.ModeUserPaidRequired, decision.Mode)
	assert.Equal(t, funding.ReasonUserHasGas, decision.ReasonCode)
}

func TestDecide_NoSourceUserHasGas(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := newFakeReader()
	reader.set(relayerAddr, wei("100000000000000"))
	reader.set(userAddr, wei("5000000000000000"))

	svc := funding.NewService(reader, relayerAddr, nil, mocks.NewMockQuerier(ctrl), testConfig())

	decision, err := svc.Decide(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Equal(t, funding.ModeUserPaidRequired, decision.Mode)
}

func TestPeek_NeverTransfers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := newFakeReader()
	reader.set(relayerAddr, wei("100000000000000"))
	source := &fakeSource{reader: reader}

	svc := funding.NewService(reader, relayerAddr, source, mocks.NewMockQuerier(ctrl), testConfig())

	decision, err := svc.Peek(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Equal(t, funding.ModeRelayedAfterTopup, decision.Mode)
	assert.Zero(t, source.transfers)
}

// flakySource fails a fixed number of transfers before succeeding.
type flakySource struct {
	reader   *fakeReader
	failures int
	calls    int
}

func (s *flakySource) Address() common.Address { return fundingAddr }

func (s *flakySource) Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	s.calls++
	if s.calls <= s.failures {
		return common.Hash{}, errors.New("transfer failed")
	}
	inner := &fakeSource{reader: s.reader}
	return inner.Transfer(ctx, to, amount)
}
