package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SessionStatus is the derived state of an on-chain capability session.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionExpired    SessionStatus = "expired"
	SessionRevoked    SessionStatus = "revoked"
	SessionNotCreated SessionStatus = "not_created"
)

// SessionSnapshot is a point-in-time read of an on-chain session. Sessions
// are created and revoked by user-signed transactions; this service only
// reads them.
type SessionSnapshot struct {
	ID              string
	Owner           common.Address
	Executor        common.Address
	ExpiresAt       time.Time
	MaxSpend        int64
	Spent           int64
	Active          bool
	AllowedAdapters []common.Address
}

// Status derives the session state at the given instant.
func (s *SessionSnapshot) Status(now time.Time) SessionStatus {
	if s.Owner == (common.Address{}) {
		return SessionNotCreated
	}
	if !s.Active {
		return SessionRevoked
	}
	if !s.ExpiresAt.After(now) {
		return SessionExpired
	}
	return SessionActive
}

// sessionRegistryABI is the fixed read surface of the session registry
// contract. Internal contract logic is out of scope; this ABI is trusted as
// given.
const sessionRegistryABI = `[
	{"name":"getSession","type":"function","stateMutability":"view",
	 "inputs":[{"name":"sessionId","type":"bytes32"}],
	 "outputs":[
		{"name":"owner","type":"address"},
		{"name":"executor","type":"address"},
		{"name":"expiresAt","type":"uint64"},
		{"name":"maxSpend","type":"uint256"},
		{"name":"spent","type":"uint256"},
		{"name":"active","type":"bool"}]},
	{"name":"getSessionAdapters","type":"function","stateMutability":"view",
	 "inputs":[{"name":"sessionId","type":"bytes32"}],
	 "outputs":[{"name":"adapters","type":"address[]"}]},
	{"name":"isAdapterAllowed","type":"function","stateMutability":"view",
	 "inputs":[{"name":"adapter","type":"address"}],
	 "outputs":[{"name":"allowed","type":"bool"}]}
]`

// Registry reads session and adapter state from the on-chain registry.
type Registry struct {
	client  *Client
	address common.Address
	abi     abi.ABI
}

// NewRegistry binds the registry contract at the given address.
func NewRegistry(client *Client, address common.Address) (*Registry, error) {
	parsed, err := abi.JSON(strings.NewReader(sessionRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session registry ABI: %w", err)
	}
	return &Registry{client: client, address: address, abi: parsed}, nil
}

func (r *Registry) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	raw, err := r.client.Backend().CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	out, err := r.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return out, nil
}

// GetSession reads the session row plus its adapter allowlist.
func (r *Registry) GetSession(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	id, err := SessionIDToBytes32(sessionID)
	if err != nil {
		return nil, err
	}

	out, err := r.call(ctx, "getSession", id)
	if err != nil {
		return nil, err
	}
	if len(out) != 6 {
		return nil, fmt.Errorf("unexpected getSession result arity %d", len(out))
	}

	snap := &SessionSnapshot{
		ID:        sessionID,
		Owner:     out[0].(common.Address),
		Executor:  out[1].(common.Address),
		ExpiresAt: time.Unix(int64(out[2].(uint64)), 0),
		MaxSpend:  bigToInt64(out[3].(*big.Int)),
		Spent:     bigToInt64(out[4].(*big.Int)),
		Active:    out[5].(bool),
	}

	adaptersOut, err := r.call(ctx, "getSessionAdapters", id)
	if err != nil {
		return nil, err
	}
	if len(adaptersOut) == 1 {
		if addrs, ok := adaptersOut[0].([]common.Address); ok {
			snap.AllowedAdapters = addrs
		}
	}

	return snap, nil
}

// IsAdapterAllowed reads the router-level on-chain allowlist.
func (r *Registry) IsAdapterAllowed(ctx context.Context, adapter common.Address) (bool, error) {
	out, err := r.call(ctx, "isAdapterAllowed", adapter)
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("unexpected isAdapterAllowed result arity %d", len(out))
	}
	allowed, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isAdapterAllowed result type %T", out[0])
	}
	return allowed, nil
}

// SessionIDToBytes32 parses a 32-byte hex session id into its on-chain form.
func SessionIDToBytes32(sessionID string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimPrefix(sessionID, "0x")
	if len(trimmed) != 64 {
		return id, fmt.Errorf("session id must be a 32-byte hex string, got %q", sessionID)
	}
	decoded := common.FromHex(sessionID)
	if len(decoded) != 32 {
		return id, fmt.Errorf("session id must be a 32-byte hex string, got %q", sessionID)
	}
	copy(id[:], decoded)
	return id, nil
}

// bigToInt64 clamps on-chain uint256 accounting values into the service's
// int64 spend units. Values past the int64 range saturate rather than wrap.
func bigToInt64(v *big.Int) int64 {
	if v == nil {
		return 0
	}
	if !v.IsInt64() {
		return int64(^uint64(0) >> 1)
	}
	return v.Int64()
}
