// Package policy decides whether the relayer may execute a proposed plan
// under a capability session. Evaluation is pure given its inputs so the
// same checks run identically in dry-run and execute paths.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/chain"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/plan"
)

// Policy decision codes.
const (
	CodeAllowed              = "ALLOWED"
	CodeSessionNotActive     = "SESSION_NOT_ACTIVE"
	CodeSessionExpired       = "SESSION_EXPIRED"
	CodeSessionRevoked       = "SESSION_REVOKED"
	CodeSessionNotCreated    = "SESSION_NOT_CREATED"
	CodeOwnerMismatch        = "OWNER_MISMATCH"
	CodeAdapterNotAllowed    = "ADAPTER_NOT_ALLOWED"
	CodeSpendCapExceeded     = "SPEND_CAP_EXCEEDED"
	CodeSpendNotDeterminable = "SPEND_NOT_DETERMINABLE"
)

// spendFreeInstruments are the instrument types known to move funds toward
// the user; their spend is zero by construction, so a non-determinable
// estimate never blocks them.
var spendFreeInstruments = map[string]bool{
	"defi_withdraw": true,
	"event_claim":   true,
}

// SessionLookup resolves a session snapshot from the chain.
type SessionLookup func(ctx context.Context, sessionID string) (*chain.SessionSnapshot, error)

// Result is the engine's decision with a machine-checkable code.
type Result struct {
	Allowed bool                   `json:"allowed"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func deny(code, format string, args ...interface{}) *Result {
	return &Result{Allowed: false, Code: code, Message: fmt.Sprintf(format, args...)}
}

// EvaluateParams carries everything a single evaluation needs.
type EvaluateParams struct {
	SessionID       string
	UserAddress     common.Address
	Plan            *plan.ActionPlan
	AllowedAdapters []common.Address
	Lookup          SessionLookup
	// TestOverride bypasses only the session status check, for
	// deterministic tests against fixed snapshots.
	TestOverride bool
}

// Engine evaluates plans against session capabilities.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an engine with an injected clock.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Evaluate runs the ordered policy checks: session status, ownership,
// adapter allowlists, spend cap. Denials are never downgraded to a smaller
// action; the first failing check decides.
func (e *Engine) Evaluate(ctx context.Context, params EvaluateParams) (*Result, error) {
	snap, err := params.Lookup(ctx, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session %s: %w", params.SessionID, err)
	}

	if !params.TestOverride {
		switch snap.Status(e.now()) {
		case chain.SessionNotCreated:
			return deny(CodeSessionNotCreated, "session %s does not exist", params.SessionID), nil
		case chain.SessionRevoked:
			return deny(CodeSessionRevoked, "session %s was revoked by its owner", params.SessionID), nil
		case chain.SessionExpired:
			return deny(CodeSessionExpired, "session %s expired at %s", params.SessionID, snap.ExpiresAt.UTC().Format(time.RFC3339)), nil
		case chain.SessionActive:
			// proceed
		default:
			return deny(CodeSessionNotActive, "session %s is not active", params.SessionID), nil
		}
	}

	if snap.Owner != params.UserAddress || params.Plan.User != snap.Owner {
		return deny(CodeOwnerMismatch, "plan user %s does not match session owner %s",
			params.Plan.User.Hex(), snap.Owner.Hex()), nil
	}

	routerAllowed := addressSet(params.AllowedAdapters)
	sessionAllowed := addressSet(snap.AllowedAdapters)
	for i, a := range params.Plan.Actions {
		if !routerAllowed[a.Adapter] || !sessionAllowed[a.Adapter] {
			res := deny(CodeAdapterNotAllowed, "action %d adapter %s is not in the session allowlist", i, a.Adapter.Hex())
			res.Details = map[string]interface{}{"adapter": a.Adapter.Hex()}
			return res, nil
		}
	}

	var totalSpend int64
	for i, a := range params.Plan.Actions {
		est := plan.EstimateSpend(a)
		if !est.Determinable {
			if spendFreeInstruments[est.Instrument] {
				continue
			}
			return deny(CodeSpendNotDeterminable, "action %d spend is not determinable for instrument %q", i, est.Instrument), nil
		}
		totalSpend += est.SpendUnits
	}

	if snap.Spent+totalSpend > snap.MaxSpend {
		res := deny(CodeSpendCapExceeded, "plan spend %d would exceed session cap (%d spent of %d)",
			totalSpend, snap.Spent, snap.MaxSpend)
		res.Details = map[string]interface{}{
			"plan_spend": totalSpend,
			"spent":      snap.Spent,
			"max_spend":  snap.MaxSpend,
		}
		return res, nil
	}

	logger.Debug("Policy allowed plan",
		zap.String("session_id", params.SessionID),
		zap.Int64("plan_spend", totalSpend),
		zap.Int64("remaining", snap.MaxSpend-snap.Spent-totalSpend),
	)

	return &Result{
		Allowed: true,
		Code:    CodeAllowed,
		Message: "plan is within session capabilities",
		Details: map[string]interface{}{
			"plan_spend": totalSpend,
			"remaining":  snap.MaxSpend - snap.Spent - totalSpend,
		},
	}, nil
}

func addressSet(addrs []common.Address) map[common.Address]bool {
	set := make(map[common.Address]bool, len(addrs))
	for _, a := range addrs {
		set[a] = true
	}
	return set
}
