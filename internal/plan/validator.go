package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Validation error codes. Every rule is a hard reject, never a silent clamp.
const (
	CodePlanEmpty            = "PLAN_EMPTY"
	CodePlanTooManyActions   = "PLAN_TOO_MANY_ACTIONS"
	CodeDeadlineInvalid      = "DEADLINE_INVALID"
	CodeUserMissing          = "USER_MISSING"
	CodeKindInvalid          = "KIND_INVALID"
	CodePayloadInvalid       = "PAYLOAD_INVALID"
	CodeTokenNotAllowed      = "TOKEN_NOT_ALLOWED"
	CodeAmountExceedsCeiling = "AMOUNT_EXCEEDS_CEILING"
	CodeAdapterZero          = "ADAPTER_ZERO"
	CodeAdapterNotAllowed    = "ADAPTER_NOT_ALLOWED"
)

// ValidationError is a typed, machine-checkable rejection.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AdapterChecker reads the on-chain adapter allowlist. The on-chain answer
// is required; it is never assumed from configuration alone.
type AdapterChecker interface {
	IsAdapterAllowed(ctx context.Context, adapter common.Address) (bool, error)
}

// ValidatorConfig carries the service-level limits and adapter bindings.
type ValidatorConfig struct {
	AllowedTokens      []common.Address
	Adapters           map[Kind]common.Address
	MaxSwapAmountUnits int64
}

// Validator validates and normalizes action plans.
type Validator struct {
	cfg     ValidatorConfig
	checker AdapterChecker
	now     func() time.Time
}

// NewValidator creates a validator with an injected clock for deterministic
// deadline checks in tests.
func NewValidator(cfg ValidatorConfig, checker AdapterChecker, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{cfg: cfg, checker: checker, now: now}
}

// Normalize completes a partially-filled plan: nonce and deadline are
// assigned when absent, and each action's adapter is inferred from its kind
// when omitted. Normalize never overrides values the caller set.
func (v *Validator) Normalize(p *ActionPlan) {
	now := v.now()
	if p.Nonce == 0 {
		p.Nonce = NewNonce(now)
	}
	if p.Deadline.IsZero() {
		p.Deadline = now.Add(DefaultDeadline)
	}
	for i := range p.Actions {
		if p.Actions[i].Adapter == (common.Address{}) {
			p.Actions[i].Adapter = v.cfg.Adapters[p.Actions[i].Kind]
		}
	}
}

// Validate runs every structural rule before touching the chain, then
// verifies each adapter against the on-chain allowlist. The first failed
// rule rejects the whole plan.
func (v *Validator) Validate(ctx context.Context, p *ActionPlan) error {
	if p.User == (common.Address{}) {
		return invalid(CodeUserMissing, "plan user address is required")
	}
	if len(p.Actions) == 0 {
		return invalid(CodePlanEmpty, "plan has no actions")
	}
	if len(p.Actions) > MaxActions {
		return invalid(CodePlanTooManyActions, "plan has %d actions, maximum is %d", len(p.Actions), MaxActions)
	}

	now := v.now()
	if !p.Deadline.After(now) {
		return invalid(CodeDeadlineInvalid, "deadline %s is not in the future", p.Deadline.UTC().Format(time.RFC3339))
	}
	if p.Deadline.After(now.Add(MaxDeadlineWindow)) {
		return invalid(CodeDeadlineInvalid, "deadline %s is more than %s out", p.Deadline.UTC().Format(time.RFC3339), MaxDeadlineWindow)
	}

	for i, a := range p.Actions {
		if !a.Kind.Valid() {
			return invalid(CodeKindInvalid, "action %d has unknown kind %q", i, a.Kind)
		}
		if a.Payload == nil || a.Payload.Kind() != a.Kind {
			return invalid(CodePayloadInvalid, "action %d payload does not match kind %q", i, a.Kind)
		}
		if err := v.validatePayload(i, a); err != nil {
			return err
		}
		if a.Adapter == (common.Address{}) {
			return invalid(CodeAdapterZero, "action %d resolves to the zero adapter", i)
		}
	}

	// On-chain allowlist check runs last so malformed plans never cost an RPC.
	for i, a := range p.Actions {
		allowed, err := v.checker.IsAdapterAllowed(ctx, a.Adapter)
		if err != nil {
			return fmt.Errorf("failed to check adapter allowlist for action %d: %w", i, err)
		}
		if !allowed {
			return invalid(CodeAdapterNotAllowed, "adapter %s is not on the on-chain allowlist", a.Adapter.Hex())
		}
	}

	return nil
}

func (v *Validator) validatePayload(i int, a Action) error {
	switch p := a.Payload.(type) {
	case SwapPayload:
		if !v.tokenAllowed(p.TokenIn) {
			return invalid(CodeTokenNotAllowed, "action %d input token %s is not allowlisted", i, p.TokenIn.Hex())
		}
		if !v.tokenAllowed(p.TokenOut) {
			return invalid(CodeTokenNotAllowed, "action %d output token %s is not allowlisted", i, p.TokenOut.Hex())
		}
		if p.AmountIn <= 0 {
			return invalid(CodePayloadInvalid, "action %d swap amount must be positive", i)
		}
		if p.AmountIn > v.cfg.MaxSwapAmountUnits {
			return invalid(CodeAmountExceedsCeiling, "action %d swap amount %d exceeds ceiling %d", i, p.AmountIn, v.cfg.MaxSwapAmountUnits)
		}
	case PerpPayload:
		if p.Side != "long" && p.Side != "short" {
			return invalid(CodePayloadInvalid, "action %d perp side must be long or short", i)
		}
		if p.Leverage < 1 {
			return invalid(CodePayloadInvalid, "action %d perp leverage must be at least 1", i)
		}
	case DefiPayload:
		if p.Op != DefiSupply && p.Op != DefiWithdraw {
			return invalid(CodePayloadInvalid, "action %d defi op %q is unknown", i, p.Op)
		}
		if !v.tokenAllowed(p.Token) {
			return invalid(CodeTokenNotAllowed, "action %d token %s is not allowlisted", i, p.Token.Hex())
		}
	case EventPayload:
		if p.Op != EventStake && p.Op != EventClaim {
			return invalid(CodePayloadInvalid, "action %d event op %q is unknown", i, p.Op)
		}
		if p.MarketID == "" {
			return invalid(CodePayloadInvalid, "action %d event market id is required", i)
		}
	}
	return nil
}

func (v *Validator) tokenAllowed(token common.Address) bool {
	for _, t := range v.cfg.AllowedTokens {
		if t == token {
			return true
		}
	}
	return false
}
