package handlers

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/blossomfi/blossom-api/internal/middleware"
	"github.com/blossomfi/blossom-api/internal/plan"
	"github.com/blossomfi/blossom-api/internal/services"
)

// ExecuteHandler serves the relayed execution endpoint.
type ExecuteHandler struct {
	execution *services.ExecutionService
}

// NewExecuteHandler creates the execute handler.
func NewExecuteHandler(execution *services.ExecutionService) *ExecuteHandler {
	return &ExecuteHandler{execution: execution}
}

// Wire shapes for the plan payload union. Exactly one of the per-kind bodies
// must be set, matching the action's kind.
type swapBody struct {
	TokenIn      string `json:"token_in" binding:"required"`
	TokenOut     string `json:"token_out" binding:"required"`
	AmountIn     int64  `json:"amount_in"`
	MinAmountOut int64  `json:"min_amount_out"`
}

type perpBody struct {
	Market          string `json:"market" binding:"required"`
	Side            string `json:"side" binding:"required"`
	CollateralUnits int64  `json:"collateral_units"`
	Leverage        int32  `json:"leverage"`
}

type defiBody struct {
	Protocol    string `json:"protocol"`
	Op          string `json:"op" binding:"required"`
	Token       string `json:"token" binding:"required"`
	AmountUnits int64  `json:"amount_units"`
}

type eventBody struct {
	MarketID   string `json:"market_id" binding:"required"`
	Outcome    string `json:"outcome"`
	Op         string `json:"op" binding:"required"`
	StakeUnits int64  `json:"stake_units"`
}

type actionBody struct {
	Kind    string     `json:"kind" binding:"required"`
	Adapter string     `json:"adapter,omitempty"`
	Swap    *swapBody  `json:"swap,omitempty"`
	Perp    *perpBody  `json:"perp,omitempty"`
	Defi    *defiBody  `json:"defi,omitempty"`
	Event   *eventBody `json:"event,omitempty"`
}

type planBody struct {
	Nonce        uint64       `json:"nonce,omitempty"`
	DeadlineUnix int64        `json:"deadline_unix,omitempty"`
	Actions      []actionBody `json:"actions" binding:"required"`
}

type executeRequest struct {
	DraftID         string   `json:"draft_id" binding:"required"`
	SessionID       string   `json:"session_id" binding:"required"`
	SettlementChain string   `json:"settlement_chain,omitempty"`
	SolanaAddress   string   `json:"solana_address,omitempty"`
	ValidateOnly    bool     `json:"validate_only,omitempty"`
	Plan            planBody `json:"plan" binding:"required"`
}

// Execute handles POST /api/v1/execute.
func (h *ExecuteHandler) Execute(c *gin.Context) {
	wallet, ok := middleware.GetWalletAddress(c)
	if !ok {
		sendError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "wallet authentication is required")
		return
	}

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	actionPlan, err := decodePlan(wallet, req.Plan)
	if err != nil {
		sendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := h.execution.ExecuteRelayed(c.Request.Context(), services.ExecuteRequest{
		DraftID:           req.DraftID,
		SessionID:         req.SessionID,
		UserAddress:       wallet,
		UserSolanaAddress: req.SolanaAddress,
		SettlementChain:   req.SettlementChain,
		Plan:              actionPlan,
		ValidateOnly:      req.ValidateOnly,
	})
	if err != nil {
		sendInternalError(c, err)
		return
	}

	c.JSON(statusForResult(result), result)
}

// statusForResult maps a terminal result onto an HTTP status. Denials and
// blocks are well-formed outcomes, not server errors.
func statusForResult(result *services.ExecuteResult) int {
	switch result.Status {
	case services.StatusInvalid:
		return http.StatusUnprocessableEntity
	case services.StatusDenied:
		return http.StatusForbidden
	case services.StatusBlocked:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}

// decodePlan converts the wire plan into its typed form. The authenticated
// wallet is the plan user; clients cannot execute for someone else.
func decodePlan(wallet common.Address, body planBody) (*plan.ActionPlan, error) {
	p := &plan.ActionPlan{
		User:  wallet,
		Nonce: body.Nonce,
	}
	if body.DeadlineUnix > 0 {
		p.Deadline = time.Unix(body.DeadlineUnix, 0)
	}

	for _, a := range body.Actions {
		action := plan.Action{Kind: plan.Kind(a.Kind)}
		if a.Adapter != "" {
			if !common.IsHexAddress(a.Adapter) {
				return nil, errBadAddress("adapter", a.Adapter)
			}
			action.Adapter = common.HexToAddress(a.Adapter)
		}

		switch {
		case a.Swap != nil:
			if !common.IsHexAddress(a.Swap.TokenIn) {
				return nil, errBadAddress("token_in", a.Swap.TokenIn)
			}
			if !common.IsHexAddress(a.Swap.TokenOut) {
				return nil, errBadAddress("token_out", a.Swap.TokenOut)
			}
			action.Payload = plan.SwapPayload{
				TokenIn:      common.HexToAddress(a.Swap.TokenIn),
				TokenOut:     common.HexToAddress(a.Swap.TokenOut),
				AmountIn:     a.Swap.AmountIn,
				MinAmountOut: a.Swap.MinAmountOut,
			}
		case a.Perp != nil:
			action.Payload = plan.PerpPayload{
				Market:          a.Perp.Market,
				Side:            a.Perp.Side,
				CollateralUnits: a.Perp.CollateralUnits,
				Leverage:        a.Perp.Leverage,
			}
		case a.Defi != nil:
			if !common.IsHexAddress(a.Defi.Token) {
				return nil, errBadAddress("token", a.Defi.Token)
			}
			action.Payload = plan.DefiPayload{
				Protocol:    a.Defi.Protocol,
				Op:          plan.DefiOp(a.Defi.Op),
				Token:       common.HexToAddress(a.Defi.Token),
				AmountUnits: a.Defi.AmountUnits,
			}
		case a.Event != nil:
			action.Payload = plan.EventPayload{
				MarketID:   a.Event.MarketID,
				Outcome:    a.Event.Outcome,
				Op:         plan.EventOp(a.Event.Op),
				StakeUnits: a.Event.StakeUnits,
			}
		}

		p.Actions = append(p.Actions, action)
	}
	return p, nil
}

type badAddressError struct {
	field string
	value string
}

func (e *badAddressError) Error() string {
	return "invalid address for " + e.field + ": " + e.value
}

func errBadAddress(field, value string) error {
	return &badAddressError{field: field, value: value}
}
