// Package routing ensures the settlement chain holds enough collateral
// before a plan executes, sourcing credit from another chain when needed.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/db"
	"github.com/blossomfi/blossom-api/internal/logger"
)

// Routing outcome codes.
const (
	CodeRouteOK                = "ROUTE_OK"
	CodeRouteTimeout           = "CROSS_CHAIN_ROUTE_TIMEOUT"
	CodeRouteFailed            = "CROSS_CHAIN_ROUTE_FAILED"
	CodeInsufficientCollateral = "INSUFFICIENT_COLLATERAL"
)

// Route reasons recorded for audit.
const (
	reasonFundsOnTarget = "funds_on_target"
	reasonBridged       = "bridged_from_source"
)

// CollateralSource reads a user's settled collateral on a chain, in USD cents.
type CollateralSource interface {
	CollateralUsdCents(ctx context.Context, chainName, evmAddress, solanaAddress string) (int64, error)
}

// CreditParams describe one bridge credit.
type CreditParams struct {
	FromChain      string
	ToChain        string
	EvmAddress     string
	SolanaAddress  string
	AmountUsdCents int64
}

// Bridge moves collateral between chains.
type Bridge interface {
	Credit(ctx context.Context, params CreditParams) (int64, error)
}

// Route describes what the router did for one execution.
type Route struct {
	DidRoute            bool   `json:"did_route"`
	FromChain           string `json:"from_chain,omitempty"`
	ToChain             string `json:"to_chain"`
	Reason              string `json:"reason"`
	CreditedAmountCents int64  `json:"credited_amount_usd_cents,omitempty"`
}

// Outcome is the router's answer. A failed route is a hard stop; the system
// never executes on a chain whose collateral state is unconfirmed.
type Outcome struct {
	OK          bool   `json:"ok"`
	Route       *Route `json:"route,omitempty"`
	Code        string `json:"code"`
	UserMessage string `json:"user_message,omitempty"`
}

// Params identify one logical execution's funding requirement.
type Params struct {
	UserID            string
	SessionID         string
	Nonce             uint64
	UserEvmAddress    string
	UserSolanaAddress string
	FromChain         string // optional hint; discovered when empty
	ToChain           string
	AmountUsdCents    int64
	InstrumentType    string
}

// Router ensures execution funding, memoized per (user, session, nonce).
type Router struct {
	collateral CollateralSource
	bridge     Bridge
	queries    db.Querier
	chains     []string // known chains, scanned when FromChain is not hinted
	timeout    time.Duration
}

// NewRouter creates a credit router.
func NewRouter(collateral CollateralSource, bridge Bridge, queries db.Querier, chains []string, timeout time.Duration) *Router {
	return &Router{
		collateral: collateral,
		bridge:     bridge,
		queries:    queries,
		chains:     chains,
		timeout:    timeout,
	}
}

// routeKey derives the memoization key for one logical execution.
func routeKey(userID, sessionID string, nonce uint64) string {
	return "0x" + fmt.Sprintf("%x", crypto.Keccak256([]byte(fmt.Sprintf("%s|%s|%d", userID, sessionID, nonce))))
}

// EnsureExecutionFunding confirms sufficient settled collateral on the
// target chain, bridging from the source chain when needed. Successful
// outcomes are memoized so retries of the same logical execution never
// double-route.
func (r *Router) EnsureExecutionFunding(ctx context.Context, params Params) (*Outcome, error) {
	key := routeKey(params.UserID, params.SessionID, params.Nonce)

	if stored, err := r.queries.GetCrossChainRoute(ctx, key); err == nil {
		return outcomeFromStored(stored), nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up route memo: %w", err)
	}

	routeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	outcome, err := r.resolve(routeCtx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(routeCtx.Err(), context.DeadlineExceeded) {
			return &Outcome{
				OK:          false,
				Code:        CodeRouteTimeout,
				UserMessage: "Cross-chain funding did not settle in time. Nothing was executed; please retry.",
			}, nil
		}
		return nil, err
	}

	if outcome.OK {
		if _, err := r.queries.CreateCrossChainRoute(ctx, db.CreateCrossChainRouteParams{
			RouteKey:            key,
			DidRoute:            outcome.Route.DidRoute,
			FromChain:           outcome.Route.FromChain,
			ToChain:             outcome.Route.ToChain,
			Reason:              outcome.Route.Reason,
			CreditedAmountCents: outcome.Route.CreditedAmountCents,
		}); err != nil {
			logger.Error("Failed to memoize route", zap.String("route_key", key), zap.Error(err))
		}
	}

	return outcome, nil
}

func (r *Router) resolve(ctx context.Context, params Params) (*Outcome, error) {
	// Fast path: funds already settled on the target chain.
	targetBalance, err := r.collateral.CollateralUsdCents(ctx, params.ToChain, params.UserEvmAddress, params.UserSolanaAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s collateral: %w", params.ToChain, err)
	}
	if targetBalance >= params.AmountUsdCents {
		return &Outcome{
			OK:   true,
			Code: CodeRouteOK,
			Route: &Route{
				DidRoute: false,
				ToChain:  params.ToChain,
				Reason:   reasonFundsOnTarget,
			},
		}, nil
	}

	fromChain, sourceBalance, err := r.findSource(ctx, params)
	if err != nil {
		return nil, err
	}
	if fromChain == "" || sourceBalance < params.AmountUsdCents {
		return &Outcome{
			OK:          false,
			Code:        CodeInsufficientCollateral,
			UserMessage: fmt.Sprintf("Insufficient collateral on any chain for this execution (need %d cents on %s).", params.AmountUsdCents, params.ToChain),
			Route: &Route{
				DidRoute: false,
				ToChain:  params.ToChain,
				Reason:   "no_source_chain",
			},
		}, nil
	}

	credited, err := r.bridge.Credit(ctx, CreditParams{
		FromChain:      fromChain,
		ToChain:        params.ToChain,
		EvmAddress:     params.UserEvmAddress,
		SolanaAddress:  params.UserSolanaAddress,
		AmountUsdCents: params.AmountUsdCents,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return &Outcome{
			OK:          false,
			Code:        CodeRouteFailed,
			UserMessage: "Cross-chain credit failed; nothing was executed.",
			Route: &Route{
				DidRoute:  false,
				FromChain: fromChain,
				ToChain:   params.ToChain,
				Reason:    "bridge_error",
			},
		}, nil
	}

	logger.Info("Routed cross-chain credit",
		zap.String("from_chain", fromChain),
		zap.String("to_chain", params.ToChain),
		zap.Int64("credited_cents", credited),
	)

	return &Outcome{
		OK:   true,
		Code: CodeRouteOK,
		Route: &Route{
			DidRoute:            true,
			FromChain:           fromChain,
			ToChain:             params.ToChain,
			Reason:              reasonBridged,
			CreditedAmountCents: credited,
		},
	}, nil
}

// findSource locates the chain holding the user's funds, honoring the
// caller's hint before scanning known chains.
func (r *Router) findSource(ctx context.Context, params Params) (string, int64, error) {
	if params.FromChain != "" && params.FromChain != params.ToChain {
		bal, err := r.collateral.CollateralUsdCents(ctx, params.FromChain, params.UserEvmAddress, params.UserSolanaAddress)
		if err != nil {
			return "", 0, fmt.Errorf("failed to read %s collateral: %w", params.FromChain, err)
		}
		return params.FromChain, bal, nil
	}

	var bestChain string
	var bestBalance int64
	for _, chainName := range r.chains {
		if chainName == params.ToChain {
			continue
		}
		bal, err := r.collateral.CollateralUsdCents(ctx, chainName, params.UserEvmAddress, params.UserSolanaAddress)
		if err != nil {
			return "", 0, fmt.Errorf("failed to read %s collateral: %w", chainName, err)
		}
		if bal > bestBalance {
			bestChain, bestBalance = chainName, bal
		}
	}
	return bestChain, bestBalance, nil
}

func outcomeFromStored(stored db.CrossChainRoute) *Outcome {
	route := &Route{
		DidRoute:            stored.DidRoute,
		ToChain:             stored.ToChain,
		Reason:              stored.Reason,
		CreditedAmountCents: stored.CreditedAmountCents.Int64,
	}
	if stored.FromChain.Valid {
		route.FromChain = stored.FromChain.String
	}
	return &Outcome{OK: true, Code: CodeRouteOK, Route: route}
}
