package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/chain"
	"github.com/blossomfi/blossom-api/internal/config"
	"github.com/blossomfi/blossom-api/internal/db"
	"github.com/blossomfi/blossom-api/internal/funding"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/metrics"
	"github.com/blossomfi/blossom-api/internal/plan"
	"github.com/blossomfi/blossom-api/internal/policy"
	"github.com/blossomfi/blossom-api/internal/routing"
)

// Result statuses for one relay request. Post-submission statuses are stored
// on the queue entry and replayed verbatim to retries; pre-submission
// verdicts (invalid, denied, blocked) release the key so retries re-run the
// gates against current state.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
	StatusDenied    = "denied"
	StatusInvalid   = "invalid"
	StatusBlocked   = "blocked"
	StatusDryRun    = "dry_run"
)

// Relayer is the server-held account that submits plans on-chain.
type Relayer interface {
	Address() common.Address
	Submit(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// ReceiptWaiter polls for a submitted transaction's receipt.
type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, txHash common.Hash, timeout, interval time.Duration) (chain.ReceiptStatus, *coretypes.Receipt, error)
}

// ExecuteRequest is one relay attempt for a confirmed plan draft.
type ExecuteRequest struct {
	DraftID           string
	SessionID         string
	UserAddress       common.Address
	UserSolanaAddress string
	SettlementChain   string
	Plan              *plan.ActionPlan
	ValidateOnly      bool
}

// ExecutionMeta carries the routing and funding outcomes alongside the
// receipt so clients can explain what happened.
type ExecutionMeta struct {
	Route   *routing.Route    `json:"route,omitempty"`
	Funding *funding.Decision `json:"funding,omitempty"`
}

// ExecuteResult is the response for one relay request.
type ExecuteResult struct {
	Status        string         `json:"status"`
	Code          string         `json:"code,omitempty"`
	Message       string         `json:"message,omitempty"`
	ExecutionID   string         `json:"execution_id,omitempty"`
	TxHash        string         `json:"tx_hash,omitempty"`
	ReceiptStatus string         `json:"receipt_status,omitempty"`
	ExplorerURL   string         `json:"explorer_url,omitempty"`
	ContentHash   string         `json:"content_hash,omitempty"`
	QueueKey      string         `json:"queue_key,omitempty"`
	Policy        *policy.Result `json:"policy,omitempty"`
	Meta          *ExecutionMeta `json:"execution_meta,omitempty"`
	WouldAllow    bool           `json:"would_allow,omitempty"`
	Replayed      bool           `json:"replayed,omitempty"`
}

// ExecutionConfig is the static wiring for the orchestrator.
type ExecutionConfig struct {
	Chain           string
	Network         string
	ExplorerBaseURL string
	ActionRouter    common.Address
	AllowedAdapters []common.Address
	ReceiptTimeout  time.Duration
	ReceiptInterval time.Duration
}

type inflightAttempt struct {
	done   chan struct{}
	result *ExecuteResult
	err    error
}

// ExecutionService orchestrates the relay path: idempotency, the gate
// sequence, submission, confirmation, and the ledger write.
type ExecutionService struct {
	validator *plan.Validator
	engine    *policy.Engine
	lookup    policy.SessionLookup
	funding   *funding.Service
	router    *routing.Router
	relayer   Relayer
	receipts  ReceiptWaiter
	queries   db.Querier
	cfg       ExecutionConfig
	now       func() time.Time

	// inflight shares one attempt between concurrent requests for the same
	// queue key. The database entry survives restarts; this map only covers
	// requests racing within one process.
	mu       sync.Mutex
	inflight map[string]*inflightAttempt
}

// NewExecutionService wires the orchestrator.
func NewExecutionService(
	validator *plan.Validator,
	engine *policy.Engine,
	lookup policy.SessionLookup,
	fundingSvc *funding.Service,
	router *routing.Router,
	relayer Relayer,
	receipts ReceiptWaiter,
	queries db.Querier,
	cfg ExecutionConfig,
	now func() time.Time,
) *ExecutionService {
	if now == nil {
		now = time.Now
	}
	return &ExecutionService{
		validator: validator,
		engine:    engine,
		lookup:    lookup,
		funding:   fundingSvc,
		router:    router,
		relayer:   relayer,
		receipts:  receipts,
		queries:   queries,
		cfg:       cfg,
		now:       now,
		inflight:  make(map[string]*inflightAttempt),
	}
}

// QueueKey derives the idempotency key for one logical relay attempt.
func QueueKey(draftID string, user common.Address, sessionID string, nonce uint64) string {
	payload := fmt.Sprintf("%s|%s|%s|%d", draftID, user.Hex(), sessionID, nonce)
	return "0x" + common.Bytes2Hex(crypto.Keccak256([]byte(payload)))
}

// ExecuteRelayed runs one relay request end to end. Retries carrying the
// same draft, user, session, and nonce replay the stored terminal result;
// concurrent duplicates share a single in-flight attempt.
func (s *ExecutionService) ExecuteRelayed(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if req.Plan == nil {
		return &ExecuteResult{Status: StatusInvalid, Code: plan.CodePlanEmpty, Message: "plan is required"}, nil
	}

	s.validator.Normalize(req.Plan)

	if req.ValidateOnly {
		return s.dryRun(ctx, req)
	}

	key := QueueKey(req.DraftID, req.UserAddress, req.SessionID, req.Plan.Nonce)

	// Claim the key or wait on whoever holds it. Only the map is touched
	// under the lock; storage I/O happens per key, after unlock.
	s.mu.Lock()
	if att, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-att.done:
			if att.err != nil {
				return nil, att.err
			}
			metrics.QueueReplaysTotal.Inc()
			shared := *att.result
			return &shared, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	att := &inflightAttempt{done: make(chan struct{})}
	s.inflight[key] = att
	s.mu.Unlock()

	result, err := s.run(ctx, key, req)

	s.mu.Lock()
	att.result, att.err = result, err
	close(att.done)
	delete(s.inflight, key)
	s.mu.Unlock()

	return result, err
}

// run checks the durable queue state for the claimed key and dispatches one
// attempt.
func (s *ExecutionService) run(ctx context.Context, key string, req ExecuteRequest) (*ExecuteResult, error) {
	entry, err := s.queries.GetQueueEntry(ctx, key)
	switch {
	case err == nil && entry.Status == db.QueueStatusDone:
		var stored ExecuteResult
		if err := json.Unmarshal(entry.Result, &stored); err != nil {
			return nil, fmt.Errorf("failed to decode stored result for %s: %w", key, err)
		}
		stored.Replayed = true
		metrics.QueueReplaysTotal.Inc()
		logger.Info("Replayed terminal execution result",
			zap.String("queue_key", key),
			zap.String("status", stored.Status),
		)
		return &stored, nil
	case err == nil:
		// Pending row with no in-process attempt: a prior attempt died
		// mid-flight. Reclaim it rather than wedging the key forever.
		logger.Warn("Reclaiming orphaned pending queue entry", zap.String("queue_key", key))
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := s.queries.CreateQueueEntry(ctx, key); err != nil {
			return nil, fmt.Errorf("failed to create queue entry: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up queue entry: %w", err)
	}

	return s.attempt(ctx, key, req)
}

// dryRun executes every gate without moving funds or submitting anything.
func (s *ExecutionService) dryRun(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if verr := s.validate(ctx, req.Plan); verr != nil {
		return &ExecuteResult{Status: StatusDryRun, Code: verr.Code, Message: verr.Message}, nil
	}

	snap, err := s.lookup(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session %s: %w", req.SessionID, err)
	}
	res, err := s.engine.Evaluate(ctx, s.policyParams(req, snap))
	if err != nil {
		return nil, err
	}

	out := &ExecuteResult{
		Status:     StatusDryRun,
		Code:       res.Code,
		Message:    res.Message,
		Policy:     res,
		WouldAllow: res.Allowed,
	}
	if !res.Allowed {
		return out, nil
	}

	decision, err := s.funding.Peek(ctx, req.UserAddress)
	if err != nil {
		return nil, err
	}
	out.Meta = &ExecutionMeta{Funding: decision}
	if hash, err := req.Plan.ContentHash(); err == nil {
		out.ContentHash = hash.Hex()
	}
	return out, nil
}

func (s *ExecutionService) attempt(ctx context.Context, key string, req ExecuteRequest) (*ExecuteResult, error) {
	started := s.now()

	// Gate 1: structural validation and adapter allowlist.
	if verr := s.validate(ctx, req.Plan); verr != nil {
		metrics.ValidationFailuresTotal.WithLabelValues(verr.Code).Inc()
		return s.release(ctx, key, &ExecuteResult{
			Status:   StatusInvalid,
			Code:     verr.Code,
			Message:  verr.Message,
			QueueKey: key,
		})
	}

	// Gate 2: session policy. One snapshot read serves both the policy
	// evaluation and the per-action spend cap below.
	snap, err := s.lookup(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session %s: %w", req.SessionID, err)
	}
	policyRes, err := s.engine.Evaluate(ctx, s.policyParams(req, snap))
	if err != nil {
		return nil, err
	}
	if !policyRes.Allowed {
		metrics.PolicyDenialsTotal.WithLabelValues(policyRes.Code).Inc()
		return s.release(ctx, key, &ExecuteResult{
			Status:   StatusDenied,
			Code:     policyRes.Code,
			Message:  policyRes.Message,
			Policy:   policyRes,
			QueueKey: key,
		})
	}

	// Gate 3: funding ladder.
	decision, err := s.funding.Decide(ctx, req.UserAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to decide funding: %w", err)
	}
	metrics.FundingDecisionsTotal.WithLabelValues(string(decision.Mode)).Inc()
	meta := &ExecutionMeta{Funding: decision}
	if !decision.Relayable() {
		return s.release(ctx, key, &ExecuteResult{
			Status:   StatusBlocked,
			Code:     decision.ReasonCode,
			Message:  "relay cannot proceed under the current gas funding state",
			Meta:     meta,
			QueueKey: key,
		})
	}

	// Gate 4: settlement-chain collateral.
	totalSpend, _ := req.Plan.TotalSpend()
	toChain := req.SettlementChain
	if toChain == "" {
		toChain = config.ChainBaseSepolia
	}
	outcome, err := s.router.EnsureExecutionFunding(ctx, routing.Params{
		UserID:            req.UserAddress.Hex(),
		SessionID:         req.SessionID,
		Nonce:             req.Plan.Nonce,
		UserEvmAddress:    req.UserAddress.Hex(),
		UserSolanaAddress: req.UserSolanaAddress,
		ToChain:           toChain,
		AmountUsdCents:    totalSpend,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to route execution funding: %w", err)
	}
	metrics.RoutesTotal.WithLabelValues(outcome.Code, fmt.Sprintf("%t", outcome.Route != nil && outcome.Route.DidRoute)).Inc()
	meta.Route = outcome.Route
	if !outcome.OK {
		return s.release(ctx, key, &ExecuteResult{
			Status:   StatusBlocked,
			Code:     outcome.Code,
			Message:  outcome.UserMessage,
			Meta:     meta,
			QueueKey: key,
		})
	}

	// Encode and submit. The content hash is always computed server-side.
	contentHash, err := req.Plan.ContentHash()
	if err != nil {
		return nil, err
	}
	sessionID, err := chain.SessionIDToBytes32(req.SessionID)
	if err != nil {
		return nil, err
	}
	remaining := snap.MaxSpend - snap.Spent
	calldata, err := plan.EncodePlanCall(sessionID, req.Plan, remaining)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan calldata: %w", err)
	}

	txHash, err := s.relayer.Submit(ctx, s.cfg.ActionRouter, calldata, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to submit plan: %w", err)
	}

	execution, err := s.queries.CreateExecution(ctx, db.CreateExecutionParams{
		ID:               uuid.New(),
		Chain:            s.cfg.Chain,
		Network:          s.cfg.Network,
		Kind:             planKind(req.Plan),
		Venue:            req.Plan.Actions[0].Adapter.Hex(),
		FromAddress:      req.UserAddress.Hex(),
		ToAddress:        s.cfg.ActionRouter.Hex(),
		TxHash:           txHash.Hex(),
		Status:           db.ExecutionStatusPending,
		UsdEstimateCents: totalSpend,
		QueueKey:         key,
		ContentHash:      contentHash.Hex(),
	})
	if err != nil {
		logger.Error("Failed to create execution ledger row",
			zap.String("tx_hash", txHash.Hex()),
			zap.Error(err),
		)
	}

	status, receipt, err := s.receipts.WaitForReceipt(ctx, txHash, s.cfg.ReceiptTimeout, s.cfg.ReceiptInterval)
	if err != nil && status == chain.ReceiptTimeout {
		logger.Warn("Receipt wait cancelled", zap.String("tx_hash", txHash.Hex()), zap.Error(err))
	}

	result := &ExecuteResult{
		Status:        string(status),
		Code:          "EXECUTED",
		ExecutionID:   execution.ID.String(),
		TxHash:        txHash.Hex(),
		ReceiptStatus: string(status),
		ExplorerURL:   s.cfg.ExplorerBaseURL + "/tx/" + txHash.Hex(),
		ContentHash:   contentHash.Hex(),
		QueueKey:      key,
		Policy:        policyRes,
		Meta:          meta,
	}
	switch status {
	case chain.ReceiptFailed:
		result.Code = "EXECUTION_REVERTED"
		result.Message = "the transaction was mined but reverted on-chain"
	case chain.ReceiptTimeout:
		result.Code = "RECEIPT_TIMEOUT"
		result.Message = "no receipt within the confirmation window; the transaction may still land"
	}

	if _, err := s.queries.UpdateExecutionStatus(ctx, db.UpdateExecutionStatusParams{
		ID:     execution.ID,
		Status: string(status),
		TxHash: txHash.Hex(),
	}); err != nil {
		logger.Error("Failed to update execution status", zap.String("execution_id", execution.ID.String()), zap.Error(err))
	}

	if status == chain.ReceiptConfirmed {
		s.recordPositions(ctx, execution.ID, req)
		if receipt != nil && receipt.EffectiveGasPrice != nil {
			gasCost := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
			logger.Info("Execution gas accrued",
				zap.String("execution_id", execution.ID.String()),
				zap.String("gas_cost_wei", gasCost.String()),
				zap.String("funding_mode", string(decision.Mode)),
			)
		}
	}

	metrics.ExecutionsTotal.WithLabelValues(string(status)).Inc()
	metrics.ExecutionDuration.Observe(s.now().Sub(started).Seconds())

	return s.finalize(ctx, key, txHash.Hex(), result)
}

// validate runs plan validation and narrows the error to its typed form.
func (s *ExecutionService) validate(ctx context.Context, p *plan.ActionPlan) *plan.ValidationError {
	err := s.validator.Validate(ctx, p)
	if err == nil {
		return nil
	}
	var verr *plan.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return &plan.ValidationError{Code: "VALIDATION_ERROR", Message: err.Error()}
}

func (s *ExecutionService) policyParams(req ExecuteRequest, snap *chain.SessionSnapshot) policy.EvaluateParams {
	return policy.EvaluateParams{
		SessionID:       req.SessionID,
		UserAddress:     req.UserAddress,
		Plan:            req.Plan,
		AllowedAdapters: s.cfg.AllowedAdapters,
		Lookup: func(context.Context, string) (*chain.SessionSnapshot, error) {
			return snap, nil
		},
	}
}

// release drops the queue entry for an outcome decided before submission.
// Validation, policy, and funding gates are recomputed on every attempt, so
// a retry after the caller fixes the cause must run them again instead of
// replaying a stale verdict.
func (s *ExecutionService) release(ctx context.Context, key string, result *ExecuteResult) (*ExecuteResult, error) {
	if err := s.queries.DeleteQueueEntry(ctx, key); err != nil {
		logger.Error("Failed to release queue entry", zap.String("queue_key", key), zap.Error(err))
	}
	return result, nil
}

// finalize stores the terminal result on the queue entry and returns it.
func (s *ExecutionService) finalize(ctx context.Context, key, txHash string, result *ExecuteResult) (*ExecuteResult, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result for %s: %w", key, err)
	}
	if _, err := s.queries.FinalizeQueueEntry(ctx, db.FinalizeQueueEntryParams{
		QueueKey: key,
		Result:   raw,
		TxHash:   txHash,
	}); err != nil {
		logger.Error("Failed to finalize queue entry", zap.String("queue_key", key), zap.Error(err))
	}
	return result, nil
}

// recordPositions writes position rows for actions that open exposure.
func (s *ExecutionService) recordPositions(ctx context.Context, executionID uuid.UUID, req ExecuteRequest) {
	for _, a := range req.Plan.Actions {
		var params db.CreatePositionParams
		switch p := a.Payload.(type) {
		case plan.PerpPayload:
			params = db.CreatePositionParams{
				Instrument:   "perp",
				Market:       p.Market,
				Side:         p.Side,
				SizeUsdCents: p.CollateralUnits * int64(p.Leverage),
			}
		case plan.EventPayload:
			if p.Op != plan.EventStake {
				continue
			}
			params = db.CreatePositionParams{
				Instrument:   "event",
				Market:       p.MarketID,
				Side:         p.Outcome,
				SizeUsdCents: p.StakeUnits,
			}
		default:
			continue
		}
		params.ID = uuid.New()
		params.ExecutionID = executionID
		params.UserAddress = req.UserAddress.Hex()
		if _, err := s.queries.CreatePosition(ctx, params); err != nil {
			logger.Error("Failed to record position",
				zap.String("execution_id", executionID.String()),
				zap.String("market", params.Market),
				zap.Error(err),
			)
		}
	}
}

// planKind labels a plan for the ledger: the single action's kind, or batch.
func planKind(p *plan.ActionPlan) string {
	if len(p.Actions) == 1 {
		return string(p.Actions[0].Kind)
	}
	return "batch"
}
