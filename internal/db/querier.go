package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Querier is the storage interface consumed by services. Implemented by
// *Queries against PostgreSQL and by the generated MockQuerier in tests.
type Querier interface {
	// Idempotency queue
	GetQueueEntry(ctx context.Context, queueKey string) (QueueEntry, error)
	CreateQueueEntry(ctx context.Context, queueKey string) (QueueEntry, error)
	FinalizeQueueEntry(ctx context.Context, arg FinalizeQueueEntryParams) (QueueEntry, error)
	DeleteQueueEntry(ctx context.Context, queueKey string) error
	PruneQueueEntries(ctx context.Context, before time.Time) (int64, error)

	// Execution ledger
	CreateExecution(ctx context.Context, arg CreateExecutionParams) (Execution, error)
	UpdateExecutionStatus(ctx context.Context, arg UpdateExecutionStatusParams) (Execution, error)
	GetExecution(ctx context.Context, id uuid.UUID) (Execution, error)
	ListExecutionsByUser(ctx context.Context, arg ListExecutionsByUserParams) ([]Execution, error)
	CreatePosition(ctx context.Context, arg CreatePositionParams) (Position, error)

	// Cross-chain route memoization
	GetCrossChainRoute(ctx context.Context, routeKey string) (CrossChainRoute, error)
	CreateCrossChainRoute(ctx context.Context, arg CreateCrossChainRouteParams) (CrossChainRoute, error)

	// Gas sponsorship drips
	CountDripsForWallet(ctx context.Context, walletAddress string) (int64, error)
	CreateGasDrip(ctx context.Context, arg CreateGasDripParams) (GasDrip, error)

	// Session cache
	GetSessionCache(ctx context.Context, sessionID string) (SessionCache, error)
	UpsertSessionCache(ctx context.Context, arg UpsertSessionCacheParams) (SessionCache, error)
}

// FinalizeQueueEntryParams marks a queue entry terminal with its stored result.
type FinalizeQueueEntryParams struct {
	QueueKey string
	Result   []byte
	TxHash   string
}

// CreateExecutionParams creates a ledger row at submission time.
type CreateExecutionParams struct {
	ID               uuid.UUID
	Chain            string
	Network          string
	Kind             string
	Venue            string
	FromAddress      string
	ToAddress        string
	TxHash           string
	Status           string
	UsdEstimateCents int64
	QueueKey         string
	ContentHash      string
}

// UpdateExecutionStatusParams moves a ledger row to its terminal status.
type UpdateExecutionStatusParams struct {
	ID     uuid.UUID
	Status string
	TxHash string
}

// ListExecutionsByUserParams pages the ledger for audit reads.
type ListExecutionsByUserParams struct {
	FromAddress string
	Limit       int32
	Offset      int32
}

// CreatePositionParams records a position opened by a confirmed execution.
type CreatePositionParams struct {
	ID           uuid.UUID
	ExecutionID  uuid.UUID
	UserAddress  string
	Instrument   string
	Market       string
	Side         string
	SizeUsdCents int64
}

// CreateCrossChainRouteParams memoizes a routing outcome.
type CreateCrossChainRouteParams struct {
	RouteKey            string
	DidRoute            bool
	FromChain           string
	ToChain             string
	Reason              string
	CreditedAmountCents int64
}

// CreateGasDripParams records one sponsorship drip.
type CreateGasDripParams struct {
	ID            uuid.UUID
	WalletAddress string
	AmountWei     string
	TxHash        string
}

// UpsertSessionCacheParams refreshes the cached view of an on-chain session.
type UpsertSessionCacheParams struct {
	SessionID string
	Owner     string
	Executor  string
	ExpiresAt time.Time
	MaxSpend  int64
	Spent     int64
	Active    bool
}

var _ Querier = (*Queries)(nil)
