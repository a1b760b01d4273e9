package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Execution statuses mirror the on-chain receipt classification.
const (
	ExecutionStatusPending   = "pending"
	ExecutionStatusConfirmed = "confirmed"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusTimeout   = "timeout"
)

// Queue entry statuses for the idempotency table.
const (
	QueueStatusPending = "pending"
	QueueStatusDone    = "done"
)

// Execution is one row of the append-only execution ledger.
type Execution struct {
	ID               uuid.UUID          `json:"id"`
	Chain            string             `json:"chain"`
	Network          string             `json:"network"`
	Kind             string             `json:"kind"`
	Venue            string             `json:"venue"`
	FromAddress      string             `json:"from_address"`
	ToAddress        string             `json:"to_address"`
	TxHash           pgtype.Text        `json:"tx_hash"`
	Status           string             `json:"status"`
	UsdEstimateCents pgtype.Int8        `json:"usd_estimate_cents"`
	QueueKey         string             `json:"queue_key"`
	ContentHash      string             `json:"content_hash"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}

// Position records an open position created by a confirmed execution.
type Position struct {
	ID           uuid.UUID          `json:"id"`
	ExecutionID  uuid.UUID          `json:"execution_id"`
	UserAddress  string             `json:"user_address"`
	Instrument   string             `json:"instrument"`
	Market       string             `json:"market"`
	Side         pgtype.Text        `json:"side"`
	SizeUsdCents int64              `json:"size_usd_cents"`
	Status       string             `json:"status"`
	OpenedAt     pgtype.Timestamptz `json:"opened_at"`
}

// QueueEntry makes the relay endpoint idempotent. One row per logical
// execution attempt, keyed by hash(draftId, userAddress, sessionId, nonce).
type QueueEntry struct {
	QueueKey  string             `json:"queue_key"`
	Status    string             `json:"status"`
	Result    []byte             `json:"result"`
	TxHash    pgtype.Text        `json:"tx_hash"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

// CrossChainRoute memoizes a routing outcome per (user, session, nonce) so
// retries of the same logical execution never double-route.
type CrossChainRoute struct {
	RouteKey            string             `json:"route_key"`
	DidRoute            bool               `json:"did_route"`
	FromChain           pgtype.Text        `json:"from_chain"`
	ToChain             string             `json:"to_chain"`
	Reason              string             `json:"reason"`
	CreditedAmountCents pgtype.Int8        `json:"credited_amount_cents"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
}

// GasDrip records one capped gas-sponsorship transfer to a user wallet.
type GasDrip struct {
	ID            uuid.UUID          `json:"id"`
	WalletAddress string             `json:"wallet_address"`
	AmountWei     string             `json:"amount_wei"`
	TxHash        pgtype.Text        `json:"tx_hash"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

// SessionCache is a read-through cache of on-chain session state. The chain
// remains authoritative; rows here serve audit reads.
type SessionCache struct {
	SessionID   string             `json:"session_id"`
	Owner       string             `json:"owner"`
	Executor    string             `json:"executor"`
	ExpiresAt   pgtype.Timestamptz `json:"expires_at"`
	MaxSpend    int64              `json:"max_spend"`
	Spent       int64              `json:"spent"`
	Active      bool               `json:"active"`
	RefreshedAt pgtype.Timestamptz `json:"refreshed_at"`
}
