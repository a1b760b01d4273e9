package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by Queries, satisfied by *pgxpool.Pool and
// pgx.Tx alike.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Queries implements Querier against PostgreSQL.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given connection or pool.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const getQueueEntry = `
SELECT queue_key, status, result, tx_hash, created_at, updated_at
FROM queue_entries
WHERE queue_key = $1
`

func (q *Queries) GetQueueEntry(ctx context.Context, queueKey string) (QueueEntry, error) {
	row := q.db.QueryRow(ctx, getQueueEntry, queueKey)
	var e QueueEntry
	err := row.Scan(&e.QueueKey, &e.Status, &e.Result, &e.TxHash, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

const createQueueEntry = `
INSERT INTO queue_entries (queue_key, status, created_at, updated_at)
VALUES ($1, 'pending', now(), now())
RETURNING queue_key, status, result, tx_hash, created_at, updated_at
`

func (q *Queries) CreateQueueEntry(ctx context.Context, queueKey string) (QueueEntry, error) {
	row := q.db.QueryRow(ctx, createQueueEntry, queueKey)
	var e QueueEntry
	err := row.Scan(&e.QueueKey, &e.Status, &e.Result, &e.TxHash, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

const finalizeQueueEntry = `
UPDATE queue_entries
SET status = 'done', result = $2, tx_hash = NULLIF($3, ''), updated_at = now()
WHERE queue_key = $1
RETURNING queue_key, status, result, tx_hash, created_at, updated_at
`

func (q *Queries) FinalizeQueueEntry(ctx context.Context, arg FinalizeQueueEntryParams) (QueueEntry, error) {
	row := q.db.QueryRow(ctx, finalizeQueueEntry, arg.QueueKey, arg.Result, arg.TxHash)
	var e QueueEntry
	err := row.Scan(&e.QueueKey, &e.Status, &e.Result, &e.TxHash, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

const deleteQueueEntry = `
DELETE FROM queue_entries
WHERE queue_key = $1
`

func (q *Queries) DeleteQueueEntry(ctx context.Context, queueKey string) error {
	_, err := q.db.Exec(ctx, deleteQueueEntry, queueKey)
	return err
}

const pruneQueueEntries = `
DELETE FROM queue_entries
WHERE status = 'done' AND updated_at < $1
`

func (q *Queries) PruneQueueEntries(ctx context.Context, before time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, pruneQueueEntries, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const createExecution = `
INSERT INTO executions (
	id, chain, network, kind, venue, from_address, to_address, tx_hash,
	status, usd_estimate_cents, queue_key, content_hash, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, now(), now())
RETURNING id, chain, network, kind, venue, from_address, to_address, tx_hash,
	status, usd_estimate_cents, queue_key, content_hash, created_at, updated_at
`

func (q *Queries) CreateExecution(ctx context.Context, arg CreateExecutionParams) (Execution, error) {
	row := q.db.QueryRow(ctx, createExecution,
		arg.ID, arg.Chain, arg.Network, arg.Kind, arg.Venue, arg.FromAddress,
		arg.ToAddress, arg.TxHash, arg.Status, arg.UsdEstimateCents,
		arg.QueueKey, arg.ContentHash,
	)
	return scanExecution(row)
}

const updateExecutionStatus = `
UPDATE executions
SET status = $2, tx_hash = COALESCE(NULLIF($3, ''), tx_hash), updated_at = now()
WHERE id = $1
RETURNING id, chain, network, kind, venue, from_address, to_address, tx_hash,
	status, usd_estimate_cents, queue_key, content_hash, created_at, updated_at
`

func (q *Queries) UpdateExecutionStatus(ctx context.Context, arg UpdateExecutionStatusParams) (Execution, error) {
	row := q.db.QueryRow(ctx, updateExecutionStatus, arg.ID, arg.Status, arg.TxHash)
	return scanExecution(row)
}

const getExecution = `
SELECT id, chain, network, kind, venue, from_address, to_address, tx_hash,
	status, usd_estimate_cents, queue_key, content_hash, created_at, updated_at
FROM executions
WHERE id = $1
`

func (q *Queries) GetExecution(ctx context.Context, id uuid.UUID) (Execution, error) {
	row := q.db.QueryRow(ctx, getExecution, id)
	return scanExecution(row)
}

const listExecutionsByUser = `
SELECT id, chain, network, kind, venue, from_address, to_address, tx_hash,
	status, usd_estimate_cents, queue_key, content_hash, created_at, updated_at
FROM executions
WHERE from_address = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListExecutionsByUser(ctx context.Context, arg ListExecutionsByUserParams) ([]Execution, error) {
	rows, err := q.db.Query(ctx, listExecutionsByUser, arg.FromAddress, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const createPosition = `
INSERT INTO positions (
	id, execution_id, user_address, instrument, market, side, size_usd_cents, status, opened_at
) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, 'open', now())
RETURNING id, execution_id, user_address, instrument, market, side, size_usd_cents, status, opened_at
`

func (q *Queries) CreatePosition(ctx context.Context, arg CreatePositionParams) (Position, error) {
	row := q.db.QueryRow(ctx, createPosition,
		arg.ID, arg.ExecutionID, arg.UserAddress, arg.Instrument, arg.Market,
		arg.Side, arg.SizeUsdCents,
	)
	var p Position
	err := row.Scan(&p.ID, &p.ExecutionID, &p.UserAddress, &p.Instrument,
		&p.Market, &p.Side, &p.SizeUsdCents, &p.Status, &p.OpenedAt)
	return p, err
}

const getCrossChainRoute = `
SELECT route_key, did_route, from_chain, to_chain, reason, credited_amount_cents, created_at
FROM cross_chain_routes
WHERE route_key = $1
`

func (q *Queries) GetCrossChainRoute(ctx context.Context, routeKey string) (CrossChainRoute, error) {
	row := q.db.QueryRow(ctx, getCrossChainRoute, routeKey)
	var r CrossChainRoute
	err := row.Scan(&r.RouteKey, &r.DidRoute, &r.FromChain, &r.ToChain,
		&r.Reason, &r.CreditedAmountCents, &r.CreatedAt)
	return r, err
}

const createCrossChainRoute = `
INSERT INTO cross_chain_routes (
	route_key, did_route, from_chain, to_chain, reason, credited_amount_cents, created_at
) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, now())
ON CONFLICT (route_key) DO UPDATE SET route_key = EXCLUDED.route_key
RETURNING route_key, did_route, from_chain, to_chain, reason, credited_amount_cents, created_at
`

func (q *Queries) CreateCrossChainRoute(ctx context.Context, arg CreateCrossChainRouteParams) (CrossChainRoute, error) {
	row := q.db.QueryRow(ctx, createCrossChainRoute,
		arg.RouteKey, arg.DidRoute, arg.FromChain, arg.ToChain, arg.Reason,
		arg.CreditedAmountCents,
	)
	var r CrossChainRoute
	err := row.Scan(&r.RouteKey, &r.DidRoute, &r.FromChain, &r.ToChain,
		&r.Reason, &r.CreditedAmountCents, &r.CreatedAt)
	return r, err
}

const countDripsForWallet = `
SELECT count(*) FROM gas_drips WHERE wallet_address = $1
`

func (q *Queries) CountDripsForWallet(ctx context.Context, walletAddress string) (int64, error) {
	row := q.db.QueryRow(ctx, countDripsForWallet, walletAddress)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const createGasDrip = `
INSERT INTO gas_drips (id, wallet_address, amount_wei, tx_hash, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), now())
RETURNING id, wallet_address, amount_wei, tx_hash, created_at
`

func (q *Queries) CreateGasDrip(ctx context.Context, arg CreateGasDripParams) (GasDrip, error) {
	row := q.db.QueryRow(ctx, createGasDrip, arg.ID, arg.WalletAddress, arg.AmountWei, arg.TxHash)
	var d GasDrip
	err := row.Scan(&d.ID, &d.WalletAddress, &d.AmountWei, &d.TxHash, &d.CreatedAt)
	return d, err
}

const getSessionCache = `
SELECT session_id, owner, executor, expires_at, max_spend, spent, active, refreshed_at
FROM session_cache
WHERE session_id = $1
`

func (q *Queries) GetSessionCache(ctx context.Context, sessionID string) (SessionCache, error) {
	row := q.db.QueryRow(ctx, getSessionCache, sessionID)
	var s SessionCache
	err := row.Scan(&s.SessionID, &s.Owner, &s.Executor, &s.ExpiresAt,
		&s.MaxSpend, &s.Spent, &s.Active, &s.RefreshedAt)
	return s, err
}

const upsertSessionCache = `
INSERT INTO session_cache (session_id, owner, executor, expires_at, max_spend, spent, active, refreshed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (session_id) DO UPDATE SET
	owner = EXCLUDED.owner,
	executor = EXCLUDED.executor,
	expires_at = EXCLUDED.expires_at,
	max_spend = EXCLUDED.max_spend,
	spent = EXCLUDED.spent,
	active = EXCLUDED.active,
	refreshed_at = now()
RETURNING session_id, owner, executor, expires_at, max_spend, spent, active, refreshed_at
`

func (q *Queries) UpsertSessionCache(ctx context.Context, arg UpsertSessionCacheParams) (SessionCache, error) {
	row := q.db.QueryRow(ctx, upsertSessionCache,
		arg.SessionID, arg.Owner, arg.Executor, arg.ExpiresAt, arg.MaxSpend,
		arg.Spent, arg.Active,
	)
	var s SessionCache
	err := row.Scan(&s.SessionID, &s.Owner, &s.Executor, &s.ExpiresAt,
		&s.MaxSpend, &s.Spent, &s.Active, &s.RefreshedAt)
	return s, err
}

func scanExecution(row interface{ Scan(dest ...interface{}) error }) (Execution, error) {
	var e Execution
	err := row.Scan(&e.ID, &e.Chain, &e.Network, &e.Kind, &e.Venue,
		&e.FromAddress, &e.ToAddress, &e.TxHash, &e.Status,
		&e.UsdEstimateCents, &e.QueueKey, &e.ContentHash, &e.CreatedAt,
		&e.UpdatedAt)
	return e, err
}
