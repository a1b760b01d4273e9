package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool against the configured database and verifies the
// connection before returning.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// schema is applied at startup. Statements are idempotent so repeated boots
// are safe without a separate migration runner.
const schema = `
CREATE TABLE IF NOT EXISTS queue_entries (
	queue_key   TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'pending',
	result      JSONB,
	tx_hash     TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS executions (
	id                 UUID PRIMARY KEY,
	chain              TEXT NOT NULL,
	network            TEXT NOT NULL,
	kind               TEXT NOT NULL,
	venue              TEXT NOT NULL,
	from_address       TEXT NOT NULL,
	to_address         TEXT NOT NULL,
	tx_hash            TEXT,
	status             TEXT NOT NULL DEFAULT 'pending',
	usd_estimate_cents BIGINT NOT NULL DEFAULT 0,
	queue_key          TEXT NOT NULL,
	content_hash       TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_executions_from_address ON executions (from_address, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_executions_queue_key ON executions (queue_key);

CREATE TABLE IF NOT EXISTS positions (
	id             UUID PRIMARY KEY,
	execution_id   UUID NOT NULL REFERENCES executions (id),
	user_address   TEXT NOT NULL,
	instrument     TEXT NOT NULL,
	market         TEXT NOT NULL,
	side           TEXT,
	size_usd_cents BIGINT NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'open',
	opened_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_positions_user_address ON positions (user_address);

CREATE TABLE IF NOT EXISTS cross_chain_routes (
	route_key             TEXT PRIMARY KEY,
	did_route             BOOLEAN NOT NULL,
	from_chain            TEXT,
	to_chain              TEXT NOT NULL,
	reason                TEXT NOT NULL,
	credited_amount_cents BIGINT NOT NULL DEFAULT 0,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS gas_drips (
	id             UUID PRIMARY KEY,
	wallet_address TEXT NOT NULL,
	amount_wei     TEXT NOT NULL,
	tx_hash        TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_gas_drips_wallet ON gas_drips (wallet_address);

CREATE TABLE IF NOT EXISTS session_cache (
	session_id   TEXT PRIMARY KEY,
	owner        TEXT NOT NULL,
	executor     TEXT NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL,
	max_spend    BIGINT NOT NULL,
	spent        BIGINT NOT NULL,
	active       BOOLEAN NOT NULL,
	refreshed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
