package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema bootstrap. Both tables flatten the two-token market structure
// into token_0_* and token_1_* columns so downstream queries can join
// books to markets without unnesting.
const (
	marketsDDL = `
CREATE TABLE IF NOT EXISTS markets (
    condition_id       VARCHAR(80) PRIMARY KEY,
    question_id        VARCHAR(80),
    question           TEXT,
    slug               TEXT,
    category           VARCHAR(120),
    active             BOOLEAN NOT NULL DEFAULT FALSE,
    closed             BOOLEAN NOT NULL DEFAULT FALSE,
    accepting_orders   BOOLEAN NOT NULL DEFAULT FALSE,
    minimum_order_size NUMERIC(18, 6),
    minimum_tick_size  NUMERIC(18, 6),
    volume_24hr        NUMERIC(24, 6),
    liquidity          NUMERIC(24, 6),
    token_0_id         VARCHAR(100),
    token_0_outcome    TEXT,
    token_0_price      NUMERIC(10, 6),
    token_0_winner     BOOLEAN,
    token_1_id         VARCHAR(100),
    token_1_outcome    TEXT,
    token_1_price      NUMERIC(10, 6),
    token_1_winner     BOOLEAN,
    fetched_at         TIMESTAMPTZ,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

	bookSnapshotsDDL = `
CREATE TABLE IF NOT EXISTS book_snapshots (
    id           UUID PRIMARY KEY,
    asset_id     VARCHAR(100) NOT NULL,
    condition_id VARCHAR(80),
    snapshot_ts  TIMESTAMPTZ NOT NULL,
    received_at  TIMESTAMPTZ NOT NULL,
    source       VARCHAR(16) NOT NULL,
    bids         JSONB,
    asks         JSONB,
    best_bid     NUMERIC(10, 6),
    best_ask     NUMERIC(10, 6),
    spread       NUMERIC(10, 6),
    book_hash    VARCHAR(128)
)`
)

var indexDDL = []string{
	`CREATE INDEX IF NOT EXISTS idx_markets_active ON markets (active) WHERE active`,
	`CREATE INDEX IF NOT EXISTS idx_markets_token_0 ON markets (token_0_id)`,
	`CREATE INDEX IF NOT EXISTS idx_markets_token_1 ON markets (token_1_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_book_snapshots_natural
        ON book_snapshots (asset_id, snapshot_ts, book_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_book_snapshots_asset_ts
        ON book_snapshots (asset_id, snapshot_ts DESC)`,
}

// CreateTables bootstraps the schema. Every statement is idempotent,
// so running it against an existing database is safe.
func CreateTables(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{marketsDDL, bookSnapshotsDDL} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	for _, ddl := range indexDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}
