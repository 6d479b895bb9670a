package writer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-data/internal/model"
)

const upsertMarketSQL = `
INSERT INTO markets (
    condition_id, question_id, question, slug, category,
    active, closed, accepting_orders,
    minimum_order_size, minimum_tick_size, volume_24hr, liquidity,
    token_0_id, token_0_outcome, token_0_price, token_0_winner,
    token_1_id, token_1_outcome, token_1_price, token_1_winner,
    fetched_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
    $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
    $21, NOW()
)
ON CONFLICT (condition_id) DO UPDATE SET
    question_id        = EXCLUDED.question_id,
    question           = EXCLUDED.question,
    slug               = EXCLUDED.slug,
    category           = EXCLUDED.category,
    active             = EXCLUDED.active,
    closed             = EXCLUDED.closed,
    accepting_orders   = EXCLUDED.accepting_orders,
    minimum_order_size = EXCLUDED.minimum_order_size,
    minimum_tick_size  = EXCLUDED.minimum_tick_size,
    volume_24hr        = EXCLUDED.volume_24hr,
    liquidity          = EXCLUDED.liquidity,
    token_0_id         = EXCLUDED.token_0_id,
    token_0_outcome    = EXCLUDED.token_0_outcome,
    token_0_price      = EXCLUDED.token_0_price,
    token_0_winner     = EXCLUDED.token_0_winner,
    token_1_id         = EXCLUDED.token_1_id,
    token_1_outcome    = EXCLUDED.token_1_outcome,
    token_1_price      = EXCLUDED.token_1_price,
    token_1_winner     = EXCLUDED.token_1_winner,
    fetched_at         = EXCLUDED.fetched_at,
    updated_at         = NOW()`

// MarketWriter batch-writes catalog rows into the markets table.
type MarketWriter struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewMarketWriter creates a market writer on the given pool.
func NewMarketWriter(db *pgxpool.Pool, logger *slog.Logger) *MarketWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketWriter{
		db:     db,
		logger: logger.With("component", "market_writer"),
	}
}

// Upsert writes markets, updating rows that already exist in place.
// Returns the number of rows written.
func (w *MarketWriter) Upsert(ctx context.Context, markets []model.Market) (int, error) {
	if len(markets) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketSQL, marketArgs(m)...)
	}

	if err := execBatch(ctx, w.db, batch); err != nil {
		return 0, fmt.Errorf("upsert markets: %w", err)
	}

	w.logger.Info("market batch upserted", "markets", len(markets))
	return len(markets), nil
}

// Replace truncates the markets table and writes the batch inside one
// transaction. The daily Gamma refresh uses it so delisted markets
// disappear instead of lingering as stale rows.
func (w *MarketWriter) Replace(ctx context.Context, markets []model.Market) (int, error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE TABLE markets`); err != nil {
		return 0, fmt.Errorf("truncate markets: %w", err)
	}

	if len(markets) > 0 {
		batch := &pgx.Batch{}
		for _, m := range markets {
			batch.Queue(upsertMarketSQL, marketArgs(m)...)
		}
		if err := execBatch(ctx, tx, batch); err != nil {
			return 0, fmt.Errorf("replace markets: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}

	w.logger.Info("market table replaced", "markets", len(markets))
	return len(markets), nil
}

// marketArgs flattens a market into the upsert argument list. Missing
// tokens become NULL columns; tokens beyond the second are dropped.
func marketArgs(m model.Market) []any {
	args := []any{
		m.ConditionID, m.QuestionID, m.Question, m.Slug, m.Category,
		m.Active, m.Closed, m.AcceptingOrders,
		m.MinimumOrderSize, m.MinimumTickSize, m.Volume24h, m.Liquidity,
	}

	for i := 0; i < 2; i++ {
		if i < len(m.Tokens) {
			tok := m.Tokens[i]
			args = append(args, tok.ID, tok.Outcome, tok.Price, tok.Winner)
		} else {
			args = append(args, nil, nil, nil, nil)
		}
	}

	var fetchedAt any
	if !m.FetchedAt.IsZero() {
		fetchedAt = m.FetchedAt
	}
	return append(args, fetchedAt)
}

// batchSender is the part of the pgx API shared by pools and transactions.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func execBatch(ctx context.Context, db batchSender, batch *pgx.Batch) error {
	results := db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}
