package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/router"
)

const insertBookSQL = `
INSERT INTO book_snapshots (
    id, asset_id, condition_id, snapshot_ts, received_at, source,
    bids, asks, best_bid, best_ask, spread, book_hash
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (asset_id, snapshot_ts, book_hash) DO NOTHING`

// BookWriter drains a snapshot buffer and batch-inserts rows into
// book_snapshots. A batch flushes when it reaches BatchSize or on the
// next FlushInterval tick.
type BookWriter struct {
	cfg    WriterConfig
	input  *router.GrowableBuffer[model.BookSnapshot]
	db     *pgxpool.Pool
	logger *slog.Logger

	batch   []bookRow
	batchMu sync.Mutex

	flushTicker *time.Ticker
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	metrics   WriterMetrics
	metricsMu sync.Mutex
}

// NewBookWriter creates a writer consuming from input. Zero config
// values fall back to DefaultWriterConfig.
func NewBookWriter(cfg WriterConfig, input *router.GrowableBuffer[model.BookSnapshot], db *pgxpool.Pool, logger *slog.Logger) *BookWriter {
	def := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.Source == "" {
		cfg.Source = def.Source
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &BookWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger.With("component", "book_writer"),
	}
}

// Start launches the consume and flush loops.
func (w *BookWriter) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("book writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"source", w.cfg.Source,
	)
}

// Stop ends the loops, drains whatever is still buffered, and flushes
// the final batch. The wait for loop shutdown is bounded by ctx; the
// drain and final flush run regardless.
func (w *BookWriter) Stop(ctx context.Context) {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.flushTicker.Stop()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("book writer stop timed out, flushing anyway")
	}

	w.drainInput()
	w.flush(ctx)
	w.logger.Info("book writer stopped")
}

// Metrics returns a snapshot of the writer counters.
func (w *BookWriter) Metrics() WriterMetrics {
	w.metricsMu.Lock()
	defer w.metricsMu.Unlock()
	return w.metrics
}

func (w *BookWriter) consumeLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		snap, ok := w.input.TryReceive()
		if !ok {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		w.handleSnapshot(w.ctx, snap)
	}
}

func (w *BookWriter) flushLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *BookWriter) handleSnapshot(ctx context.Context, snap model.BookSnapshot) {
	if w.add(snap) >= w.cfg.BatchSize {
		w.flush(ctx)
	}
}

// add transforms and queues one snapshot, returning the batch size.
func (w *BookWriter) add(snap model.BookSnapshot) int {
	row := w.transform(snap)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	size := len(w.batch)
	w.batchMu.Unlock()

	w.metricsMu.Lock()
	w.metrics.Received++
	w.metricsMu.Unlock()

	return size
}

func (w *BookWriter) drainInput() {
	for _, snap := range w.input.DrainTo(0) {
		w.add(snap)
	}
}

func (w *BookWriter) transform(snap model.BookSnapshot) bookRow {
	bestBid := snap.BestBid()
	bestAsk := snap.BestAsk()

	var spread float64
	if bestBid > 0 && bestAsk > 0 {
		spread = bestAsk - bestBid
	}

	return bookRow{
		ID:          uuid.NewString(),
		AssetID:     snap.AssetID,
		ConditionID: snap.ConditionID,
		SnapshotTs:  snap.Timestamp,
		ReceivedAt:  time.Now().UTC(),
		Source:      w.cfg.Source,
		Bids:        levelsToJSON(snap.Bids),
		Asks:        levelsToJSON(snap.Asks),
		BestBid:     bestBid,
		BestAsk:     bestAsk,
		Spread:      spread,
		BookHash:    snap.Hash,
	}
}

// flush writes the accumulated batch. ctx arrives as a parameter so the
// final flush during Stop still has a live context after w.ctx is
// canceled.
func (w *BookWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	rows := w.batch
	w.batch = nil
	w.batchMu.Unlock()

	written, conflicts, err := w.batchInsert(ctx, rows)

	w.metricsMu.Lock()
	w.metrics.Written += int64(written)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	if err != nil {
		w.metrics.Failed += int64(len(rows) - written - conflicts)
	}
	w.metricsMu.Unlock()

	if err != nil {
		w.logger.Error("book batch insert failed", "rows", len(rows), "error", err)
		return
	}
	w.logger.Debug("book batch flushed", "written", written, "conflicts", conflicts)
}

func (w *BookWriter) batchInsert(ctx context.Context, rows []bookRow) (written, conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertBookSQL,
			row.ID, row.AssetID, row.ConditionID, row.SnapshotTs, row.ReceivedAt, row.Source,
			row.Bids, row.Asks, row.BestBid, row.BestAsk, row.Spread, row.BookHash,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		ct, execErr := results.Exec()
		if execErr != nil {
			return written, conflicts, fmt.Errorf("batch statement %d: %w", i, execErr)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		} else {
			written++
		}
	}
	return written, conflicts, nil
}
