package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/rickgao/polymarket-data/internal/model"
)

const defaultWorkers = 8

// SnapshotHandler receives fetched snapshots. Handlers are invoked
// concurrently from the poller's workers.
type SnapshotHandler interface {
	HandleSnapshot(ctx context.Context, snap model.BookSnapshot) error
}

// HandlerFunc is a function adapter for SnapshotHandler.
type HandlerFunc func(ctx context.Context, snap model.BookSnapshot) error

// HandleSnapshot calls f.
func (f HandlerFunc) HandleSnapshot(ctx context.Context, snap model.BookSnapshot) error {
	return f(ctx, snap)
}

// BookSource fetches a single order book over REST. *api.Client
// satisfies it.
type BookSource interface {
	GetOrderBook(ctx context.Context, tokenID string) (*model.BookSnapshot, error)
}

// Poller fans snapshot fetches out to a bounded worker pool.
type Poller struct {
	source  BookSource
	workers int64
	logger  *slog.Logger
}

// Result sums up one polling run.
type Result struct {
	Requested int
	Fetched   int
	Failed    int
}

// NewPoller builds a poller running at most workers concurrent fetches.
// workers <= 0 uses the default of 8.
func NewPoller(source BookSource, workers int, logger *slog.Logger) *Poller {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:  source,
		workers: int64(workers),
		logger:  logger,
	}
}

// Run fetches a book for every token id and hands each snapshot to
// handler. Per-token failures, handler errors included, are logged and
// counted but never abort the run. Only context cancellation ends a run
// early, returning the partial result alongside the context error.
func (p *Poller) Run(ctx context.Context, tokenIDs []string, handler SnapshotHandler) (Result, error) {
	sem := semaphore.NewWeighted(p.workers)
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	result := Result{Requested: len(tokenIDs)}

	for _, tokenID := range tokenIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			result.Fetched = int(fetched.Load())
			result.Failed = int(failed.Load())
			return result, err
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)

			snap, err := p.source.GetOrderBook(ctx, id)
			if err != nil {
				failed.Add(1)
				p.logger.Warn("book fetch failed", "token_id", id, "error", err)
				return
			}

			if handler != nil {
				if err := handler.HandleSnapshot(ctx, *snap); err != nil {
					failed.Add(1)
					p.logger.Warn("snapshot handler failed", "token_id", id, "error", err)
					return
				}
			}

			fetched.Add(1)
		}(tokenID)
	}

	wg.Wait()

	result.Fetched = int(fetched.Load())
	result.Failed = int(failed.Load())

	p.logger.Info("snapshot poll complete",
		"requested", result.Requested,
		"fetched", result.Fetched,
		"failed", result.Failed,
	)
	return result, nil
}
