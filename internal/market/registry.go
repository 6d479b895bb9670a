// Package market keeps an in-memory view of the venue's market catalog,
// refreshed periodically from the CLOB API.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

const defaultRefreshInterval = 6 * time.Hour

// CatalogSource is the catalog walk the registry refreshes from.
// *api.Client satisfies it.
type CatalogSource interface {
	FetchAllMarkets(ctx context.Context) ([]model.Market, error)
}

// Registry holds the current market catalog. Refresh swaps the whole
// view at once, so readers always see one consistent fetch.
type Registry struct {
	source   CatalogSource
	interval time.Duration
	logger   *slog.Logger

	refreshes atomic.Int64
	failures  atomic.Int64

	mu          sync.RWMutex
	markets     []model.Market // catalog fetch order
	byID        map[string]model.Market
	refreshedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Stats is a point-in-time snapshot of registry health.
type Stats struct {
	Markets     int
	Refreshes   int64
	Failures    int64
	RefreshedAt time.Time
}

// NewRegistry builds a registry refreshing every interval. interval <= 0
// uses the 6 hour default.
func NewRegistry(source CatalogSource, interval time.Duration, logger *slog.Logger) *Registry {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		source:   source,
		interval: interval,
		logger:   logger,
		byID:     make(map[string]model.Market),
	}
}

// Start performs the initial catalog fetch, then launches the refresh
// loop. A failed initial fetch leaves the registry empty and unstarted.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.refresh(ctx); err != nil {
		return fmt.Errorf("initial catalog fetch: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.refreshLoop()

	return nil
}

// Stop ends the refresh loop and waits for it, bounded by ctx.
func (r *Registry) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the market for a condition id.
func (r *Registry) Get(conditionID string) (model.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[conditionID]
	return m, ok
}

// TokenIDs collects outcome token ids for the given condition ids, in
// catalog order. Unknown ids are skipped. With no arguments it covers
// the whole catalog.
func (r *Registry) TokenIDs(conditionIDs ...string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	appendTokens := func(m model.Market) {
		for _, tok := range m.Tokens {
			if tok.ID != "" {
				ids = append(ids, tok.ID)
			}
		}
	}

	if len(conditionIDs) == 0 {
		for _, m := range r.markets {
			appendTokens(m)
		}
		return ids
	}

	for _, id := range conditionIDs {
		m, ok := r.byID[id]
		if !ok {
			r.logger.Debug("condition id not in catalog", "condition_id", id)
			continue
		}
		appendTokens(m)
	}
	return ids
}

// OpenMarkets returns the markets currently accepting orders.
func (r *Registry) OpenMarkets() []model.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []model.Market
	for _, m := range r.markets {
		if m.Open() {
			open = append(open, m)
		}
	}
	return open
}

// Len returns the number of markets in the current view.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// Stats snapshots registry counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	markets := len(r.markets)
	refreshedAt := r.refreshedAt
	r.mu.RUnlock()

	return Stats{
		Markets:     markets,
		Refreshes:   r.refreshes.Load(),
		Failures:    r.failures.Load(),
		RefreshedAt: refreshedAt,
	}
}

func (r *Registry) refreshLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.refresh(r.ctx); err != nil {
				r.logger.Warn("catalog refresh failed, keeping previous view", "error", err)
			}
		}
	}
}

// refresh fetches the catalog and swaps the view in one step.
func (r *Registry) refresh(ctx context.Context) error {
	started := time.Now()

	markets, err := r.source.FetchAllMarkets(ctx)
	if err != nil {
		r.failures.Add(1)
		return err
	}

	byID := make(map[string]model.Market, len(markets))
	for _, m := range markets {
		byID[m.ConditionID] = m
	}

	r.mu.Lock()
	r.markets = markets
	r.byID = byID
	r.refreshedAt = time.Now()
	r.mu.Unlock()

	r.refreshes.Add(1)
	r.logger.Info("market catalog refreshed",
		"markets", len(markets),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return nil
}
