package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/gamma"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/poller"
	"github.com/rickgao/polymarket-data/internal/writer"
)

// Step names accepted by Run, in their conventional order.
const (
	StepMarkets = "markets"
	StepGamma   = "gamma"
	StepFilter  = "filter"
	StepBooks   = "books"
)

var (
	ErrNoSteps     = errors.New("no pipeline steps selected")
	ErrUnknownStep = errors.New("unknown pipeline step")
)

// CatalogSource fetches the full CLOB market catalog.
type CatalogSource interface {
	FetchAllMarkets(ctx context.Context) ([]model.Market, error)
}

// EventSource fetches the full Gamma event list.
type EventSource interface {
	FetchAllEvents(ctx context.Context, includeClosed bool) ([]gamma.Event, error)
}

// Options tunes one pipeline run.
type Options struct {
	MaxMarkets int  // cap markets in the books step, 0 means all
	Upload     bool // write fetched rows to Postgres as well as CSV
	FailFast   bool // abort on the first failed step
}

// Pipeline orchestrates the batch collection steps.
type Pipeline struct {
	cfg       config.PipelineConfig
	processor *Processor
	clob      CatalogSource
	events    EventSource
	books     poller.BookSource
	writer    *writer.MarketWriter // nil without a database
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline wires a pipeline. events, books, and mw may be nil when
// the corresponding steps will not run.
func NewPipeline(cfg config.PipelineConfig, clob CatalogSource, events EventSource, books poller.BookSource, mw *writer.MarketWriter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		processor: NewProcessor(cfg.DataDir, logger),
		clob:      clob,
		events:    events,
		books:     books,
		writer:    mw,
		logger:    logger.With("component", "pipeline"),
		now:       time.Now,
	}
}

// Processor exposes the CSV layer, mainly so callers can locate the
// files a run produced.
func (p *Pipeline) Processor() *Processor { return p.processor }

// Run executes the named steps in the order given. Step names are
// validated before anything runs. Without FailFast a failed step is
// logged and the rest still run; the combined error comes back at the
// end.
func (p *Pipeline) Run(ctx context.Context, steps []string, opts Options) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}
	for _, name := range steps {
		switch name {
		case StepMarkets, StepGamma, StepFilter, StepBooks:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownStep, name)
		}
	}

	if err := p.processor.SetupDirectories(); err != nil {
		return err
	}

	start := time.Now()
	date := p.now()

	var failures []error
	for _, name := range steps {
		p.logger.Info("pipeline step starting", "step", name)

		var err error
		switch name {
		case StepMarkets:
			err = p.runMarkets(ctx, date, opts)
		case StepGamma:
			err = p.runGamma(ctx, date, opts)
		case StepFilter:
			err = p.runFilter(date)
		case StepBooks:
			err = p.runBooks(ctx, date, opts)
		}
		if err == nil {
			p.logger.Info("pipeline step complete", "step", name)
			continue
		}

		p.logger.Error("pipeline step failed",
			"step", name,
			"retryable", isRetryable(err),
			"error", err,
		)
		failures = append(failures, fmt.Errorf("step %s: %w", name, err))
		if opts.FailFast {
			break
		}
	}

	p.logger.Info("pipeline finished",
		"steps", len(steps),
		"failed", len(failures),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return errors.Join(failures...)
}

func (p *Pipeline) runMarkets(ctx context.Context, date time.Time, opts Options) error {
	markets, err := p.clob.FetchAllMarkets(ctx)
	if err != nil {
		return fmt.Errorf("fetch clob markets: %w", err)
	}
	if len(markets) == 0 {
		return errors.New("clob returned no markets")
	}

	if err := p.processor.SaveMarketsCSV(markets, p.processor.MarketsPath(date)); err != nil {
		return err
	}

	if opts.Upload && p.writer != nil {
		n, err := p.writer.Upsert(ctx, markets)
		if err != nil {
			return fmt.Errorf("upload markets: %w", err)
		}
		p.logger.Info("markets uploaded", "rows", n)
	}
	return nil
}

func (p *Pipeline) runGamma(ctx context.Context, date time.Time, opts Options) error {
	events, err := p.events.FetchAllEvents(ctx, true)
	if err != nil {
		return fmt.Errorf("fetch gamma events: %w", err)
	}

	markets := gamma.EventsToMarkets(events, p.now())
	if len(markets) == 0 {
		return errors.New("gamma returned no markets")
	}

	if err := p.processor.SaveMarketsCSV(markets, p.processor.GammaPath(date)); err != nil {
		return err
	}
	p.logger.Info("gamma markets collected", "events", len(events), "markets", len(markets))

	if opts.Upload && p.writer != nil {
		n, err := p.writer.Replace(ctx, markets)
		if err != nil {
			return fmt.Errorf("upload gamma markets: %w", err)
		}
		p.logger.Info("gamma markets uploaded", "rows", n)
	}
	return nil
}

func (p *Pipeline) runFilter(date time.Time) error {
	raw, err := p.processor.LoadMarketsCSV(p.processor.MarketsPath(date))
	if err != nil {
		return err
	}

	open := p.processor.FilterOpenMarkets(raw)
	if err := p.processor.SaveMarketsCSV(open, p.processor.OpenMarketsPath(date)); err != nil {
		return err
	}

	p.logger.Info("open markets filtered", "total", len(raw), "open", len(open))
	return nil
}

func (p *Pipeline) runBooks(ctx context.Context, date time.Time, opts Options) error {
	open, err := p.processor.LoadMarketsCSV(p.processor.OpenMarketsPath(date))
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return errors.New("no open markets to poll")
	}
	if opts.MaxMarkets > 0 && len(open) > opts.MaxMarkets {
		open = open[:opts.MaxMarkets]
	}

	var tokenIDs []string
	for _, m := range open {
		for _, tok := range m.Tokens {
			if tok.ID != "" {
				tokenIDs = append(tokenIDs, tok.ID)
			}
		}
	}
	if len(tokenIDs) == 0 {
		return errors.New("open markets carry no token ids")
	}

	var mu sync.Mutex
	var snaps []model.BookSnapshot
	handler := poller.HandlerFunc(func(_ context.Context, snap model.BookSnapshot) error {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
		return nil
	})

	pol := poller.NewPoller(p.books, p.cfg.SnapshotWorkers, p.logger)
	result, err := pol.Run(ctx, tokenIDs, handler)
	if err != nil {
		return fmt.Errorf("poll books: %w", err)
	}
	if result.Fetched == 0 {
		return errors.New("no order books collected")
	}

	return p.processor.SaveBooksCSV(snaps, p.processor.BooksPath(date))
}

// isRetryable reports whether err traces back to a transient venue
// response, so operators can tell a rerun-worthy failure from a bug.
func isRetryable(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr) && apiErr.IsRetryable()
}
