package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/polymarket-data/internal/connection"
	"github.com/rickgao/polymarket-data/internal/model"
)

var (
	// ErrAlreadyStreaming is returned by Start while a session is active.
	ErrAlreadyStreaming = errors.New("streaming session already active")

	// ErrNoTokens is returned by Start when the token list is empty.
	ErrNoTokens = errors.New("no token ids to stream")
)

// EventSink receives normalized market events in arrival order. It is
// invoked from a single delivery goroutine, so implementations need no
// locking of their own. A sink that blocks stalls delivery; it never
// loses or reorders events.
type EventSink func(model.MarketEvent)

// BookFetcher is the one catalog call the controller needs for one-shot
// snapshots. *api.Client satisfies it.
type BookFetcher interface {
	GetOrderBook(ctx context.Context, tokenID string) (*model.BookSnapshot, error)
}

// Controller owns at most one streaming session at a time.
type Controller struct {
	cfg    connection.SessionConfig
	books  BookFetcher
	logger *slog.Logger

	delivered        atomic.Int64
	snapshots        atomic.Int64
	snapshotFailures atomic.Int64

	mu       sync.Mutex
	session  *connection.Session
	cancel   context.CancelFunc
	delivery chan struct{} // closed when the delivery loop has drained
}

// Stats is a point-in-time snapshot of controller counters.
type Stats struct {
	Streaming        bool
	Delivered        int64
	Snapshots        int64
	SnapshotFailures int64
	Session          *connection.SessionStats
}

// NewController builds a controller. books may be nil when one-shot
// snapshots are not needed.
func NewController(cfg connection.SessionConfig, books BookFetcher, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		books:  books,
		logger: logger,
	}
}

// Start begins streaming the given tokens into sink. Duplicate ids are
// collapsed. duration > 0 bounds the whole session, including every
// reconnect attempt; duration <= 0 streams until Stop. Start returns as
// soon as the session worker and delivery loop are launched.
func (c *Controller) Start(ctx context.Context, tokenIDs []string, sink EventSink, duration time.Duration) error {
	subs := model.NewSubscriptionSet(tokenIDs)
	if subs.Len() == 0 {
		return ErrNoTokens
	}
	if sink == nil {
		sink = func(model.MarketEvent) {}
	}

	if err := c.reapFinished(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return ErrAlreadyStreaming
	}

	sessionCtx, cancel := c.sessionContext(ctx, duration)

	sess := connection.NewSession(c.cfg, subs, c.logger)
	done := make(chan struct{})
	sess.Start(sessionCtx)
	go c.deliver(sess, sink, done)

	c.session = sess
	c.cancel = cancel
	c.delivery = done

	c.logger.Info("streaming started",
		"session_id", sess.ID(),
		"assets", subs.Len(),
		"duration", duration,
	)
	return nil
}

// Stop ends the active session and waits, bounded, for the delivery
// loop to drain. Stopping an idle controller is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	sess, cancel, delivery := c.session, c.cancel, c.delivery
	c.session, c.cancel, c.delivery = nil, nil, nil
	c.mu.Unlock()

	if sess == nil {
		c.logger.Info("stop requested with no active stream")
		return nil
	}

	stopErr := sess.Stop(ctx)
	cancel()

	select {
	case <-delivery:
	case <-time.After(c.stopTimeout()):
		c.logger.Warn("delivery loop still draining after stop timeout")
	case <-ctx.Done():
		if stopErr == nil {
			stopErr = ctx.Err()
		}
	}

	c.logger.Info("streaming stopped", "session_id", sess.ID())
	return stopErr
}

// FetchSnapshot fetches one order book over REST. Failures are logged
// and yield nil; the call never returns an error.
func (c *Controller) FetchSnapshot(ctx context.Context, tokenID string) *model.BookSnapshot {
	if c.books == nil {
		c.logger.Warn("snapshot fetch requested without a catalog client", "token_id", tokenID)
		return nil
	}

	snap, err := c.books.GetOrderBook(ctx, tokenID)
	if err != nil {
		c.snapshotFailures.Add(1)
		c.logger.Warn("snapshot fetch failed", "token_id", tokenID, "error", err)
		return nil
	}

	c.snapshots.Add(1)
	return snap
}

// IsStreaming reports whether a session worker is currently running.
func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return false
	}
	select {
	case <-c.session.Done():
		return false
	default:
		return true
	}
}

// State returns the lifecycle state of the current session, or
// StateDisconnected when there is none.
func (c *Controller) State() model.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return model.StateDisconnected
	}
	return c.session.State()
}

// Stats snapshots controller counters plus the current session's stats.
func (c *Controller) Stats() Stats {
	stats := Stats{
		Streaming:        c.IsStreaming(),
		Delivered:        c.delivered.Load(),
		Snapshots:        c.snapshots.Load(),
		SnapshotFailures: c.snapshotFailures.Load(),
	}

	c.mu.Lock()
	if c.session != nil {
		s := c.session.Stats()
		stats.Session = &s
	}
	c.mu.Unlock()

	return stats
}

// deliver is the single goroutine that invokes the sink. It exits when
// the session closes its event channel.
func (c *Controller) deliver(sess *connection.Session, sink EventSink, done chan struct{}) {
	defer close(done)
	for event := range sess.Events() {
		sink(event)
		c.delivered.Add(1)
	}
}

// reapFinished clears a session whose worker already exited on its own,
// waiting for its delivery loop to drain so sinks never see two loops
// at once. Returns ErrAlreadyStreaming if the session is still live.
func (c *Controller) reapFinished() error {
	c.mu.Lock()
	sess := c.session
	if sess == nil {
		c.mu.Unlock()
		return nil
	}
	select {
	case <-sess.Done():
	default:
		c.mu.Unlock()
		return ErrAlreadyStreaming
	}
	cancel, delivery := c.cancel, c.delivery
	c.session, c.cancel, c.delivery = nil, nil, nil
	c.mu.Unlock()

	<-delivery
	cancel()
	c.logger.Debug("finished session reaped", "session_id", sess.ID())
	return nil
}

func (c *Controller) sessionContext(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration > 0 {
		return context.WithTimeout(ctx, duration)
	}
	return context.WithCancel(ctx)
}

func (c *Controller) stopTimeout() time.Duration {
	if c.cfg.StopTimeout > 0 {
		return c.cfg.StopTimeout
	}
	return connection.DefaultSessionConfig().StopTimeout
}
