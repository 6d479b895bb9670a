package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/router"
)

// Session drives one streaming lifecycle for a fixed token set: dial,
// subscribe, pump events, reconnect on drops, stop on request.
//
// The worker goroutine owns every state transition. The caller only sets
// the stop flag and reads state through atomic accessors, so no field has
// more than one writer.
type Session struct {
	cfg    SessionConfig
	subs   model.SubscriptionSet
	norm   *router.Normalizer
	logger *slog.Logger
	id     string

	events chan model.MarketEvent
	stopCh chan struct{}
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	state    atomic.Int32
	connects atomic.Int64

	// Current transport. Swapped by the worker, closed by Stop to
	// unblock a pending read.
	clientMu sync.Mutex
	client   Client
}

// SessionStats is a point-in-time snapshot of session health.
type SessionStats struct {
	SessionID  string
	State      model.ConnectionState
	AssetCount int
	Connects   int64
	Normalizer router.NormalizerStats
}

// NewSession builds a session for the given subscription set. The set is
// immutable for the session's lifetime; every reconnect resubscribes to
// exactly these ids.
func NewSession(cfg SessionConfig, subs model.SubscriptionSet, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultSessionConfig().EventBuffer
	}

	id := uuid.NewString()
	logger = logger.With("session_id", id)

	return &Session{
		cfg:    cfg,
		subs:   subs,
		norm:   router.NewNormalizer(subs, logger),
		logger: logger,
		id:     id,
		events: make(chan model.MarketEvent, cfg.EventBuffer),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ID returns the session's correlation id.
func (s *Session) ID() string { return s.id }

// Events returns the channel normalized events are delivered on, in
// arrival order. It is closed when the worker exits.
func (s *Session) Events() <-chan model.MarketEvent {
	return s.events
}

// Done is closed when the worker has fully exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Session) State() model.ConnectionState {
	return model.ConnectionState(s.state.Load())
}

// Stats snapshots the session counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		SessionID:  s.id,
		State:      s.State(),
		AssetCount: s.subs.Len(),
		Connects:   s.connects.Load(),
		Normalizer: s.norm.Stats(),
	}
}

// Start launches the session worker. The context bounds the whole
// session: when its deadline fires the transport is closed and the
// worker exits without reconnecting. Start must be called at most once.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

// Stop requests shutdown, closes the transport to unblock a pending
// read, and waits for the worker bounded by StopTimeout. Safe to call
// more than once.
func (s *Session) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping streaming session")
		close(s.stopCh)
		if c := s.currentClient(); c != nil {
			c.Close()
		}
	})

	timeout := s.cfg.StopTimeout
	if timeout <= 0 {
		timeout = DefaultSessionConfig().StopTimeout
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(timeout):
		s.logger.Warn("session worker still draining after stop timeout")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the session worker. It loops connect, subscribe, pump until a
// stop request or the context deadline ends the session.
func (s *Session) run(ctx context.Context) {
	defer func() {
		s.setState(model.StateDisconnecting)
		if c := s.takeClient(); c != nil {
			c.Close()
		}
		s.setState(model.StateDisconnected)
		close(s.events)
		close(s.done)
	}()

	wait := s.cfg.ReconnectBaseWait

	for {
		if s.stopping() || ctx.Err() != nil {
			return
		}

		s.setState(model.StateConnecting)
		client, err := s.connect(ctx)
		if err != nil {
			s.setState(model.StateDisconnected)
			s.logger.Warn("feed connect failed", "wait", wait, "error", err)
			if !s.sleep(ctx, wait) {
				return
			}
			wait = nextBackoff(wait, s.cfg.ReconnectMaxWait)
			continue
		}

		// A stop that raced the dial must not reach Subscribed.
		if s.stopping() || ctx.Err() != nil {
			client.Close()
			return
		}

		s.setClient(client)
		s.setState(model.StateSubscribed)
		s.connects.Add(1)
		wait = s.cfg.ReconnectBaseWait
		s.logger.Info("subscribed to market feed", "assets", s.subs.Len())

		s.pump(ctx, client)

		s.takeClient()
		client.Close()

		if s.stopping() || ctx.Err() != nil {
			return
		}

		s.setState(model.StateDisconnected)
		s.logger.Warn("feed connection dropped, reconnecting", "wait", wait)
		if !s.sleep(ctx, wait) {
			return
		}
		wait = nextBackoff(wait, s.cfg.ReconnectMaxWait)
	}
}

// connect dials the feed and sends the single subscribe frame carrying
// the full token set.
func (s *Session) connect(ctx context.Context) (Client, error) {
	defaults := DefaultClientConfig()
	client := NewClient(ClientConfig{
		URL:              s.cfg.URL,
		PingInterval:     s.cfg.PingInterval,
		HandshakeTimeout: defaults.HandshakeTimeout,
		WriteTimeout:     defaults.WriteTimeout,
		BufferSize:       s.cfg.EventBuffer,
	}, s.logger)

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	frame, err := json.Marshal(subscribeFrame{
		AssetsIDs: s.subs.IDs(),
		Type:      marketChannel,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	if err := client.Send(frame); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// pump forwards normalized events until the transport fails, a stop
// arrives, or the deadline fires. The event send blocks, so a slow
// consumer applies backpressure instead of losing events.
func (s *Session) pump(ctx context.Context, client Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case err := <-client.Errors():
			s.logger.Warn("feed transport error", "error", err)
			return
		case msg := <-client.Messages():
			for _, event := range s.norm.Normalize(msg.Data, msg.ReceivedAt) {
				select {
				case s.events <- event:
				case <-ctx.Done():
					return
				case <-s.stopCh:
					return
				}
			}
		}
	}
}

// sleep waits for d unless a stop request or the context ends the wait.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-s.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Session) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Session) setState(state model.ConnectionState) {
	old := model.ConnectionState(s.state.Swap(int32(state)))
	if old != state {
		s.logger.Debug("session state changed", "from", old, "to", state)
	}
}

func (s *Session) setClient(c Client) {
	s.clientMu.Lock()
	s.client = c
	s.clientMu.Unlock()
}

func (s *Session) takeClient() Client {
	s.clientMu.Lock()
	c := s.client
	s.client = nil
	s.clientMu.Unlock()
	return c
}

func (s *Session) currentClient() Client {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	return s.client
}

// nextBackoff doubles the reconnect delay up to maxWait.
func nextBackoff(wait, maxWait time.Duration) time.Duration {
	wait *= 2
	if wait > maxWait {
		wait = maxWait
	}
	return wait
}
