// Package router turns raw market-channel payloads into canonical events
// and provides the growable buffers that decouple event producers from
// database writers.
package router

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// pongText is the venue's acknowledgement of the literal PING heartbeat.
// It is bare text, not JSON.
const pongText = "PONG"

// Normalizer classifies each raw payload exactly once and maps it to zero
// or more model.MarketEvent values. Payloads for assets outside the
// subscription set are dropped. A Normalizer never returns an error: a
// frame that cannot be classified is logged and absorbed so one bad
// message cannot take down a session.
type Normalizer struct {
	subs   model.SubscriptionSet
	logger *slog.Logger

	mu           sync.RWMutex
	received     int64
	books        int64
	priceChanges int64
	pongs        int64
	parseErrors  int64
	dropped      int64
	unknown      int64
}

// NormalizerStats is a point-in-time copy of the normalizer counters.
type NormalizerStats struct {
	Received     int64 // raw payloads seen
	Events       int64 // canonical events emitted
	Books        int64
	PriceChanges int64
	Pongs        int64
	ParseErrors  int64
	Dropped      int64 // data for assets outside the subscription set
	Unknown      int64
}

// NewNormalizer creates a Normalizer bound to a fixed subscription set.
func NewNormalizer(subs model.SubscriptionSet, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{subs: subs, logger: logger}
}

// Normalize maps one raw payload to the canonical events it carries.
// receivedAt is used for any event whose wire timestamp is absent or
// unparsable. Output depends only on the payload, so normalizing the same
// bytes twice yields structurally equal events.
func (n *Normalizer) Normalize(data []byte, receivedAt time.Time) []model.MarketEvent {
	n.mu.Lock()
	n.received++
	n.mu.Unlock()

	if string(data) == pongText {
		n.mu.Lock()
		n.pongs++
		n.mu.Unlock()
		return nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		// The feed batches the initial snapshots for a new subscription
		// as one array, one book object per asset.
		var parts []json.RawMessage
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			n.malformed(data, err)
			return nil
		}
		var events []model.MarketEvent
		for _, part := range parts {
			events = append(events, n.normalizeObject(part, receivedAt)...)
		}
		return events
	}

	return n.normalizeObject(trimmed, receivedAt)
}

// Stats returns the current counters.
func (n *Normalizer) Stats() NormalizerStats {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return NormalizerStats{
		Received:     n.received,
		Events:       n.books + n.priceChanges,
		Books:        n.books,
		PriceChanges: n.priceChanges,
		Pongs:        n.pongs,
		ParseErrors:  n.parseErrors,
		Dropped:      n.dropped,
		Unknown:      n.unknown,
	}
}

// normalizeObject classifies a single JSON object.
func (n *Normalizer) normalizeObject(data []byte, receivedAt time.Time) []model.MarketEvent {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		n.malformed(data, err)
		return nil
	}

	switch {
	case env.isBook():
		return n.bookEvents(&env, receivedAt)

	case env.isPriceChange():
		return n.priceChangeEvents(&env, receivedAt)

	case env.Type == "subscribed" || env.Type == "subscription_success":
		n.logger.Info("subscription confirmed", "assets", n.subs.Len())
		return nil

	case env.Type == "error":
		n.logger.Warn("feed error notice", "message", env.Message)
		return nil

	default:
		n.mu.Lock()
		n.unknown++
		n.mu.Unlock()
		n.logger.Debug("unhandled feed payload",
			"event_type", env.eventType(),
			"type", env.Type,
		)
		return nil
	}
}

// bookEvents maps a book object to a single BookSnapshot, or to nothing
// when its asset is not subscribed.
func (n *Normalizer) bookEvents(env *eventEnvelope, receivedAt time.Time) []model.MarketEvent {
	asset := env.assetID()
	if !n.subs.Contains(asset) {
		n.mu.Lock()
		n.dropped++
		n.mu.Unlock()
		n.logger.Debug("book for unsubscribed asset", "asset_id", asset)
		return nil
	}

	// The market channel names the sides buys/sells; REST-relayed books
	// name them bids/asks. Either way buys are bids and sells are asks.
	bids, asks := env.Buys, env.Sells
	if bids == nil {
		bids = env.Bids
	}
	if asks == nil {
		asks = env.Asks
	}

	snap := model.BookSnapshot{
		AssetID:     asset,
		ConditionID: env.Market,
		Timestamp:   env.Timestamp.Time(receivedAt),
		Bids:        levelsFrom(bids),
		Asks:        levelsFrom(asks),
		Hash:        env.Hash,
	}

	n.mu.Lock()
	n.books++
	n.mu.Unlock()
	return []model.MarketEvent{snap}
}

// priceChangeEvents expands a price_change envelope into one PriceChange
// per subscribed entry. The envelope's market and timestamp apply to
// every entry.
func (n *Normalizer) priceChangeEvents(env *eventEnvelope, receivedAt time.Time) []model.MarketEvent {
	ts := env.Timestamp.Time(receivedAt)

	var events []model.MarketEvent
	for _, pc := range env.PriceChanges {
		if !n.subs.Contains(pc.AssetID) {
			n.mu.Lock()
			n.dropped++
			n.mu.Unlock()
			continue
		}
		events = append(events, model.PriceChange{
			AssetID:     pc.AssetID,
			ConditionID: env.Market,
			Timestamp:   ts,
			BestBid:     pc.BestBid.ptr(),
			BestAsk:     pc.BestAsk.ptr(),
			Price:       pc.Price.ptr(),
			Size:        pc.Size.ptr(),
			Side:        pc.Side,
		})
	}

	n.mu.Lock()
	n.priceChanges += int64(len(events))
	n.mu.Unlock()
	return events
}

func (n *Normalizer) malformed(data []byte, err error) {
	n.mu.Lock()
	n.parseErrors++
	n.mu.Unlock()
	n.logger.Warn("malformed feed payload", "error", err, "payload", truncate(data, 200))
}

func truncate(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
