package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/model"
)

// Publisher pushes live book documents to downstream consumers.
type Publisher interface {
	PublishBook(ctx context.Context, snap *model.BookSnapshot) error
	Ping(ctx context.Context) error
	Close() error
}

// LevelDoc is one (price, size) entry in a published document.
type LevelDoc struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// BookDocument is the JSON payload stored under the per-token key and
// published on the update channel. Levels are [price, size] pairs with
// best levels broken out for consumers that only want the touch.
type BookDocument struct {
	TokenID     string       `json:"token_id"`
	ConditionID string       `json:"condition_id,omitempty"`
	Timestamp   string       `json:"timestamp"`
	Bids        [][2]float64 `json:"bids"`
	Asks        [][2]float64 `json:"asks"`
	BidCount    int          `json:"bid_count"`
	AskCount    int          `json:"ask_count"`
	BestBid     *LevelDoc    `json:"best_bid,omitempty"`
	BestAsk     *LevelDoc    `json:"best_ask,omitempty"`
}

// commands is the part of the go-redis API the publisher uses. Tests
// stub it without a server; *redis.Client satisfies it.
type commands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// PublisherStats is a point-in-time copy of the publish counters.
type PublisherStats struct {
	Published int64
	Failed    int64
}

// RedisPublisher implements Publisher on a go-redis client.
type RedisPublisher struct {
	cmd       commands
	client    *redis.Client
	keyPrefix string
	channel   string
	logger    *slog.Logger

	published atomic.Int64
	failed    atomic.Int64
}

// NewRedisPublisher connects a publisher to the configured Redis. The
// connection is lazy; use Ping to verify reachability.
func NewRedisPublisher(cfg config.RedisConfig, logger *slog.Logger) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	p := newPublisher(client, cfg, logger)
	p.client = client
	return p
}

func newPublisher(cmd commands, cfg config.RedisConfig, logger *slog.Logger) *RedisPublisher {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = config.DefaultKeyPrefix
	}
	if cfg.UpdateChannel == "" {
		cfg.UpdateChannel = config.DefaultUpdateChannel
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisPublisher{
		cmd:       cmd,
		keyPrefix: cfg.KeyPrefix,
		channel:   cfg.UpdateChannel,
		logger:    logger.With("component", "publisher"),
	}
}

// PublishBook stores the snapshot under its token key and broadcasts
// the same payload on the update channel.
func (p *RedisPublisher) PublishBook(ctx context.Context, snap *model.BookSnapshot) error {
	doc := buildDocument(snap)

	data, err := json.Marshal(doc)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("encode book document: %w", err)
	}

	key := p.keyPrefix + snap.AssetID
	if err := p.cmd.Set(ctx, key, data, 0).Err(); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("set book key: %w", err)
	}
	if err := p.cmd.Publish(ctx, p.channel, data).Err(); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("publish book update: %w", err)
	}

	p.published.Add(1)
	p.logger.Debug("book published", "asset_id", snap.AssetID)
	return nil
}

// GetBook retrieves the last published document for a token, or nil
// when none exists.
func (p *RedisPublisher) GetBook(ctx context.Context, tokenID string) (*BookDocument, error) {
	data, err := p.cmd.Get(ctx, p.keyPrefix+tokenID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book key: %w", err)
	}

	var doc BookDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decode book document: %w", err)
	}
	return &doc, nil
}

// Ping verifies the Redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.cmd.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (p *RedisPublisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Stats returns a snapshot of the publish counters.
func (p *RedisPublisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
	}
}

func buildDocument(snap *model.BookSnapshot) BookDocument {
	doc := BookDocument{
		TokenID:     snap.AssetID,
		ConditionID: snap.ConditionID,
		Timestamp:   snap.Timestamp.Format(time.RFC3339Nano),
		Bids:        levelPairs(snap.Bids),
		Asks:        levelPairs(snap.Asks),
		BidCount:    len(snap.Bids),
		AskCount:    len(snap.Asks),
	}

	if len(snap.Bids) > 0 {
		doc.BestBid = &LevelDoc{Price: snap.Bids[0].Price, Size: snap.Bids[0].Size}
	}
	if len(snap.Asks) > 0 {
		doc.BestAsk = &LevelDoc{Price: snap.Asks[0].Price, Size: snap.Asks[0].Size}
	}
	return doc
}

func levelPairs(levels []model.PriceLevel) [][2]float64 {
	out := make([][2]float64, len(levels))
	for i, lvl := range levels {
		out[i] = [2]float64{lvl.Price, lvl.Size}
	}
	return out
}
