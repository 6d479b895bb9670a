package model

import "time"

// -----------------------------------------------------------------------------
// Catalog Types
// -----------------------------------------------------------------------------

// Market represents one tradeable prediction market: a single question with
// an ordered set of outcome tokens. Markets are immutable once fetched; a
// fresh catalog fetch replaces them wholesale.
type Market struct {
	ConditionID      string  // Primary key (e.g., "0x178a7...")
	QuestionID       string  // On-chain question id
	Question         string  // Display question
	Slug             string  // URL slug
	Active           bool    // Venue lists the market
	Closed           bool    // Venue has settled/closed the market
	AcceptingOrders  bool    // Order entry currently allowed
	MinimumOrderSize float64 // Smallest order size in shares
	MinimumTickSize  float64 // Smallest price increment
	Category         string  // Gamma category, empty for CLOB-sourced rows
	Volume24h        float64 // 24h volume (Gamma), 0 when unknown
	Liquidity        float64 // Liquidity (Gamma), 0 when unknown
	Tokens           []Token // Ordered outcome tokens, typically two
	FetchedAt        time.Time
}

// Open reports whether the market is currently tradeable: active, not
// closed, and accepting orders.
func (m Market) Open() bool {
	return m.Active && !m.Closed && m.AcceptingOrders
}

// Token represents one outcome side of a market, independently subscribable
// for order-book data.
type Token struct {
	ID      string  // Subscription key (CLOB token id)
	Outcome string  // Display label (e.g., "Yes")
	Price   float64 // Last known price, 0 when unknown
	Winner  bool    // Settled as the winning outcome
}

// -----------------------------------------------------------------------------
// Stream Types
// -----------------------------------------------------------------------------

// PriceLevel is a single (price, size) entry in an order book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// EventKind discriminates the MarketEvent variants.
type EventKind string

const (
	KindBook        EventKind = "book"
	KindPriceChange EventKind = "price_change"
)

// MarketEvent is the canonical form of one push-feed message. Exactly two
// variants exist: BookSnapshot and PriceChange. Events are ephemeral; they
// are constructed per wire message, handed to the sink, and dropped.
type MarketEvent interface {
	Kind() EventKind
	isEvent()
}

// BookSnapshot is a full replacement of one token's visible book.
type BookSnapshot struct {
	AssetID     string // Token id
	ConditionID string // Parent market condition id
	Timestamp   time.Time
	Bids        []PriceLevel // Descending by price, best first
	Asks        []PriceLevel // Ascending by price, best first
	Hash        string       // Venue-computed book hash
}

func (BookSnapshot) Kind() EventKind { return KindBook }
func (BookSnapshot) isEvent()        {}

// BestBid returns the top bid price, or 0 for an empty side.
func (s BookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the top ask price, or 0 for an empty side.
func (s BookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// PriceChange is an incremental best-level tick. It carries no book
// contents and must not be used to mutate a previously received snapshot.
// Scalar fields are nil when the venue omitted them or sent an unparsable
// value.
type PriceChange struct {
	AssetID     string
	ConditionID string
	Timestamp   time.Time
	BestBid     *float64
	BestAsk     *float64
	Price       *float64
	Size        *float64
	Side        string // "BUY" or "SELL" as sent by the venue
}

func (PriceChange) Kind() EventKind { return KindPriceChange }
func (PriceChange) isEvent()        {}

// -----------------------------------------------------------------------------
// Session Types
// -----------------------------------------------------------------------------

// SubscriptionSet is the set of token ids one streaming session subscribes
// to. It is built once at session start, deduplicated but order-preserving,
// and re-sent verbatim on every reconnect. Changing instruments requires a
// new session.
type SubscriptionSet struct {
	ids     []string
	members map[string]struct{}
}

// NewSubscriptionSet builds a set from ids, dropping duplicates and empty
// strings while preserving first-occurrence order.
func NewSubscriptionSet(ids []string) SubscriptionSet {
	s := SubscriptionSet{members: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.members[id]; ok {
			continue
		}
		s.members[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return s
}

// Contains reports membership of a token id.
func (s SubscriptionSet) Contains(id string) bool {
	_, ok := s.members[id]
	return ok
}

// IDs returns a copy of the token ids in subscription order.
func (s SubscriptionSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of subscribed token ids.
func (s SubscriptionSet) Len() int { return len(s.ids) }

// ConnectionState describes where a streaming session is in its lifecycle.
// It is written only by the session worker and read by status queries.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateSubscribed
	StateDisconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}
