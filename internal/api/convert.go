package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// parseDecimal parses a venue decimal string ("0.52") to float64.
// Returns 0 for empty or invalid input.
func parseDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseMillis parses an epoch-millisecond string to time.Time.
// Returns the zero time for empty or invalid input.
func parseMillis(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ToModel converts an APIMarket to model.Market.
func (m *APIMarket) ToModel(fetchedAt time.Time) model.Market {
	tokens := make([]model.Token, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		tokens = append(tokens, model.Token{
			ID:      t.TokenID,
			Outcome: t.Outcome,
			Price:   t.Price,
			Winner:  t.Winner,
		})
	}

	return model.Market{
		ConditionID:      m.ConditionID,
		QuestionID:       m.QuestionID,
		Question:         m.Question,
		Slug:             m.MarketSlug,
		Active:           m.Active,
		Closed:           m.Closed,
		AcceptingOrders:  m.AcceptingOrders,
		MinimumOrderSize: m.MinimumOrderSize,
		MinimumTickSize:  m.MinimumTickSize,
		Tokens:           tokens,
		FetchedAt:        fetchedAt,
	}
}

// ToSnapshot converts a BookResponse to model.BookSnapshot. A missing or
// unparsable timestamp falls back to the current time.
func (b *BookResponse) ToSnapshot() model.BookSnapshot {
	ts := parseMillis(b.Timestamp)
	if ts.IsZero() {
		ts = time.Now()
	}

	return model.BookSnapshot{
		AssetID:     b.AssetID,
		ConditionID: b.Market,
		Timestamp:   ts,
		Bids:        levelsToModel(b.Bids),
		Asks:        levelsToModel(b.Asks),
		Hash:        b.Hash,
	}
}

func levelsToModel(levels []APILevel) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, model.PriceLevel{
			Price: parseDecimal(l.Price),
			Size:  parseDecimal(l.Size),
		})
	}
	return out
}
