package gamma

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// EventsToMarkets flattens events into catalog rows, one per nested
// market. An event without markets yields a single row built from the
// event's own fields.
func EventsToMarkets(events []Event, fetchedAt time.Time) []model.Market {
	var rows []model.Market
	for i := range events {
		ev := &events[i]
		if len(ev.Markets) == 0 {
			rows = append(rows, eventRow(ev, nil, fetchedAt))
			continue
		}
		for j := range ev.Markets {
			rows = append(rows, eventRow(ev, &ev.Markets[j], fetchedAt))
		}
	}
	return rows
}

// eventRow builds one catalog row, preferring market-level fields and
// falling back to the event's.
func eventRow(ev *Event, m *EventMarket, fetchedAt time.Time) model.Market {
	row := model.Market{
		Question:        ev.Title,
		Slug:            ev.Slug,
		Category:        ev.Category,
		Active:          ev.Active,
		Closed:          ev.Closed,
		AcceptingOrders: true,
		Volume24h:       ev.Volume24hr,
		Liquidity:       ev.Liquidity,
		FetchedAt:       fetchedAt,
	}

	if m == nil {
		row.ConditionID = ev.ID
		return row
	}

	row.ConditionID = m.ConditionID
	row.QuestionID = m.QuestionID
	if m.Question != "" {
		row.Question = m.Question
	}
	if m.Slug != "" {
		row.Slug = m.Slug
	}
	if m.Category != "" {
		row.Category = m.Category
	}
	if m.Active != nil {
		row.Active = *m.Active
	}
	if m.Closed != nil {
		row.Closed = *m.Closed
	}
	if m.AcceptingOrders != nil {
		row.AcceptingOrders = *m.AcceptingOrders
	}
	if m.Volume24hr != nil {
		row.Volume24h = *m.Volume24hr
	}
	if m.LiquidityNum != nil {
		row.Liquidity = *m.LiquidityNum
	}
	row.MinimumOrderSize = m.OrderMinSize
	row.MinimumTickSize = m.OrderTickSize
	row.Tokens = tokensFrom(m.ClobTokenIDs, m.Outcomes, m.OutcomePrices)

	return row
}

// tokensFrom zips the JSON-encoded clobTokenIds, outcomes, and
// outcomePrices strings into a token list. Outcomes fall back to
// comma-splitting when the string is not valid JSON.
func tokensFrom(idsRaw, outcomesRaw, pricesRaw string) []model.Token {
	ids := decodeStringArray(idsRaw)
	if len(ids) == 0 {
		return nil
	}

	outcomes := decodeStringArray(outcomesRaw)
	if outcomes == nil && outcomesRaw != "" {
		for _, part := range strings.Split(outcomesRaw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				outcomes = append(outcomes, part)
			}
		}
	}
	prices := decodeStringArray(pricesRaw)

	tokens := make([]model.Token, 0, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		tok := model.Token{ID: id}
		if i < len(outcomes) {
			tok.Outcome = outcomes[i]
		}
		if i < len(prices) {
			if p, err := strconv.ParseFloat(prices[i], 64); err == nil {
				tok.Price = p
			}
		}
		tokens = append(tokens, tok)
	}

	return tokens
}

// decodeStringArray decodes a JSON array-of-strings value, returning nil
// for empty or invalid input.
func decodeStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
