package router

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// eventEnvelope is the union of every market-channel object shape the
// feed produces. Classification looks at which fields are populated, so
// one decode pass covers books, price changes, and control messages.
type eventEnvelope struct {
	EventType      string            `json:"event_type"`
	EventTypeCamel string            `json:"eventType"`
	Type           string            `json:"type"`
	Message        string            `json:"message"`
	AssetID        string            `json:"asset_id"`
	TokenID        string            `json:"token_id"`
	Market         string            `json:"market"`
	Hash           string            `json:"hash"`
	Timestamp      *wireTime         `json:"timestamp"`
	Buys           []wireLevel       `json:"buys"`
	Sells          []wireLevel       `json:"sells"`
	Bids           []wireLevel       `json:"bids"`
	Asks           []wireLevel       `json:"asks"`
	PriceChanges   []priceChangeWire `json:"price_changes"`
}

// eventType returns the event discriminator. The feed has been observed
// sending both spellings; camelCase wins when both are present.
func (e *eventEnvelope) eventType() string {
	if e.EventTypeCamel != "" {
		return e.EventTypeCamel
	}
	return e.EventType
}

// assetID returns the instrument id under either of its wire names.
func (e *eventEnvelope) assetID() string {
	if e.AssetID != "" {
		return e.AssetID
	}
	return e.TokenID
}

// isBook reports whether the object is a book snapshot: either marked
// explicitly, or unmarked but carrying level arrays.
func (e *eventEnvelope) isBook() bool {
	if e.eventType() == "book" {
		return true
	}
	return e.eventType() == "" && e.Type == "" && e.hasLevels()
}

func (e *eventEnvelope) isPriceChange() bool {
	return e.eventType() == "price_change" && e.PriceChanges != nil
}

func (e *eventEnvelope) hasLevels() bool {
	return e.Buys != nil || e.Sells != nil || e.Bids != nil || e.Asks != nil
}

// priceChangeWire is one entry of a price_change envelope. Scalars decode
// through wireFloat so absent and unparsable values both end up nil on
// the model side.
type priceChangeWire struct {
	AssetID string     `json:"asset_id"`
	BestBid *wireFloat `json:"best_bid"`
	BestAsk *wireFloat `json:"best_ask"`
	Price   *wireFloat `json:"price"`
	Size    *wireFloat `json:"size"`
	Side    string     `json:"side"`
}

// wireFloat decodes a JSON number or a numeric string. Unparsable values
// leave ok false rather than failing the enclosing object.
type wireFloat struct {
	val float64
	ok  bool
}

func (f *wireFloat) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, perr := strconv.ParseFloat(s, 64); perr == nil {
			f.val, f.ok = v, true
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		f.val, f.ok = v, true
	}
	return nil
}

// ptr returns the decoded value, or nil when the field was absent or
// unparsable. Safe on a nil receiver.
func (f *wireFloat) ptr() *float64 {
	if f == nil || !f.ok {
		return nil
	}
	v := f.val
	return &v
}

// wireTime decodes epoch milliseconds sent as a string or a number.
type wireTime struct {
	t  time.Time
	ok bool
}

func (w *wireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if ms, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			w.t, w.ok = time.UnixMilli(ms), true
		}
		return nil
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err == nil {
		w.t, w.ok = time.UnixMilli(int64(ms)), true
	}
	return nil
}

// Time returns the decoded instant, or fallback when the field was absent
// or unparsable. Safe on a nil receiver.
func (w *wireTime) Time(fallback time.Time) time.Time {
	if w == nil || !w.ok {
		return fallback
	}
	return w.t
}

// wireLevel accepts both level encodings the feed produces: the order
// summary object {"price":"0.48","size":"30"} and the compact
// ["0.48","30"] pair. Unparsable prices or sizes become 0.
type wireLevel struct {
	Price float64
	Size  float64
}

func (l *wireLevel) UnmarshalJSON(data []byte) error {
	var obj struct {
		Price wireFloat `json:"price"`
		Size  wireFloat `json:"size"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		l.Price = obj.Price.val
		l.Size = obj.Size.val
		return nil
	}

	var pair []wireFloat
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) > 0 {
		l.Price = pair[0].val
	}
	if len(pair) > 1 {
		l.Size = pair[1].val
	}
	return nil
}

func levelsFrom(levels []wireLevel) []model.PriceLevel {
	out := make([]model.PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = model.PriceLevel{Price: l.Price, Size: l.Size}
	}
	return out
}
