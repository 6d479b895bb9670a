package gamma

// Event from GET /events. Numeric fields Gamma serves as JSON numbers are
// typed directly; fields that arrive as JSON-encoded strings (clobTokenIds,
// outcomes, outcomePrices) are decoded during conversion.
type Event struct {
	ID         string        `json:"id"`
	Slug       string        `json:"slug"`
	Title      string        `json:"title"`
	Category   string        `json:"category"`
	Active     bool          `json:"active"`
	Closed     bool          `json:"closed"`
	Archived   bool          `json:"archived"`
	Volume24hr float64       `json:"volume24hr"`
	Liquidity  float64       `json:"liquidity"`
	Markets    []EventMarket `json:"markets"`
}

// EventMarket is one market nested in a Gamma event. Lifecycle flags are
// pointers so an absent market-level value can fall back to the event's.
type EventMarket struct {
	ConditionID     string   `json:"conditionId"`
	QuestionID      string   `json:"questionID"`
	Question        string   `json:"question"`
	Slug            string   `json:"slug"`
	Category        string   `json:"category"`
	Active          *bool    `json:"active"`
	Closed          *bool    `json:"closed"`
	AcceptingOrders *bool    `json:"acceptingOrders"`
	Volume24hr      *float64 `json:"volume24hr"`
	LiquidityNum    *float64 `json:"liquidityNum"`
	OrderMinSize    float64  `json:"orderMinSize"`
	OrderTickSize   float64  `json:"orderPriceMinTickSize"`

	// JSON-encoded array strings, e.g. "[\"123\", \"456\"]"
	ClobTokenIDs  string `json:"clobTokenIds"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
}
