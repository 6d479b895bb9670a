package api

// MarketsResponse from GET /markets.
type MarketsResponse struct {
	Data       []APIMarket `json:"data"`
	NextCursor string      `json:"next_cursor"`
	Limit      int         `json:"limit"`
	Count      int         `json:"count"`
}

// APIMarket represents a market from the CLOB API.
type APIMarket struct {
	ConditionID      string     `json:"condition_id"`
	QuestionID       string     `json:"question_id"`
	Question         string     `json:"question"`
	MarketSlug       string     `json:"market_slug"`
	Active           bool       `json:"active"`
	Closed           bool       `json:"closed"`
	AcceptingOrders  bool       `json:"accepting_orders"`
	MinimumOrderSize float64    `json:"minimum_order_size"`
	MinimumTickSize  float64    `json:"minimum_tick_size"`
	NegRisk          bool       `json:"neg_risk"`
	Tokens           []APIToken `json:"tokens"`
}

// APIToken represents one outcome token of a market.
type APIToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// BookResponse from GET /book. Unlike the push feed, the REST book uses
// bids/asks directly and decimal strings for level fields.
type BookResponse struct {
	Market    string     `json:"market"`
	AssetID   string     `json:"asset_id"`
	Timestamp string     `json:"timestamp"`
	Hash      string     `json:"hash"`
	Bids      []APILevel `json:"bids"`
	Asks      []APILevel `json:"asks"`
}

// APILevel is a single order-book level as decimal strings.
type APILevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
