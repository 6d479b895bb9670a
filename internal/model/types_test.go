package model

import (
	"testing"
	"time"
)

// TestModelTypes validates that model types can be instantiated correctly.
func TestModelTypes(t *testing.T) {
	t.Run("Market", func(t *testing.T) {
		m := Market{
			ConditionID:      "0xabc123",
			QuestionID:       "0xdef456",
			Question:         "Will it rain tomorrow?",
			Slug:             "will-it-rain-tomorrow",
			Active:           true,
			Closed:           false,
			AcceptingOrders:  true,
			MinimumOrderSize: 5,
			MinimumTickSize:  0.01,
			Tokens: []Token{
				{ID: "111", Outcome: "Yes", Price: 0.62},
				{ID: "222", Outcome: "No", Price: 0.38},
			},
		}

		if m.ConditionID != "0xabc123" {
			t.Errorf("ConditionID = %q, want %q", m.ConditionID, "0xabc123")
		}
		if len(m.Tokens) != 2 {
			t.Errorf("len(Tokens) = %d, want 2", len(m.Tokens))
		}
		if m.Tokens[0].Outcome != "Yes" {
			t.Errorf("Tokens[0].Outcome = %q, want %q", m.Tokens[0].Outcome, "Yes")
		}
	})

	t.Run("BookSnapshot", func(t *testing.T) {
		s := BookSnapshot{
			AssetID:     "111",
			ConditionID: "0xabc123",
			Timestamp:   time.UnixMilli(1700000000000),
			Bids:        []PriceLevel{{Price: 0.48, Size: 30}, {Price: 0.47, Size: 10}},
			Asks:        []PriceLevel{{Price: 0.52, Size: 25}},
			Hash:        "deadbeef",
		}

		if s.Kind() != KindBook {
			t.Errorf("Kind() = %q, want %q", s.Kind(), KindBook)
		}
		if s.BestBid() != 0.48 {
			t.Errorf("BestBid() = %v, want 0.48", s.BestBid())
		}
		if s.BestAsk() != 0.52 {
			t.Errorf("BestAsk() = %v, want 0.52", s.BestAsk())
		}
	})

	t.Run("empty book best levels", func(t *testing.T) {
		var s BookSnapshot
		if s.BestBid() != 0 {
			t.Errorf("BestBid() on empty book = %v, want 0", s.BestBid())
		}
		if s.BestAsk() != 0 {
			t.Errorf("BestAsk() on empty book = %v, want 0", s.BestAsk())
		}
	})

	t.Run("PriceChange", func(t *testing.T) {
		bid := 0.47
		c := PriceChange{
			AssetID:     "111",
			ConditionID: "0xabc123",
			Timestamp:   time.UnixMilli(1700000000000),
			BestBid:     &bid,
			Side:        "BUY",
		}

		if c.Kind() != KindPriceChange {
			t.Errorf("Kind() = %q, want %q", c.Kind(), KindPriceChange)
		}
		if c.BestBid == nil || *c.BestBid != 0.47 {
			t.Errorf("BestBid = %v, want 0.47", c.BestBid)
		}
		if c.BestAsk != nil {
			t.Errorf("BestAsk = %v, want nil", c.BestAsk)
		}
	})
}

func TestMarketOpen(t *testing.T) {
	tests := []struct {
		name            string
		active          bool
		closed          bool
		acceptingOrders bool
		want            bool
	}{
		{"open market", true, false, true, true},
		{"inactive", false, false, true, false},
		{"closed", true, true, true, false},
		{"not accepting orders", true, false, false, false},
		{"zero value", false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Market{Active: tt.active, Closed: tt.closed, AcceptingOrders: tt.acceptingOrders}
			if got := m.Open(); got != tt.want {
				t.Errorf("Open() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubscriptionSet(t *testing.T) {
	t.Run("deduplicates preserving order", func(t *testing.T) {
		s := NewSubscriptionSet([]string{"b", "a", "b", "", "c", "a"})
		got := s.IDs()
		want := []string{"b", "a", "c"}
		if len(got) != len(want) {
			t.Fatalf("IDs() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("IDs()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
		if s.Len() != 3 {
			t.Errorf("Len() = %d, want 3", s.Len())
		}
	})

	t.Run("membership", func(t *testing.T) {
		s := NewSubscriptionSet([]string{"111", "222"})
		if !s.Contains("111") {
			t.Error("Contains(111) = false, want true")
		}
		if s.Contains("333") {
			t.Error("Contains(333) = true, want false")
		}
	})

	t.Run("IDs returns a copy", func(t *testing.T) {
		s := NewSubscriptionSet([]string{"111", "222"})
		ids := s.IDs()
		ids[0] = "mutated"
		if s.IDs()[0] != "111" {
			t.Error("mutating IDs() result changed the set")
		}
	})
}

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateSubscribed, "subscribed"},
		{StateDisconnecting, "disconnecting"},
		{ConnectionState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
