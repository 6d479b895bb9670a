package writer

import (
	"context"
	"testing"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

func sampleMarket() model.Market {
	return model.Market{
		ConditionID:      "0xcond",
		QuestionID:       "0xq",
		Question:         "Will it settle yes?",
		Slug:             "will-it-settle-yes",
		Category:         "Politics",
		Active:           true,
		Closed:           false,
		AcceptingOrders:  true,
		MinimumOrderSize: 5,
		MinimumTickSize:  0.01,
		Volume24h:        12345.6,
		Liquidity:        987.5,
		Tokens: []model.Token{
			{ID: "tok-yes", Outcome: "Yes", Price: 0.48, Winner: false},
			{ID: "tok-no", Outcome: "No", Price: 0.52, Winner: false},
		},
		FetchedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMarketArgs(t *testing.T) {
	args := marketArgs(sampleMarket())

	if len(args) != 21 {
		t.Fatalf("len(args) = %d, want 21", len(args))
	}
	if args[0] != "0xcond" {
		t.Errorf("args[0] = %v, want condition id", args[0])
	}
	if args[5] != true || args[6] != false || args[7] != true {
		t.Errorf("status args = %v/%v/%v, want true/false/true", args[5], args[6], args[7])
	}
	if args[12] != "tok-yes" || args[13] != "Yes" || args[14] != 0.48 {
		t.Errorf("token 0 args = %v/%v/%v", args[12], args[13], args[14])
	}
	if args[16] != "tok-no" || args[17] != "No" {
		t.Errorf("token 1 args = %v/%v", args[16], args[17])
	}
	if ts, ok := args[20].(time.Time); !ok || !ts.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("args[20] = %v, want fetched_at timestamp", args[20])
	}
}

func TestMarketArgs_MissingTokens(t *testing.T) {
	tests := []struct {
		name   string
		tokens []model.Token
	}{
		{name: "one token", tokens: []model.Token{{ID: "tok-yes", Outcome: "Yes"}}},
		{name: "no tokens", tokens: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleMarket()
			m.Tokens = tt.tokens
			args := marketArgs(m)

			if len(args) != 21 {
				t.Fatalf("len(args) = %d, want 21", len(args))
			}
			// Token 1 columns are NULL whenever the second token is absent.
			for i := 16; i <= 19; i++ {
				if args[i] != nil {
					t.Errorf("args[%d] = %v, want nil", i, args[i])
				}
			}
			if tt.tokens == nil && args[12] != nil {
				t.Errorf("args[12] = %v, want nil for empty token list", args[12])
			}
		})
	}
}

func TestMarketArgs_ExtraTokensDropped(t *testing.T) {
	m := sampleMarket()
	m.Tokens = append(m.Tokens, model.Token{ID: "tok-3", Outcome: "Other"})

	args := marketArgs(m)
	if len(args) != 21 {
		t.Fatalf("len(args) = %d, want 21", len(args))
	}
	if args[16] != "tok-no" {
		t.Errorf("args[16] = %v, want second token id", args[16])
	}
}

func TestMarketArgs_ZeroFetchedAtIsNull(t *testing.T) {
	m := sampleMarket()
	m.FetchedAt = time.Time{}

	args := marketArgs(m)
	if args[20] != nil {
		t.Errorf("args[20] = %v, want nil for zero fetched_at", args[20])
	}
}

func TestMarketWriter_UpsertEmptyBatch(t *testing.T) {
	w := NewMarketWriter(nil, nil)

	n, err := w.Upsert(context.Background(), nil)
	if err != nil {
		t.Fatalf("Upsert(empty) error: %v", err)
	}
	if n != 0 {
		t.Errorf("Upsert(empty) = %d rows, want 0", n)
	}
}
