package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

type fakeSource struct {
	mu      sync.Mutex
	batches [][]model.Market // consumed one per call, last one repeats
	err     error            // returned once batches run out, when set
	calls   int
}

func (f *fakeSource) FetchAllMarkets(ctx context.Context) ([]model.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if len(f.batches) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, nil
	}

	batch := f.batches[0]
	if len(f.batches) > 1 || f.err != nil {
		f.batches = f.batches[1:]
	}
	return batch, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func mkMarket(conditionID string, open bool, tokenIDs ...string) model.Market {
	tokens := make([]model.Token, len(tokenIDs))
	for i, id := range tokenIDs {
		tokens[i] = model.Token{ID: id}
	}
	return model.Market{
		ConditionID:     conditionID,
		Active:          true,
		Closed:          !open,
		AcceptingOrders: open,
		Tokens:          tokens,
	}
}

func TestRegistry_StartLoadsCatalog(t *testing.T) {
	source := &fakeSource{batches: [][]model.Market{{
		mkMarket("0xa", true, "a-yes", "a-no"),
		mkMarket("0xb", true, "b-yes", "b-no"),
	}}}

	reg := NewRegistry(source, time.Hour, nil)
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer reg.Stop(context.Background())

	if got := reg.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}

	m, ok := reg.Get("0xa")
	if !ok {
		t.Fatal("Get(0xa) not found")
	}
	if m.ConditionID != "0xa" {
		t.Errorf("ConditionID = %s, want 0xa", m.ConditionID)
	}
	if _, ok := reg.Get("0xmissing"); ok {
		t.Error("Get(0xmissing) found, want miss")
	}

	stats := reg.Stats()
	if stats.Refreshes != 1 {
		t.Errorf("Refreshes = %d, want 1", stats.Refreshes)
	}
	if stats.Markets != 2 {
		t.Errorf("Markets = %d, want 2", stats.Markets)
	}
	if stats.RefreshedAt.IsZero() {
		t.Error("RefreshedAt should be set")
	}
}

func TestRegistry_StartFailsOnFetchError(t *testing.T) {
	source := &fakeSource{err: errors.New("catalog down")}

	reg := NewRegistry(source, time.Hour, nil)
	if err := reg.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded, want error")
	}
	if got := reg.Len(); got != 0 {
		t.Errorf("Len = %d, want 0 after failed start", got)
	}
}

func TestRegistry_RefreshReplacesView(t *testing.T) {
	source := &fakeSource{batches: [][]model.Market{
		{mkMarket("0xa", true, "a-yes")},
		{mkMarket("0xb", true, "b-yes"), mkMarket("0xc", true, "c-yes")},
	}}

	reg := NewRegistry(source, 30*time.Millisecond, nil)
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer reg.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Len() == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := reg.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2 after refresh", got)
	}
	if _, ok := reg.Get("0xa"); ok {
		t.Error("0xa still present, want it replaced by the new view")
	}
	if _, ok := reg.Get("0xb"); !ok {
		t.Error("0xb missing from the refreshed view")
	}
}

func TestRegistry_RefreshFailureKeepsView(t *testing.T) {
	source := &fakeSource{
		batches: [][]model.Market{{mkMarket("0xa", true, "a-yes")}},
		err:     errors.New("catalog down"),
	}

	reg := NewRegistry(source, 20*time.Millisecond, nil)
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer reg.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Stats().Failures >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	stats := reg.Stats()
	if stats.Failures < 1 {
		t.Fatal("expected at least one refresh failure")
	}
	if got := reg.Len(); got != 1 {
		t.Errorf("Len = %d, want previous view of 1 market", got)
	}
	if _, ok := reg.Get("0xa"); !ok {
		t.Error("0xa missing, want the pre-failure view kept")
	}
}

func TestRegistry_TokenIDs(t *testing.T) {
	source := &fakeSource{batches: [][]model.Market{{
		mkMarket("0xa", true, "a-yes", "a-no"),
		mkMarket("0xb", true, "b-yes", "b-no"),
	}}}

	reg := NewRegistry(source, time.Hour, nil)
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer reg.Stop(context.Background())

	t.Run("subset skips unknown ids", func(t *testing.T) {
		got := reg.TokenIDs("0xb", "0xmissing")
		want := []string{"b-yes", "b-no"}
		if len(got) != len(want) {
			t.Fatalf("TokenIDs = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("TokenIDs[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("whole catalog", func(t *testing.T) {
		got := reg.TokenIDs()
		want := []string{"a-yes", "a-no", "b-yes", "b-no"}
		if len(got) != len(want) {
			t.Fatalf("TokenIDs = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("TokenIDs[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})
}

func TestRegistry_OpenMarkets(t *testing.T) {
	paused := mkMarket("0xpaused", true, "p-yes")
	paused.AcceptingOrders = false

	source := &fakeSource{batches: [][]model.Market{{
		mkMarket("0xopen", true, "o-yes"),
		mkMarket("0xclosed", false, "c-yes"),
		paused,
	}}}

	reg := NewRegistry(source, time.Hour, nil)
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer reg.Stop(context.Background())

	open := reg.OpenMarkets()
	if len(open) != 1 {
		t.Fatalf("OpenMarkets returned %d markets, want 1", len(open))
	}
	if open[0].ConditionID != "0xopen" {
		t.Errorf("open market = %s, want 0xopen", open[0].ConditionID)
	}
}

func TestRegistry_StopBeforeStart(t *testing.T) {
	reg := NewRegistry(&fakeSource{}, time.Hour, nil)
	if err := reg.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start = %v, want nil", err)
	}
}

func TestRegistry_StopEndsRefreshLoop(t *testing.T) {
	source := &fakeSource{batches: [][]model.Market{{mkMarket("0xa", true, "a-yes")}}}

	reg := NewRegistry(source, 10*time.Millisecond, nil)
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := reg.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	calls := source.callCount()
	time.Sleep(50 * time.Millisecond)
	if got := source.callCount(); got != calls {
		t.Errorf("refresh loop still running after Stop: calls %d -> %d", calls, got)
	}
}
