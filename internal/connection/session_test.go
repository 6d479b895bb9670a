package connection

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/polymarket-data/internal/model"
)

const testBookPayload = `{
	"event_type": "book",
	"asset_id": "tok-1",
	"market": "0xcond",
	"timestamp": "1700000000000",
	"buys": [{"price": "0.48", "size": "30"}],
	"sells": [{"price": "0.52", "size": "10"}]
}`

func testSessionConfig(url string) SessionConfig {
	return SessionConfig{
		URL:               url,
		PingInterval:      0, // no keepalive unless a test wants one
		ReconnectBaseWait: 20 * time.Millisecond,
		ReconnectMaxWait:  100 * time.Millisecond,
		EventBuffer:       16,
		StopTimeout:       time.Second,
	}
}

func waitForState(t *testing.T, sess *Session, want model.ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", sess.State(), want)
}

func waitForEvent(t *testing.T, sess *Session) model.MarketEvent {
	t.Helper()
	select {
	case event, ok := <-sess.Events():
		if !ok {
			t.Fatal("events channel closed before an event arrived")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for an event")
		return nil
	}
}

// readSubscribe reads and decodes the first frame on a new connection.
func readSubscribe(t *testing.T, conn *websocket.Conn) subscribeFrame {
	t.Helper()
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Logf("read subscribe: %v", err)
		return subscribeFrame{}
	}
	var frame subscribeFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Errorf("subscribe frame is not valid JSON: %v", err)
	}
	return frame
}

func TestSession_SubscribeAndStream(t *testing.T) {
	var mu sync.Mutex
	var frames []subscribeFrame

	server := mockWSServer(t, func(conn *websocket.Conn) {
		frame := readSubscribe(t, conn)
		mu.Lock()
		frames = append(frames, frame)
		mu.Unlock()

		if err := conn.WriteMessage(websocket.TextMessage, []byte(testBookPayload)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sess := NewSession(testSessionConfig(wsURL(server)), model.NewSubscriptionSet([]string{"tok-1", "tok-2"}), nil)
	if sess.ID() == "" {
		t.Error("expected a non-empty session id")
	}

	sess.Start(context.Background())

	event := waitForEvent(t, sess)
	snap, ok := event.(model.BookSnapshot)
	if !ok {
		t.Fatalf("event type = %T, want BookSnapshot", event)
	}
	if snap.AssetID != "tok-1" {
		t.Errorf("AssetID = %s, want tok-1", snap.AssetID)
	}
	if snap.ConditionID != "0xcond" {
		t.Errorf("ConditionID = %s, want 0xcond", snap.ConditionID)
	}
	if snap.Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("Timestamp = %d, want 1700000000000", snap.Timestamp.UnixMilli())
	}

	if got := sess.State(); got != model.StateSubscribed {
		t.Errorf("state = %v, want %v", got, model.StateSubscribed)
	}

	mu.Lock()
	if len(frames) != 1 {
		t.Fatalf("got %d subscribe frames, want 1", len(frames))
	}
	if frames[0].Type != "market" {
		t.Errorf("subscribe type = %q, want market", frames[0].Type)
	}
	if want := []string{"tok-1", "tok-2"}; !reflect.DeepEqual(frames[0].AssetsIDs, want) {
		t.Errorf("subscribe assets = %v, want %v", frames[0].AssetsIDs, want)
	}
	mu.Unlock()

	if err := sess.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after Stop")
	}

	if got := sess.State(); got != model.StateDisconnected {
		t.Errorf("state after stop = %v, want %v", got, model.StateDisconnected)
	}

	// The events channel closes once the worker exits.
	for {
		if _, ok := <-sess.Events(); !ok {
			break
		}
	}
}

func TestSession_ReconnectKeepsSubscription(t *testing.T) {
	var mu sync.Mutex
	var frames []subscribeFrame

	server := mockWSServer(t, func(conn *websocket.Conn) {
		frame := readSubscribe(t, conn)
		mu.Lock()
		frames = append(frames, frame)
		first := len(frames) == 1
		mu.Unlock()

		if first {
			// Simulate a transport drop right after subscribing.
			return
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(testBookPayload)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sess := NewSession(testSessionConfig(wsURL(server)), model.NewSubscriptionSet([]string{"tok-1"}), nil)
	sess.Start(context.Background())
	defer sess.Stop(context.Background())

	// An event arriving proves the second connection subscribed.
	event := waitForEvent(t, sess)
	if _, ok := event.(model.BookSnapshot); !ok {
		t.Fatalf("event type = %T, want BookSnapshot", event)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) < 2 {
		t.Fatalf("got %d subscribe frames, want at least 2", len(frames))
	}
	if !reflect.DeepEqual(frames[0], frames[1]) {
		t.Errorf("resubscribe frame %+v differs from original %+v", frames[1], frames[0])
	}

	if got := sess.Stats().Connects; got < 2 {
		t.Errorf("Connects = %d, want at least 2", got)
	}
}

func TestSession_BackoffSchedule(t *testing.T) {
	maxWait := 60 * time.Second

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}

	wait := time.Second
	for k, expected := range want {
		if wait != expected {
			t.Errorf("failure %d: wait = %v, want %v", k+1, wait, expected)
		}
		wait = nextBackoff(wait, maxWait)
	}
}

func TestSession_StopDuringReconnectWait(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {})
	url := wsURL(server)
	server.Close() // dials now fail immediately

	cfg := testSessionConfig(url)
	cfg.ReconnectBaseWait = 10 * time.Second
	cfg.ReconnectMaxWait = 20 * time.Second

	sess := NewSession(cfg, model.NewSubscriptionSet([]string{"tok-1"}), nil)
	sess.Start(context.Background())

	// Let the first dial fail and the worker park in its backoff wait.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	if err := sess.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop took %v, want well under the backoff wait", elapsed)
	}

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after Stop")
	}

	if got := sess.State(); got != model.StateDisconnected {
		t.Errorf("state = %v, want %v", got, model.StateDisconnected)
	}
}

func TestSession_StopIdempotent(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sess := NewSession(testSessionConfig(wsURL(server)), model.NewSubscriptionSet([]string{"tok-1"}), nil)
	sess.Start(context.Background())
	waitForState(t, sess, model.StateSubscribed)

	if err := sess.Stop(context.Background()); err != nil {
		t.Errorf("first Stop failed: %v", err)
	}
	if err := sess.Stop(context.Background()); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestSession_DeadlineClosesConnection(t *testing.T) {
	var mu sync.Mutex
	conns := 0

	server := mockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		conns++
		mu.Unlock()

		readSubscribe(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	sess := NewSession(testSessionConfig(wsURL(server)), model.NewSubscriptionSet([]string{"tok-1"}), nil)
	sess.Start(ctx)
	waitForState(t, sess, model.StateSubscribed)

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit when the deadline fired")
	}

	if got := sess.State(); got != model.StateDisconnected {
		t.Errorf("state = %v, want %v", got, model.StateDisconnected)
	}

	// No reconnect after the deadline.
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if conns != 1 {
		t.Errorf("connections = %d, want 1", conns)
	}
}

func TestSession_PingWhileSubscribed(t *testing.T) {
	var mu sync.Mutex
	var pings int

	server := mockWSServer(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "PING" {
				mu.Lock()
				pings++
				mu.Unlock()
			}
		}
	})
	defer server.Close()

	cfg := testSessionConfig(wsURL(server))
	cfg.PingInterval = 30 * time.Millisecond

	sess := NewSession(cfg, model.NewSubscriptionSet([]string{"tok-1"}), nil)
	sess.Start(context.Background())
	defer sess.Stop(context.Background())

	waitForState(t, sess, model.StateSubscribed)
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if pings < 2 {
		t.Errorf("got %d keepalive pings, want at least 2", pings)
	}
}

func TestSession_MalformedPayloadSkipped(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		readSubscribe(t, conn)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(testBookPayload)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sess := NewSession(testSessionConfig(wsURL(server)), model.NewSubscriptionSet([]string{"tok-1"}), nil)
	sess.Start(context.Background())
	defer sess.Stop(context.Background())

	event := waitForEvent(t, sess)
	if _, ok := event.(model.BookSnapshot); !ok {
		t.Fatalf("event type = %T, want BookSnapshot", event)
	}

	if got := sess.State(); got != model.StateSubscribed {
		t.Errorf("state = %v, want %v", got, model.StateSubscribed)
	}

	stats := sess.Stats()
	if stats.Normalizer.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", stats.Normalizer.ParseErrors)
	}
	if stats.Normalizer.Books != 1 {
		t.Errorf("Books = %d, want 1", stats.Normalizer.Books)
	}
}
