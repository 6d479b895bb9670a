package connection

import (
	"errors"
	"time"
)

var (
	// ErrNotConnected is returned when sending on a client without an
	// established connection.
	ErrNotConnected = errors.New("websocket not connected")

	// ErrAlreadyClosed is returned when connecting a client that has
	// already been closed.
	ErrAlreadyClosed = errors.New("websocket already closed")
)

// pingText is the keepalive frame the market feed expects. The venue
// answers with a literal PONG text frame on the same connection.
const pingText = "PING"

// marketChannel is the only feed channel the collector subscribes to.
const marketChannel = "market"

// TimestampedMessage pairs a raw feed payload with its local receive time.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// subscribeFrame is the single subscription request sent after dialing.
type subscribeFrame struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
}

// ClientConfig configures a single WebSocket transport client.
type ClientConfig struct {
	// URL is the WebSocket endpoint.
	URL string

	// PingInterval is how often the literal PING text frame is written.
	// Zero disables the heartbeat.
	PingInterval time.Duration

	// HandshakeTimeout bounds the WebSocket upgrade.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each write to the connection.
	WriteTimeout time.Duration

	// BufferSize is the capacity of the messages channel.
	BufferSize int
}

// DefaultClientConfig returns transport defaults matching the production
// feed.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// SessionConfig configures a StreamingSession.
type SessionConfig struct {
	// URL is the market feed endpoint.
	URL string

	// PingInterval is the keepalive cadence while subscribed.
	PingInterval time.Duration

	// ReconnectBaseWait is the delay before the first reconnect attempt.
	ReconnectBaseWait time.Duration

	// ReconnectMaxWait caps the backoff delay.
	ReconnectMaxWait time.Duration

	// EventBuffer is the capacity of the session's event channel.
	EventBuffer int

	// StopTimeout bounds how long Stop waits for the worker to exit.
	StopTimeout time.Duration
}

// DefaultSessionConfig returns session defaults matching the production
// feed.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		URL:               "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		PingInterval:      10 * time.Second,
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  60 * time.Second,
		EventBuffer:       256,
		StopTimeout:       2 * time.Second,
	}
}
