// Package connection maintains the WebSocket session to the market feed.
//
// The streaming session:
//   - Dials the CLOB market channel and subscribes to a fixed token set
//   - Keeps the connection alive with PING text frames
//   - Normalizes every inbound payload and delivers events in order
//   - Reconnects with exponential backoff, resubscribing to the same set
//   - Stops cleanly on request or when the session deadline fires
package connection
