// Package publisher pushes live order book documents to Redis.
//
// Each streamed snapshot is written twice with the same JSON payload:
// a SET on the per-token key (prefix + token id) so consumers can read
// the latest book at any time, and a PUBLISH on the update channel for
// pub/sub subscribers. Publish failures are returned to the caller and
// never stop the stream.
package publisher
