// Package poller fetches one-shot order book snapshots over REST.
//
// The snapshot poller:
//   - Walks a token list with bounded concurrency
//   - Hands each snapshot to a SnapshotHandler
//   - Logs and counts per-token failures without aborting the run
package poller
