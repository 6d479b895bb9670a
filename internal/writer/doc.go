// Package writer persists catalog rows and order book snapshots to
// PostgreSQL in batches.
//
// Two writers exist:
//   - MarketWriter: synchronous batch upserts of catalog rows, with a
//     replace mode for the daily Gamma refresh
//   - BookWriter: a background consumer that drains a snapshot buffer
//     and flushes batched inserts on size or interval, whichever fires
//     first
//
// Book rows are append-only. Replays after a reconnect are absorbed by
// a unique index on (asset_id, snapshot_ts, book_hash) and counted as
// conflicts rather than errors.
package writer
