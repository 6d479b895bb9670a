// Package stream exposes the streaming facade used by the collector
// binaries: start and stop at most one feed session, fetch one-shot
// order book snapshots, and report stream health.
package stream
