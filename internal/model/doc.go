// Package model defines shared data types used across the Polymarket data
// collector.
//
// Conventions:
//   - Prices and sizes: float64 in outcome-share units ($0.00-$1.00 for
//     prices), parsed from the venue's decimal strings
//   - Timestamps: time.Time, parsed from the venue's epoch-millisecond values
//   - IDs: opaque strings (condition ids for markets, token ids for outcomes)
package model
