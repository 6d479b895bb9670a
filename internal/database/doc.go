// Package database manages the PostgreSQL connection pool and schema
// bootstrap for the collector and pipeline.
//
// The package provides:
//   - BuildConnString: assemble a pgx connection URL from config
//   - NewPool: create and ping a pgxpool with bounded connections
//   - CreateTables: idempotent bootstrap of the markets and
//     book_snapshots tables
package database
