// Package store provides SQLite-backed durable storage for cached query
// results.
//
// The store is a persistent map from a key (the canonical JSON text of an
// expression or query) to an opaque payload:
//   - Entries: key, digest and the data id of the current payload
//   - Payloads: ZStandard-compressed bytes under a data id from Config.IDs (UUIDv7 by default)
//
// Payloads are written before their entry so an interrupted write never
// exposes a key without data. Keys come back in insertion order
// (ORDER BY seq ASC), which keeps cache plans deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Entry digests are computed with ir.ContentDigest using SHA-256 with domain
// separation.
package store
