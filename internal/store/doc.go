// Package store provides SQLite-backed storage for imported encounters and
// analysis reports.
//
// # Tables
//
//   - encounters: one row per imported capture, deduplicated by content digest
//   - reports: one row per analysis run, keyed by run id
//
// Line data and report bodies are stored as snappy-compressed blobs. Report
// bodies are canonical JSON, so a stored body digests exactly like the
// in-memory report it came from.
//
// # Ordering
//
// Listings order by seq (insertion order), never by wall-clock time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
