// Package store provides the SQLite-backed journal of SPARQL updates.
//
// Every insert, update and delete sent to the triple store is recorded
// before it is sent and marked applied or failed afterwards, so the
// journal shows what was attempted even when the store never answered.
//
// # Ordering
//
//   - Entries are ordered by seq, an autoincrement logical clock
//   - Listings use ORDER BY seq ASC, id ASC COLLATE BINARY
//   - created_at is informational and never used for ordering
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Query hashes are computed by ir.QueryHash, so the same update text
// always hashes the same and repeated submissions can be found.
package store
