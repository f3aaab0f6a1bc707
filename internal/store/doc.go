// Package store provides the SQLite-backed dispatch journal.
//
// Every command the dispatcher attempts is appended with its batch id,
// sequence number, ports and outcome. The journal is write-only from the
// daemon's point of view: it is read by `portwire history` and never used
// to restore connections.
//
// # Ordering
//
//   - Rows are ordered by their autoincrement id, which is insertion order
//   - seq orders commands within one run; it restarts when the daemon does
//   - recorded_at is informational only
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Older journals are upgraded in place through PRAGMA user_version.
package store
