// Package store provides SQLite-backed durable storage for runtime sessions.
//
// The journal is append-only:
//   - Sessions: one row per runtime lifetime (script, runtime id, toggles)
//   - Records: the runtime's observable stream, keyed by (session, seq)
//
// Ordering uses the runtime's logical seq, never timestamps. Wall time is
// kept only on sessions, for listing.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Record reads go through internal/queryir queries compiled by
// internal/querysql, so every read is parameterized and ordered by seq.
//
// Settings blobs are RFC 8785 canonical JSON (internal/ir), so two sessions
// with the same toggles store byte-identical text.
package store
