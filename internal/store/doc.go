// Package store provides SQLite-backed durable storage for animation
// session logs.
//
// The store is an append-only log with:
//   - Sessions: one row per engine run, keyed by session token
//   - Commands: every external command submitted to the engine
//   - Sink updates: every host sink call made by a pass
//   - Diagnostics: every diagnostic surfaced by a pass
//
// # Ordering
//
// Commands, sink updates and diagnostics of a session share one logical
// clock. All reads ORDER BY seq ASC so a session reads back in exactly the
// order it happened, regardless of wall time. Replay depends on this.
//
// # Payloads
//
// Command arguments, sink props and diagnostic details are stored as RFC 8785
// canonical JSON TEXT. Sink props also store a domain-separated payload hash
// (ir.PayloadHash) so replays can compare streams without re-parsing.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
