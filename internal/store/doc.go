// Package store provides SQLite-backed durable storage for the poe journal.
//
// The store keeps:
//   - Calls: every registry call, accepted or rejected, with its outcome
//   - Events: the single domain event emitted by each accepted call
//   - Proofs: the materialized fingerprint to claim mapping
//   - Meta: initialization parameters (max_bytes_in_hash)
//
// The journal is authoritative. Proofs is a projection of it that must equal
// the registry state obtained by replaying every call in seq order; the engine
// checks this on replay.
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Block heights come from the engine clock, not the wall clock
//
// Deterministic query results:
//   - All list queries order by seq ASC, id ASC COLLATE BINARY
//   - Proofs are listed in fingerprint byte order
//
// Atomic commits:
//   - CommitCall writes the call, its event and the proof change in one
//     transaction
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
