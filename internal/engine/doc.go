// Package engine hosts the proof-of-existence registry.
//
// The registry is a pure state machine; the engine is everything around it:
// it serializes calls, stamps them with a block height, meters their weight,
// journals them to SQLite and forwards their events downstream.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// All registry mutations happen under one lock, either from the Run loop
// (requests arrive through Submit) or from Apply. This ensures:
// - Calls are totally ordered by seq
// - Reproducible journal on replay
// - Simple reasoning about causality
//
// Call Processing Flow:
// 1. Request validated, identities NFC-normalized
// 2. Weight charged to the current block (full block is sealed first)
// 3. Registry op applied at the current block height
// 4. Call, event and proof change committed in one SQLite transaction
// 5. Events published, metrics updated
//
// A rejected call (ProofAlreadyClaimed, NotProofOwner, ...) is journaled
// with its outcome and no event. A malformed or overweight request never
// reaches the journal.
//
// If the commit in step 4 fails, the in-memory registry is ahead of the
// journal and the engine halts: every later call fails with ENGINE_HALTED.
//
// CRITICAL PATTERNS:
//
// Logical Clocks:
// The journal seq and the block height are both logical counters.
// NEVER use wall-clock timestamps for ordering or for RegisteredAt.
//
// Replay:
// Open rebuilds the registry by re-applying the journal at the recorded
// block heights, through the same dispatch as live calls. Replay produces
// a report comparing outcomes, events and final state with what was
// recorded.
package engine
