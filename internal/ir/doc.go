// Package ir defines the journal record types shared by the engine, store and
// harness, plus canonical JSON and content-addressed call identity.
//
// This package imports nothing internal. Key constraints:
//   - NO float types anywhere; numbers are int64/uint64
//   - Fingerprints travel as 0x-prefixed hex
//   - All JSON tags use snake_case
//   - Ordering uses logical sequence numbers only, never wall-clock time
package ir
