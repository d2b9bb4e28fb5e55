// Package harness provides conformance testing for the proof-of-existence
// registry.
//
// The harness runs YAML scenarios through a real engine on an in-memory
// journal, checks each step's outcome, evaluates assertions on the trace
// and the final claims, and finally replays the journal to confirm the run
// is reproducible.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	max_bytes_in_hash: 64        # optional
//	block_weight_limit: 1000000  # optional
//	batch: batch-1               # optional
//	steps:
//	  - op: create
//	    caller: alice
//	    fingerprint: "0x01"
//	    expect: Ok
//	  - op: advance
//	  - op: transfer
//	    caller: alice
//	    receiver: bob
//	    text: "some content"      # fingerprint = sha2-256("some content")
//	    algorithm: sha2-256
//	    expect: NoSuchProof
//	assertions:
//	  - type: claim
//	    fingerprint: "0x01"
//	    owner: alice
//	    registered_at: 1
//	  - type: outcome_count
//	    outcome: NoSuchProof
//	    count: 1
//
// # Assertion Types
//
//   - claim: the fingerprint is held by owner (at registered_at, if given)
//   - absent: the fingerprint is unclaimed
//   - claim_count: exactly count claims are live
//   - event_count: count events of kind were deposited (any kind if omitted)
//   - event_order: the deposited event kinds, in order
//   - outcome_count: count calls ended with outcome
//
// # Deterministic Testing
//
// The batch token is fixed and both clocks are logical, so the same
// scenario always produces the same trace. RunWithGolden compares the trace
// against testdata/golden/{name}.golden.
package harness
