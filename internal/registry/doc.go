// Package registry implements the proof-of-existence claim registry.
//
// The registry maps a bounded Fingerprint (usually a content hash) to the
// Claim held on it: the owning identity and the sequence number at which the
// claim was created or last transferred.
//
// Three operations mutate the mapping:
//   - Create: claim an unclaimed fingerprint
//   - Transfer: hand an owned claim to another identity
//   - Revoke: drop an owned claim entirely
//
// Every operation validates all preconditions before it mutates anything, so
// a rejected call leaves the mapping untouched and emits no event. A
// successful call emits exactly one Event to the configured EventSink.
//
// The registry does no locking, logging or I/O. The host (see package engine)
// authenticates callers, supplies the sequence counter and serializes calls.
package registry
