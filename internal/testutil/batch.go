// Package testutil provides deterministic fixtures for tests and the
// conformance harness.
package testutil

// DefaultBatch is the token returned by a FixedBatchGenerator created with "".
const DefaultBatch = "test-batch-default"

// FixedBatchGenerator generates the same batch token every time.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same FixedBatchGenerator produces byte-identical
// journals.
//
// Unlike engine.FixedGenerator which returns tokens in sequence, this
// generator never runs out, so an engine can be reopened any number of times.
//
// Thread-safety: FixedBatchGenerator is stateless and safe for concurrent use.
type FixedBatchGenerator struct {
	token string
}

// NewFixedBatchGenerator creates a new fixed batch token generator.
//
// The token is typically set in the scenario YAML:
//
//	batch: "test-batch-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Generate() returns DefaultBatch.
func NewFixedBatchGenerator(token string) *FixedBatchGenerator {
	if token == "" {
		token = DefaultBatch
	}
	return &FixedBatchGenerator{token: token}
}

// Generate returns the fixed batch token.
//
// Implements engine.BatchTokenGenerator.
func (g *FixedBatchGenerator) Generate() string {
	return g.token
}
