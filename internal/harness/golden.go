package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/testutil"
)

// TraceSnapshot captures the complete trace and final claims of a scenario.
// Serialized with canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Batch        string       `json:"batch"`
	Trace        []TraceEvent `json:"trace"`
	Claims       []ClaimState `json:"claims"`
}

// NewTraceSnapshot builds the snapshot of a scenario run.
func NewTraceSnapshot(scenario *Scenario, result *Result) TraceSnapshot {
	batch := scenario.Batch
	if batch == "" {
		batch = testutil.DefaultBatch
	}
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		Batch:        batch,
		Trace:        result.Trace,
		Claims:       result.Claims,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization, which only handles primitives, slices and maps.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step":  ev.Step,
			"op":    ev.Op,
			"block": ev.Block,
		}
		if ev.Op != OpAdvance {
			m["caller"] = ev.Caller
			m["fingerprint"] = ev.Fingerprint
			m["outcome"] = ev.Outcome
		}
		if ev.Seq != 0 {
			m["seq"] = ev.Seq
		}
		if ev.Receiver != "" {
			m["receiver"] = ev.Receiver
		}
		if len(ev.Events) > 0 {
			kinds := make([]any, len(ev.Events))
			for j, k := range ev.Events {
				kinds[j] = k
			}
			m["events"] = kinds
		}
		traceList[i] = m
	}

	claimList := make([]any, len(s.Claims))
	for i, c := range s.Claims {
		claimList[i] = map[string]any{
			"fingerprint":   c.Fingerprint,
			"owner":         c.Owner,
			"registered_at": c.RegisteredAt,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"batch":         s.Batch,
		"trace":         traceList,
		"claims":        claimList,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenario, result)
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
