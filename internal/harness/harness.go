package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/poe/internal/engine"
	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/store"
	"github.com/roach88/poe/internal/testutil"
)

// DefaultMaxBytesInHash is the fingerprint bound used when a scenario sets none.
const DefaultMaxBytesInHash = 64

// Harness is the test execution engine.
// It runs scenarios against a real engine with a fixed batch token.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and open an engine on it
// 2. Execute steps, checking each expect clause
// 3. Evaluate assertions against the trace and final claims
// 4. Replay the journal and require it to reproduce the run
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	maxBytes := scenario.MaxBytesInHash
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytesInHash
	}

	ctx := context.Background()
	eng, err := engine.Open(ctx, st, engine.Config{
		MaxBytesInHash:   maxBytes,
		BlockWeightLimit: scenario.BlockWeightLimit,
	}, testutil.NewFixedBatchGenerator(scenario.Batch))
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}

	h := &Harness{store: st, engine: eng}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	for _, entry := range eng.Claims() {
		result.Claims = append(result.Claims, ClaimState{
			Fingerprint:  entry.Fingerprint.String(),
			Owner:        string(entry.Claim.Owner),
			RegisteredAt: uint64(entry.Claim.RegisteredAt),
		})
	}

	actx := &AssertionContext{Engine: eng}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	report, err := engine.Replay(ctx, st, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to replay journal: %w", err)
	}
	for _, m := range report.Mismatches {
		result.AddError(fmt.Sprintf("replay: seq %d %s: want %s, got %s", m.Seq, m.Field, m.Want, m.Got))
	}

	return result, nil
}

// executeSteps runs each step and checks its expect clause.
// Returns an error only for failures that make the run meaningless.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		if step.Op == OpAdvance {
			block := h.engine.SealBlock()
			result.AddTrace(TraceEvent{Step: i, Op: OpAdvance, Block: block})
			continue
		}

		fp, err := resolveFingerprint(step.Fingerprint, step.Text, step.Algorithm)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}

		req := engine.Request{
			Op:          ir.Op(step.Op),
			Caller:      step.Caller,
			Receiver:    step.Receiver,
			Fingerprint: fp,
		}

		ev := TraceEvent{
			Step:        i,
			Op:          step.Op,
			Caller:      ir.NormalizeIdentity(step.Caller),
			Receiver:    ir.NormalizeIdentity(step.Receiver),
			Fingerprint: fp,
		}

		receipt, err := h.engine.Apply(ctx, req)
		if err != nil {
			var re *engine.RuntimeError
			if !errors.As(err, &re) || re.Code == engine.ErrCodeHalted {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
			// Refused before the journal: no seq, block unchanged.
			ev.Block = h.engine.Height()
			ev.Outcome = string(re.Code)
		} else {
			ev.Seq = receipt.Call.Seq
			ev.Block = receipt.Call.Block
			ev.Outcome = receipt.Call.Outcome
			for _, rec := range receipt.Events {
				ev.Events = append(ev.Events, rec.Kind)
			}
		}
		result.AddTrace(ev)

		if step.Expect != "" && step.Expect != ev.Outcome {
			result.AddError(fmt.Sprintf("steps[%d] %s %s: expected outcome %q, got %q",
				i, step.Op, ir.FormatFingerprint(fp), step.Expect, ev.Outcome))
		}
	}
	return nil
}
