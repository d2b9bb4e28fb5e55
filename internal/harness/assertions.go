package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/poe/internal/engine"
	"github.com/roach88/poe/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		if ev.Op == OpAdvance {
			fmt.Fprintf(&buf, "  [%d] advance -> block %d\n", ev.Step, ev.Block)
			continue
		}
		fmt.Fprintf(&buf, "  [%d] %s %s by %s: %s\n",
			ev.Step, ev.Op, ir.FormatFingerprint(ev.Fingerprint), ev.Caller, ev.Outcome)
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Engine *engine.Engine
}

// assertClaim checks that the fingerprint is held by the expected owner.
func assertClaim(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	fp, err := resolveFingerprint(a.Fingerprint, a.Text, a.Algorithm)
	if err != nil {
		return err
	}
	claim, ok, err := actx.Engine.Lookup(fp)
	if err != nil {
		return err
	}

	want := ir.NormalizeIdentity(a.Owner)
	expected := fmt.Sprintf("%s claimed by %s", ir.FormatFingerprint(fp), want)
	if a.RegisteredAt != nil {
		expected += fmt.Sprintf(" at %d", *a.RegisteredAt)
	}

	switch {
	case !ok:
		return &AssertionError{Type: AssertClaim, Expected: expected, Actual: "no claim", Trace: trace}
	case string(claim.Owner) != want,
		a.RegisteredAt != nil && uint64(claim.RegisteredAt) != *a.RegisteredAt:
		return &AssertionError{
			Type:     AssertClaim,
			Expected: expected,
			Actual:   fmt.Sprintf("claimed by %s at %d", claim.Owner, claim.RegisteredAt),
			Trace:    trace,
		}
	}
	return nil
}

// assertAbsent checks that the fingerprint is not claimed.
func assertAbsent(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	fp, err := resolveFingerprint(a.Fingerprint, a.Text, a.Algorithm)
	if err != nil {
		return err
	}
	claim, ok, err := actx.Engine.Lookup(fp)
	if err != nil {
		return err
	}
	if ok {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("%s unclaimed", ir.FormatFingerprint(fp)),
			Actual:   fmt.Sprintf("claimed by %s at %d", claim.Owner, claim.RegisteredAt),
			Trace:    trace,
		}
	}
	return nil
}

// assertClaimCount checks the number of live claims.
func assertClaimCount(claims []ClaimState, trace []TraceEvent, a Assertion) error {
	if len(claims) != a.Count {
		return &AssertionError{
			Type:     AssertClaimCount,
			Expected: fmt.Sprintf("%d claims", a.Count),
			Actual:   fmt.Sprintf("%d claims", len(claims)),
			Trace:    trace,
		}
	}
	return nil
}

// assertEventCount checks how many events of a kind were deposited.
// An empty Kind counts every event.
func assertEventCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		for _, kind := range ev.Events {
			if a.Kind == "" || kind == a.Kind {
				count++
			}
		}
	}

	if count != a.Count {
		what := "events"
		if a.Kind != "" {
			what = a.Kind + " events"
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Trace:    trace,
		}
	}
	return nil
}

// assertEventOrder checks that the deposited event kinds are exactly Kinds,
// in order.
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	var got []string
	for _, ev := range trace {
		got = append(got, ev.Events...)
	}

	if strings.Join(got, ",") != strings.Join(a.Kinds, ",") {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("%v", a.Kinds),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertOutcomeCount checks how many steps ended with Outcome.
func assertOutcomeCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Op != OpAdvance && ev.Outcome == a.Outcome {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d calls with outcome %s", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d calls with outcome %s", count, a.Outcome),
			Trace:    trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides engine access for claim and absent assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertClaim, AssertAbsent:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
			} else if assertion.Type == AssertClaim {
				err = assertClaim(actx, result.Trace, assertion)
			} else {
				err = assertAbsent(actx, result.Trace, assertion)
			}
		case AssertClaimCount:
			err = assertClaimCount(result.Claims, result.Trace, assertion)
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, assertion)
		case AssertOutcomeCount:
			err = assertOutcomeCount(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
