package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/registry"
	"github.com/roach88/poe/internal/store"
)

// Replay re-applies the whole journal to a fresh registry and compares the
// result with what was recorded.
//
// Replay is read-only. Each call is applied at its recorded block height, so
// RegisteredAt values are reproduced exactly. The report lists every
// divergence in outcome or event, followed by any difference between the
// rebuilt state and the materialized proofs table.
//
// Replay uses the same dispatch as live processing (applyOp), so a
// deterministic registry always yields a report with Deterministic set.
func Replay(ctx context.Context, s *store.Store, maxBytesInHash uint32) (*ReplayReport, error) {
	height := NewHeightAt(0)
	rec := &registry.Recorder{}
	reg, err := registry.New(registry.Config{MaxBytesInHash: maxBytesInHash}, height, rec)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	report, err := replayInto(ctx, s, reg, height, rec)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	proofs, err := s.ReadProofs(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	report.Proofs = len(proofs)
	report.compareState(reg.Claims(), proofs)
	report.Deterministic = len(report.Mismatches) == 0

	return report, nil
}

// ReplayReport summarizes a journal replay.
type ReplayReport struct {
	Calls         int        `json:"calls"`
	Accepted      int        `json:"accepted"`
	Rejected      int        `json:"rejected"`
	Events        int        `json:"events"`
	Proofs        int        `json:"proofs"`
	Claims        int        `json:"claims"`
	Mismatches    []Mismatch `json:"mismatches,omitempty"`
	Deterministic bool       `json:"deterministic"`
}

// Mismatch is one divergence between the journal and its replay.
// Seq is zero for final-state mismatches.
type Mismatch struct {
	Seq    int64  `json:"seq,omitempty"`
	CallID string `json:"call_id,omitempty"`
	Field  string `json:"field"`
	Want   string `json:"want"`
	Got    string `json:"got"`
}

func (r *ReplayReport) mismatch(call ir.Call, field, want, got string) {
	r.Mismatches = append(r.Mismatches, Mismatch{
		Seq:    call.Seq,
		CallID: call.ID,
		Field:  field,
		Want:   want,
		Got:    got,
	})
}

// replayInto applies the journal to reg, which must be empty.
func replayInto(
	ctx context.Context,
	s *store.Store,
	reg *registry.Registry,
	height *Height,
	rec *registry.Recorder,
) (*ReplayReport, error) {
	calls, err := s.ReadCalls(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := s.ReadEvents(ctx)
	if err != nil {
		return nil, err
	}
	byCall := make(map[string]ir.EventRecord, len(stored))
	for _, ev := range stored {
		byCall[ev.CallID] = ev
	}

	report := &ReplayReport{}
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		height.Set(call.Block)
		opErr := applyOp(reg, call.Op, call.Caller, call.Receiver, call.Fingerprint)
		replayed := eventRecords(call, rec.Drain())

		report.Calls++
		if opErr == nil {
			report.Accepted++
		} else {
			report.Rejected++
		}
		report.Events += len(replayed)

		if got := OutcomeOf(opErr); got != call.Outcome {
			report.mismatch(call, "outcome", call.Outcome, got)
		}
		report.compareEvent(call, byCall, replayed)
	}

	report.Claims = reg.Len()
	report.Deterministic = len(report.Mismatches) == 0
	return report, nil
}

func (r *ReplayReport) compareEvent(call ir.Call, stored map[string]ir.EventRecord, replayed []ir.EventRecord) {
	want, ok := stored[call.ID]
	switch {
	case !ok && len(replayed) == 0:
		return
	case !ok:
		r.mismatch(call, "event", "none", describeEvent(replayed[0]))
		return
	case len(replayed) == 0:
		r.mismatch(call, "event", describeEvent(want), "none")
		return
	}

	got := replayed[0]
	if want.Kind != got.Kind ||
		want.Caller != got.Caller ||
		want.Receiver != got.Receiver ||
		!bytes.Equal(want.Fingerprint, got.Fingerprint) {
		r.mismatch(call, "event", describeEvent(want), describeEvent(got))
	}
}

// compareState compares the rebuilt claims with the materialized proofs.
// Both are sorted by fingerprint bytes.
func (r *ReplayReport) compareState(claims []registry.Entry, proofs []ir.ProofRecord) {
	i, j := 0, 0
	for i < len(claims) || j < len(proofs) {
		switch {
		case j >= len(proofs):
			r.stateMismatch(claims[i].Fingerprint.Bytes(), describeClaim(claims[i].Claim), "absent")
			i++
		case i >= len(claims):
			r.stateMismatch(proofs[j].Fingerprint, "absent", describeProof(proofs[j]))
			j++
		default:
			c := bytes.Compare(claims[i].Fingerprint.Bytes(), proofs[j].Fingerprint)
			switch {
			case c < 0:
				r.stateMismatch(claims[i].Fingerprint.Bytes(), describeClaim(claims[i].Claim), "absent")
				i++
			case c > 0:
				r.stateMismatch(proofs[j].Fingerprint, "absent", describeProof(proofs[j]))
				j++
			default:
				want, got := describeClaim(claims[i].Claim), describeProof(proofs[j])
				if want != got {
					r.stateMismatch(proofs[j].Fingerprint, want, got)
				}
				i++
				j++
			}
		}
	}
}

// stateMismatch records a difference where want is the replayed claim and
// got is the materialized proof.
func (r *ReplayReport) stateMismatch(fp []byte, want, got string) {
	r.Mismatches = append(r.Mismatches, Mismatch{
		Field: "proof " + ir.FormatFingerprint(fp),
		Want:  want,
		Got:   got,
	})
}

func describeEvent(ev ir.EventRecord) string {
	if ev.Receiver != "" {
		return fmt.Sprintf("%s(%s -> %s, %s)", ev.Kind, ev.Caller, ev.Receiver, ir.FormatFingerprint(ev.Fingerprint))
	}
	return fmt.Sprintf("%s(%s, %s)", ev.Kind, ev.Caller, ir.FormatFingerprint(ev.Fingerprint))
}

func describeClaim(c registry.Claim) string {
	return fmt.Sprintf("%s@%d", c.Owner, c.RegisteredAt)
}

func describeProof(p ir.ProofRecord) string {
	return fmt.Sprintf("%s@%d", p.Owner, p.RegisteredAt)
}
