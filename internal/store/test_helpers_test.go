package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/poe/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCall creates a call with its content-addressed ID filled in.
func createTestCall(seq int64, block uint64, op ir.Op, caller string, fp []byte, outcome string) ir.Call {
	c := ir.Call{
		Seq:         seq,
		Batch:       "test-batch",
		Block:       block,
		Op:          op,
		Caller:      caller,
		Fingerprint: fp,
		Outcome:     outcome,
		Weight:      1_000,
	}
	c.ID = ir.MustCallID(c)
	return c
}

// commitCreate journals an accepted create of fp by caller.
func commitCreate(t *testing.T, s *Store, seq int64, block uint64, caller string, fp []byte) ir.Call {
	t.Helper()
	call := createTestCall(seq, block, ir.OpCreate, caller, fp, ir.OutcomeOk)
	ev := ir.EventRecord{CallID: call.ID, Seq: seq, Block: block, Kind: "ClaimCreated", Caller: caller, Fingerprint: fp}
	write := &ProofWrite{Fingerprint: fp, Proof: &ir.ProofRecord{Fingerprint: fp, Owner: caller, RegisteredAt: block}}
	if err := s.CommitCall(context.Background(), call, []ir.EventRecord{ev}, write); err != nil {
		t.Fatalf("CommitCall() failed: %v", err)
	}
	return call
}
