package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/registry"
	"github.com/roach88/poe/internal/store"
	"github.com/roach88/poe/internal/testutil"
)

func openTestEngine(t *testing.T, s *store.Store, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := Open(context.Background(), s, Config{MaxBytesInHash: 8}, NewFixedGenerator("batch-1"), opts...)
	require.NoError(t, err)
	return e
}

func create(caller string, fp ...byte) Request {
	return Request{Op: ir.OpCreate, Caller: caller, Fingerprint: fp}
}

func transfer(caller, receiver string, fp ...byte) Request {
	return Request{Op: ir.OpTransfer, Caller: caller, Receiver: receiver, Fingerprint: fp}
}

func revoke(caller string, fp ...byte) Request {
	return Request{Op: ir.OpRevoke, Caller: caller, Fingerprint: fp}
}

func mustApply(t *testing.T, e *Engine, req Request) Receipt {
	t.Helper()
	r, err := e.Apply(context.Background(), req)
	require.NoError(t, err)
	return r
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ir.EventRecord
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev ir.EventRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func TestOpen_EmptyJournal(t *testing.T) {
	e := openTestEngine(t, testutil.OpenMemoryStore(t))

	assert.Equal(t, uint64(1), e.Height(), "first session starts at block 1")
	assert.Equal(t, int64(0), e.Seq())
	assert.Equal(t, "batch-1", e.Batch())
	assert.Equal(t, DefaultBlockWeightLimit, e.Config().BlockWeightLimit)
	assert.Empty(t, e.Claims())
}

func TestOpen_RejectsZeroBound(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	_, err := Open(context.Background(), s, Config{}, NewFixedGenerator("b"))
	require.Error(t, err)
}

func TestApply_CreateAccepted(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	e := openTestEngine(t, s)

	r := mustApply(t, e, create("alice", 0xAA))

	require.True(t, r.Accepted())
	assert.Equal(t, int64(1), r.Call.Seq)
	assert.Equal(t, uint64(1), r.Call.Block)
	assert.Equal(t, "batch-1", r.Call.Batch)
	assert.Equal(t, ir.OutcomeOk, r.Call.Outcome)
	assert.Equal(t, WeightCreate, r.Call.Weight)
	assert.Equal(t, ir.MustCallID(r.Call), r.Call.ID)

	require.Len(t, r.Events, 1)
	assert.Equal(t, "ClaimCreated", r.Events[0].Kind)
	assert.Equal(t, r.Call.ID, r.Events[0].CallID)

	claim, ok, err := e.Lookup(testutil.Fingerprint(t, "0xaa"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, registry.Identity("alice"), claim.Owner)
	assert.Equal(t, registry.SequenceNumber(1), claim.RegisteredAt)

	proof, ok, err := s.ReadProof(context.Background(), testutil.Fingerprint(t, "0xaa"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", proof.Owner)
}

func TestApply_RejectedCallIsJournaled(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	e := openTestEngine(t, s)

	mustApply(t, e, create("alice", 0xAA))
	r := mustApply(t, e, create("bob", 0xAA))

	assert.False(t, r.Accepted())
	assert.ErrorIs(t, r.Err, registry.ErrProofAlreadyClaimed)
	assert.Equal(t, "ProofAlreadyClaimed", r.Call.Outcome)
	assert.Empty(t, r.Events)

	calls, err := s.ReadCalls(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "ProofAlreadyClaimed", calls[1].Outcome)

	events, err := s.ReadEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1, "rejected calls deposit no event")
}

func TestApply_TransferRestampsAndPersists(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	e := openTestEngine(t, s)

	mustApply(t, e, create("alice", 0x01))
	e.SealBlock()
	r := mustApply(t, e, transfer("alice", "bob", 0x01))

	require.True(t, r.Accepted())
	assert.Equal(t, "bob", r.Events[0].Receiver)

	claim, ok, err := e.Lookup([]byte{0x01})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, registry.Identity("bob"), claim.Owner)
	assert.Equal(t, registry.SequenceNumber(2), claim.RegisteredAt)

	proof, ok, err := s.ReadProof(context.Background(), []byte{0x01})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", proof.Owner)
	assert.Equal(t, uint64(2), proof.RegisteredAt)
}

func TestApply_RevokeDeletesProof(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	e := openTestEngine(t, s)

	mustApply(t, e, create("alice", 0x01))
	r := mustApply(t, e, revoke("alice", 0x01))

	require.True(t, r.Accepted())
	assert.Equal(t, WeightRevoke, r.Call.Weight)

	_, ok, err := s.ReadProof(context.Background(), []byte{0x01})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApply_OversizedFingerprintRejected(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	e := openTestEngine(t, s)

	r := mustApply(t, e, create("alice", make([]byte, 9)...))

	assert.ErrorIs(t, r.Err, registry.ErrFingerprintTooLong)
	assert.Equal(t, "FingerprintTooLong", r.Call.Outcome)
	assert.Empty(t, e.Claims())

	_, _, err := e.Lookup(make([]byte, 9))
	assert.ErrorIs(t, err, registry.ErrFingerprintTooLong)
}

func TestApply_EmptyFingerprintAllowed(t *testing.T) {
	e := openTestEngine(t, testutil.OpenMemoryStore(t))

	r := mustApply(t, e, Request{Op: ir.OpCreate, Caller: "alice"})
	assert.True(t, r.Accepted())
	assert.Equal(t, "0x", ir.FormatFingerprint(r.Call.Fingerprint))
}

func TestApply_InvalidRequestsNotJournaled(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	e := openTestEngine(t, s)

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown op", Request{Op: "mint", Caller: "alice"}},
		{"empty caller", create("   ", 0x01)},
		{"transfer without receiver", transfer("alice", "", 0x01)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Apply(context.Background(), tt.req)
			assert.True(t, IsInvalidCallError(err), "got %v", err)
		})
	}

	calls, err := s.ReadCalls(context.Background())
	require.NoError(t, err)
	assert.Empty(t, calls)
	assert.Equal(t, int64(0), e.Seq(), "refused calls do not consume a seq")
}

func TestApply_NormalizesIdentities(t *testing.T) {
	e := openTestEngine(t, testutil.OpenMemoryStore(t))

	mustApply(t, e, create("  cafe\u0301 ", 0x01))
	r := mustApply(t, e, revoke("caf\u00e9", 0x01))

	assert.True(t, r.Accepted(), "NFC forms of the same identity must match")
}

func TestApply_WeightSealsBlocks(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	e, err := Open(context.Background(), s, Config{MaxBytesInHash: 8, BlockWeightLimit: 2_000}, NewFixedGenerator("b"))
	require.NoError(t, err)

	r1 := mustApply(t, e, create("alice", 0x01))
	r2 := mustApply(t, e, create("alice", 0x02))
	r3 := mustApply(t, e, create("alice", 0x03))

	assert.Equal(t, uint64(1), r1.Call.Block)
	assert.Equal(t, uint64(1), r2.Call.Block)
	assert.Equal(t, uint64(2), r3.Call.Block, "block full, call moves to the next one")

	claim, _, err := e.Lookup([]byte{0x03})
	require.NoError(t, err)
	assert.Equal(t, registry.SequenceNumber(2), claim.RegisteredAt)
}

func TestApply_WeightExceeded(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	e, err := Open(context.Background(), s, Config{MaxBytesInHash: 8, BlockWeightLimit: 5_000}, NewFixedGenerator("b"))
	require.NoError(t, err)

	mustApply(t, e, create("alice", 0x01))
	_, err = e.Apply(context.Background(), revoke("alice", 0x01))

	assert.True(t, IsWeightError(err))
	_, ok, _ := e.Lookup([]byte{0x01})
	assert.True(t, ok, "refused revoke must not touch the registry")
}

func TestApply_PublishesCommittedEvents(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	e := openTestEngine(t, testutil.OpenMemoryStore(t), WithPublisher(pub))

	r := mustApply(t, e, create("alice", 0x01))
	mustApply(t, e, create("bob", 0x01))

	require.True(t, r.Accepted(), "publish failure does not fail the call")
	require.Len(t, pub.events, 1)
	assert.Equal(t, r.Call.ID, pub.events[0].CallID)
}

func TestApply_HaltsWhenCommitFails(t *testing.T) {
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	e := openTestEngine(t, s)

	require.NoError(t, s.Close())

	_, err = e.Apply(context.Background(), create("alice", 0x01))
	require.True(t, IsHaltedError(err), "got %v", err)
	require.Error(t, e.Halted())

	_, err = e.Apply(context.Background(), create("bob", 0x02))
	assert.True(t, IsHaltedError(err), "halted engine refuses further calls")
}

func TestApply_Metrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	e := openTestEngine(t, testutil.OpenMemoryStore(t), WithMetrics(m))

	mustApply(t, e, create("alice", 0x01))
	mustApply(t, e, create("bob", 0x01))
	_, _ = e.Apply(context.Background(), Request{Op: "mint", Caller: "x"})

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Calls.WithLabelValues("create", "Ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Calls.WithLabelValues("create", "ProofAlreadyClaimed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Events.WithLabelValues("ClaimCreated")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Proofs))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Refused.WithLabelValues("INVALID_CALL")))
}

func TestOpen_ResumesFromJournal(t *testing.T) {
	ctx := context.Background()

	s1, path := testutil.OpenFileStore(t)
	e1, err := Open(ctx, s1, Config{MaxBytesInHash: 8}, NewFixedGenerator("first"))
	require.NoError(t, err)
	mustApply(t, e1, create("alice", 0x01))
	mustApply(t, e1, create("bob", 0x02))
	mustApply(t, e1, transfer("bob", "carol", 0x02))
	mustApply(t, e1, revoke("alice", 0x01))
	require.NoError(t, s1.Close())

	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()
	e2, err := Open(ctx, s2, Config{MaxBytesInHash: 8}, NewFixedGenerator("second"))
	require.NoError(t, err)

	assert.Equal(t, int64(4), e2.Seq())
	assert.Equal(t, uint64(2), e2.Height(), "new session opens the next block")

	claims := e2.Claims()
	require.Len(t, claims, 1)
	assert.Equal(t, registry.Identity("carol"), claims[0].Claim.Owner)

	r := mustApply(t, e2, create("dave", 0x01))
	assert.Equal(t, int64(5), r.Call.Seq)
	assert.Equal(t, "second", r.Call.Batch)

	batches, err := s2.ListBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, batches)
}

func TestOpen_RejectsDifferentBound(t *testing.T) {
	s, _ := testutil.OpenFileStore(t)
	openTestEngine(t, s)

	_, err := Open(context.Background(), s, Config{MaxBytesInHash: 32}, NewFixedGenerator("b"))
	assert.ErrorIs(t, err, store.ErrConfigMismatch)
}

func TestOpen_FailsOnDivergentJournal(t *testing.T) {
	s := testutil.OpenMemoryStore(t)
	e := openTestEngine(t, s)
	mustApply(t, e, create("alice", 0x01))
	r := mustApply(t, e, create("bob", 0x01))

	_, err := s.DB().Exec(`UPDATE calls SET outcome = 'Ok' WHERE id = ?`, r.Call.ID)
	require.NoError(t, err)

	_, err = Open(context.Background(), s, Config{MaxBytesInHash: 8}, NewFixedGenerator("b2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal diverges at seq 2")
}

func TestRunSubmit_Concurrent(t *testing.T) {
	e := openTestEngine(t, testutil.OpenMemoryStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	const n = 20
	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := e.Submit(ctx, create("alice", byte(i)))
			if assert.NoError(t, err) {
				assert.True(t, r.Accepted())
				seqs <- r.Call.Seq
			}
		}(i)
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for s := range seqs {
		assert.False(t, seen[s], "seq %d assigned twice", s)
		seen[s] = true
	}
	assert.Len(t, seen, n)
	assert.Len(t, e.Claims(), n)

	e.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err := e.Submit(context.Background(), create("late", 0xFF))
	assert.True(t, IsStoppedError(err))
	_, err = e.Apply(context.Background(), create("late", 0xFF))
	assert.True(t, IsStoppedError(err))
}

func TestRun_ContextCancelled(t *testing.T) {
	e := openTestEngine(t, testutil.OpenMemoryStore(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
