package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poe/internal/ir"
)

func TestReadCalls_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	calls, err := s.ReadCalls(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, calls)
	assert.Empty(t, calls)
}

func TestReadCalls_SeqOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	commitCreate(t, s, 2, 1, "1", []byte{2})
	commitCreate(t, s, 1, 1, "1", []byte{1})
	commitCreate(t, s, 3, 2, "1", []byte{3})

	calls, err := s.ReadCalls(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 3)
	for i, c := range calls {
		assert.Equal(t, int64(i+1), c.Seq)
	}
}

func TestReadCall_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadCall(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadCallsForFingerprint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	commitCreate(t, s, 1, 1, "1", []byte{1})
	commitCreate(t, s, 2, 1, "1", []byte{2})
	require.NoError(t, s.CommitCall(ctx, createTestCall(3, 1, ir.OpCreate, "2", []byte{1}, "ProofAlreadyClaimed"), nil, nil))

	calls, err := s.ReadCallsForFingerprint(ctx, []byte{1})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, ir.OutcomeOk, calls[0].Outcome)
	assert.Equal(t, "ProofAlreadyClaimed", calls[1].Outcome)
}

func TestListBatches_FirstAppearanceOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, batch := range []string{"b-2", "b-1", "b-2", "b-3"} {
		c := createTestCall(int64(i+1), 1, ir.OpRevoke, "1", []byte{byte(i)}, "NoSuchProof")
		c.Batch = batch
		c.ID = ir.MustCallID(c)
		require.NoError(t, s.CommitCall(ctx, c, nil, nil))
	}

	batches, err := s.ListBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-2", "b-1", "b-3"}, batches)

	calls, err := s.ReadCallsForBatch(ctx, "b-2")
	require.NoError(t, err)
	assert.Len(t, calls, 2)
}

func TestReadEvents_SeqOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	commitCreate(t, s, 1, 1, "a", []byte{1})
	commitCreate(t, s, 2, 1, "b", []byte{2})

	events, err := s.ReadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Caller)
	assert.Equal(t, "b", events[1].Caller)
}

func TestReadProofs_FingerprintOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	commitCreate(t, s, 1, 1, "1", []byte{3})
	commitCreate(t, s, 2, 1, "1", []byte{1, 0})
	commitCreate(t, s, 3, 1, "1", []byte{1})

	proofs, err := s.ReadProofs(ctx)
	require.NoError(t, err)
	require.Len(t, proofs, 3)
	assert.Equal(t, []byte{1}, []byte(proofs[0].Fingerprint))
	assert.Equal(t, []byte{1, 0}, []byte(proofs[1].Fingerprint))
	assert.Equal(t, []byte{3}, []byte(proofs[2].Fingerprint))
}

func TestHead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, block, err := s.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
	assert.Equal(t, uint64(0), block)

	commitCreate(t, s, 1, 4, "1", []byte{1})
	commitCreate(t, s, 2, 5, "1", []byte{2})

	seq, block, err = s.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
	assert.Equal(t, uint64(5), block)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	commitCreate(t, s, 1, 1, "1", []byte{1})
	proofs, err := s.ReadProofs(context.Background())
	require.NoError(t, err)
	assert.Len(t, proofs, 1)
}
