package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedBatchGenerator_ReturnsSameToken(t *testing.T) {
	gen := NewFixedBatchGenerator("batch-x")

	for i := 0; i < 3; i++ {
		assert.Equal(t, "batch-x", gen.Generate())
	}
}

func TestFixedBatchGenerator_DefaultToken(t *testing.T) {
	assert.Equal(t, DefaultBatch, NewFixedBatchGenerator("").Generate())
}

func TestOpenMemoryStore(t *testing.T) {
	s := OpenMemoryStore(t)

	seq, block, err := s.Head(context.Background())
	require.NoError(t, err)
	assert.Zero(t, seq)
	assert.Zero(t, block)
}

func TestOpenFileStore(t *testing.T) {
	s, path := OpenFileStore(t)
	require.NotNil(t, s)
	assert.FileExists(t, path)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, []byte{0xde, 0xad}, Fingerprint(t, "0xdead"))
	assert.Equal(t, []byte{}, Fingerprint(t, "0x"))
}
