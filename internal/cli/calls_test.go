package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poe/internal/ir"
)

func TestCreate_JSON(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, "", "create", "--db", db, "--format", "json", "--caller", "alice", "--fingerprint", "0xabcd")
	require.NoError(t, err)

	var result CallResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Accepted)
	assert.Equal(t, ir.OutcomeOk, result.Call.Outcome)
	assert.Equal(t, int64(1), result.Call.Seq)
	assert.Equal(t, uint64(1), result.Call.Block)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "ClaimCreated", result.Events[0].Kind)
	assert.Equal(t, "alice", result.Events[0].Caller)
}

func TestCreate_Text(t *testing.T) {
	out, err := execute(t, "", "create", "--db", tempDB(t), "--caller", "alice", "--fingerprint", "0xabcd")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ClaimCreated 0xabcd")
	assert.Contains(t, out, "Owner: alice")
	assert.Contains(t, out, "Block: 1  Seq: 1")
}

func TestCreate_AlreadyClaimed(t *testing.T) {
	db := tempDB(t)

	_, err := execute(t, "", "create", "--db", db, "--caller", "alice", "--fingerprint", "0x01")
	require.NoError(t, err)

	out, err := execute(t, "", "create", "--db", db, "--format", "json", "--caller", "bob", "--fingerprint", "0x01")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result CallResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ProofAlreadyClaimed", resp.Error.Code)

	// Rejected calls are journaled in a new session block.
	assert.False(t, result.Accepted)
	assert.Equal(t, "ProofAlreadyClaimed", result.Call.Outcome)
	assert.Equal(t, int64(2), result.Call.Seq)
	assert.Equal(t, uint64(2), result.Call.Block)
	assert.Empty(t, result.Events)
}

func TestCreate_FingerprintTooLong(t *testing.T) {
	db := tempDB(t)
	cfg := writeConfig(t, "max_bytes_in_hash: 2\n")

	out, err := execute(t, "", "create", "--config", cfg, "--db", db, "--format", "json",
		"--caller", "alice", "--fingerprint", "0x010203")
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "FingerprintTooLong", resp.Error.Code)
}

func TestCreate_BoundMismatch(t *testing.T) {
	db := tempDB(t)

	_, err := execute(t, "", "create", "--db", db, "--caller", "alice", "--fingerprint", "0x01")
	require.NoError(t, err)

	cfg := writeConfig(t, "max_bytes_in_hash: 8\n")
	_, err = execute(t, "", "create", "--config", cfg, "--db", db, "--caller", "alice", "--fingerprint", "0x02")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "max_bytes_in_hash")
}

func TestCreate_FingerprintFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"none", nil},
		{"two", []string{"--fingerprint", "0x01", "--cid", "bafkreie"}},
		{"bad_hex", []string{"--fingerprint", "zz"}},
		{"bad_cid", []string{"--cid", "not-a-cid"}},
		{"bad_algo", []string{"--file", "-", "--algo", "md5"}},
		{"missing_file", []string{"--file", "/nonexistent/file"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"create", "--db", tempDB(t), "--caller", "alice"}, tt.args...)
			_, err := execute(t, "", args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestCreate_MissingCaller(t *testing.T) {
	_, err := execute(t, "", "create", "--db", tempDB(t), "--fingerprint", "0x01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestCreate_EmptyCallerRefused(t *testing.T) {
	out, err := execute(t, "", "create", "--db", tempDB(t), "--format", "json", "--caller", "  ", "--fingerprint", "0x01")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_CALL", resp.Error.Code)
}

func TestCreate_FromFileAndStdin(t *testing.T) {
	db := tempDB(t)
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := execute(t, "", "create", "--db", db, "--caller", "alice", "--file", path, "--algo", "keccak-256")
	require.NoError(t, err)

	// keccak-256("hello")
	out, err := execute(t, "", "lookup", "--db", db,
		"--fingerprint", "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8")
	require.NoError(t, err)
	assert.Contains(t, out, "Owner: alice")

	out, err = execute(t, "hello", "lookup", "--db", db, "--file", "-", "--algo", "keccak-256")
	require.NoError(t, err)
	assert.Contains(t, out, "Owner: alice")
}

func TestTransferAndRevoke(t *testing.T) {
	db := tempDB(t)

	_, err := execute(t, "", "create", "--db", db, "--caller", "alice", "--fingerprint", "0x01")
	require.NoError(t, err)

	out, err := execute(t, "", "transfer", "--db", db, "--caller", "alice", "--receiver", "bob", "--fingerprint", "0x01")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ClaimTransferred 0x01")
	assert.Contains(t, out, "alice -> bob")

	out, err = execute(t, "", "revoke", "--db", db, "--format", "json", "--caller", "alice", "--fingerprint", "0x01")
	require.Error(t, err)
	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NotProofOwner", resp.Error.Code)

	// Each CLI call is its own block: the transfer at block 2 restamps the claim.
	out, err = execute(t, "", "lookup", "--db", db, "--format", "json", "--fingerprint", "0x01")
	require.NoError(t, err)
	var proof ir.ProofRecord
	decodeResponse(t, out, &proof)
	assert.Equal(t, "bob", proof.Owner)
	assert.Equal(t, uint64(2), proof.RegisteredAt)

	_, err = execute(t, "", "revoke", "--db", db, "--caller", "bob", "--fingerprint", "0x01")
	require.NoError(t, err)

	_, err = execute(t, "", "lookup", "--db", db, "--fingerprint", "0x01")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestTransfer_MissingReceiver(t *testing.T) {
	_, err := execute(t, "", "transfer", "--db", tempDB(t), "--caller", "alice", "--fingerprint", "0x01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRevoke_NoSuchProof(t *testing.T) {
	out, err := execute(t, "", "revoke", "--db", tempDB(t), "--caller", "alice", "--fingerprint", "0x01")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [NoSuchProof]")
}
