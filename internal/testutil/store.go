package testutil

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/roach88/poe/internal/store"
)

// OpenMemoryStore opens an in-memory journal closed at test cleanup.
func OpenMemoryStore(t testing.TB) *store.Store {
	t.Helper()
	return openStore(t, ":memory:")
}

// OpenFileStore opens a journal file in a fresh temp dir and returns it with
// its path, so tests can reopen it.
func OpenFileStore(t testing.TB) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poe.db")
	return openStore(t, path), path
}

func openStore(t testing.TB, path string) *store.Store {
	t.Helper()
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open(%q) failed: %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Fingerprint decodes 0x-prefixed hex, failing the test on bad input.
func Fingerprint(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hexutil.Decode(s)
	if err != nil {
		t.Fatalf("bad fingerprint %q: %v", s, err)
	}
	return b
}
