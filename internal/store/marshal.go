package store

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// StorageKey derives the proofs table key for a fingerprint using the
// Blake2_128Concat scheme: blake2b-128(fp) followed by fp itself, hex encoded.
// The hash prefix spreads keys evenly; the suffix keeps them reversible.
func StorageKey(fp []byte) string {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// blake2b.New only fails for sizes outside 1..64 or oversized keys.
		panic(err)
	}
	h.Write(fp)
	key := h.Sum(nil)
	key = append(key, fp...)
	return hex.EncodeToString(key)
}

// nonNil maps a nil fingerprint to an empty one so it binds as a zero-length
// BLOB rather than NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
