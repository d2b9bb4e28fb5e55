package registry

import (
	"bytes"
	"encoding/hex"
)

// Fingerprint is an immutable byte sequence no longer than the configured
// MaxBytesInHash. The zero value is the empty fingerprint.
type Fingerprint struct {
	b string
}

// NewFingerprint copies b into a Fingerprint, failing with
// ErrFingerprintTooLong when len(b) exceeds max. Input is never truncated.
func NewFingerprint(b []byte, max uint32) (Fingerprint, error) {
	if uint64(len(b)) > uint64(max) {
		return Fingerprint{}, newTooLongError(len(b), max)
	}
	return Fingerprint{b: string(b)}, nil
}

// MustFingerprint is like NewFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(b []byte, max uint32) Fingerprint {
	fp, err := NewFingerprint(b, max)
	if err != nil {
		panic(err)
	}
	return fp
}

// Bytes returns a copy of the fingerprint contents.
func (f Fingerprint) Bytes() []byte {
	return []byte(f.b)
}

// Len returns the fingerprint length in bytes.
func (f Fingerprint) Len() int {
	return len(f.b)
}

// Equal reports whether both fingerprints hold the same bytes.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.b == other.b
}

// Compare orders fingerprints by their bytes.
func (f Fingerprint) Compare(other Fingerprint) int {
	return bytes.Compare([]byte(f.b), []byte(other.b))
}

// String renders the fingerprint as 0x-prefixed lowercase hex.
func (f Fingerprint) String() string {
	return "0x" + hex.EncodeToString([]byte(f.b))
}
