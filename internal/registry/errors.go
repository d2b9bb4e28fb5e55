package registry

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why a state transition was rejected.
type ErrorCode string

const (
	// CodeFingerprintTooLong: the fingerprint exceeds MaxBytesInHash.
	CodeFingerprintTooLong ErrorCode = "FingerprintTooLong"

	// CodeProofAlreadyClaimed: create on a fingerprint that is already claimed.
	CodeProofAlreadyClaimed ErrorCode = "ProofAlreadyClaimed"

	// CodeNoSuchProof: transfer or revoke on an unclaimed fingerprint.
	CodeNoSuchProof ErrorCode = "NoSuchProof"

	// CodeNotProofOwner: transfer or revoke by someone other than the owner.
	CodeNotProofOwner ErrorCode = "NotProofOwner"
)

// Sentinels for errors.Is. Errors returned by the registry carry more
// context but compare equal to these by code.
var (
	ErrFingerprintTooLong  = &Error{Code: CodeFingerprintTooLong}
	ErrProofAlreadyClaimed = &Error{Code: CodeProofAlreadyClaimed}
	ErrNoSuchProof         = &Error{Code: CodeNoSuchProof}
	ErrNotProofOwner       = &Error{Code: CodeNotProofOwner}
)

// Error is a rejected state transition. It is never fatal; the registry is
// unchanged whenever one is returned.
type Error struct {
	Code        ErrorCode
	Fingerprint Fingerprint
	Caller      Identity

	// Length and Max are set for CodeFingerprintTooLong.
	Length int
	Max    uint32
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Code {
	case CodeFingerprintTooLong:
		if e.Max > 0 || e.Length > 0 {
			return fmt.Sprintf("%s: %d bytes exceeds limit of %d", e.Code, e.Length, e.Max)
		}
	case CodeNotProofOwner:
		if e.Caller != "" {
			return fmt.Sprintf("%s: %s is not the owner of %s", e.Code, e.Caller, e.Fingerprint)
		}
	case CodeProofAlreadyClaimed, CodeNoSuchProof:
		if e.Fingerprint.Len() > 0 {
			return fmt.Sprintf("%s: %s", e.Code, e.Fingerprint)
		}
	}
	return string(e.Code)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the registry error code carried by err, or "" if err is not
// a registry error.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func newTooLongError(length int, max uint32) *Error {
	return &Error{Code: CodeFingerprintTooLong, Length: length, Max: max}
}
