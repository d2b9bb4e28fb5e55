package ir

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/text/unicode/norm"
)

// Op names a registry operation.
type Op string

const (
	OpCreate   Op = "create"
	OpTransfer Op = "transfer"
	OpRevoke   Op = "revoke"
)

// ValidOps defines the allowed operations.
var ValidOps = map[Op]bool{
	OpCreate:   true,
	OpTransfer: true,
	OpRevoke:   true,
}

// OutcomeOk marks an accepted call. Rejected calls carry the registry error code.
const OutcomeOk = "Ok"

// Call is one journaled registry call, accepted or rejected.
type Call struct {
	ID          string        `json:"id"` // Content-addressed hash
	Seq         int64         `json:"seq"`
	Batch       string        `json:"batch"`
	Block       uint64        `json:"block"`
	Op          Op            `json:"op"`
	Caller      string        `json:"caller"`
	Receiver    string        `json:"receiver,omitempty"` // transfer only
	Fingerprint hexutil.Bytes `json:"fingerprint"`
	Outcome     string        `json:"outcome"`
	Weight      uint64        `json:"weight"`
}

// EventRecord is a persisted domain event. At most one exists per call.
type EventRecord struct {
	CallID      string        `json:"call_id"`
	Seq         int64         `json:"seq"`
	Block       uint64        `json:"block"`
	Kind        string        `json:"kind"`
	Caller      string        `json:"caller"`
	Receiver    string        `json:"receiver,omitempty"`
	Fingerprint hexutil.Bytes `json:"fingerprint"`
}

// ProofRecord is the materialized claim held on a fingerprint.
type ProofRecord struct {
	Fingerprint  hexutil.Bytes `json:"fingerprint"`
	Owner        string        `json:"owner"`
	RegisteredAt uint64        `json:"registered_at"`
}

// ParseFingerprint decodes 0x-prefixed hex. "0x" is the empty fingerprint.
func ParseFingerprint(s string) ([]byte, error) {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return b, nil
}

// FormatFingerprint encodes b as 0x-prefixed hex.
func FormatFingerprint(b []byte) string {
	return hexutil.Encode(b)
}

// NormalizeIdentity trims and NFC-normalizes an identity at the input boundary,
// so visually identical identities compare equal inside the registry.
func NormalizeIdentity(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
