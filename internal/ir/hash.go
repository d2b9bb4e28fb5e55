package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCall = "poe/call/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CallID computes the content-addressed ID of a call.
//
// Outcome and Weight are excluded: the ID names what was requested, and the
// outcome is a deterministic function of the request and prior state.
func CallID(c Call) (string, error) {
	obj := map[string]any{
		"seq":         c.Seq,
		"batch":       c.Batch,
		"block":       c.Block,
		"op":          c.Op,
		"caller":      c.Caller,
		"receiver":    c.Receiver,
		"fingerprint": []byte(c.Fingerprint),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CallID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainCall, canonical), nil
}

// MustCallID is like CallID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCallID(c Call) string {
	id, err := CallID(c)
	if err != nil {
		panic(err)
	}
	return id
}

// EventBody renders an event as canonical JSON for downstream publishers.
func EventBody(ev EventRecord) ([]byte, error) {
	obj := map[string]any{
		"call_id":     ev.CallID,
		"seq":         ev.Seq,
		"block":       ev.Block,
		"kind":        ev.Kind,
		"caller":      ev.Caller,
		"fingerprint": []byte(ev.Fingerprint),
	}
	if ev.Receiver != "" {
		obj["receiver"] = ev.Receiver
	}
	return MarshalCanonical(obj)
}
