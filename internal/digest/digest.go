// Package digest derives claim fingerprints from content.
//
// A fingerprint is just bytes to the registry. This package gives callers a
// consistent way to produce them from files, and renders them as multihashes
// and CIDv1 strings so a claim can be matched against content-addressed
// storage.
package digest

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a supported hash function by its multicodec name.
type Algorithm string

const (
	SHA256     Algorithm = "sha2-256"
	Keccak256  Algorithm = "keccak-256"
	Blake2b256 Algorithm = "blake2b-256"
)

// DefaultAlgorithm is used when none is given.
const DefaultAlgorithm = SHA256

// Algorithms lists the supported algorithms in display order.
var Algorithms = []Algorithm{SHA256, Keccak256, Blake2b256}

// ErrUnknownAlgorithm is returned for unsupported algorithm names or codes.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// multihash codes; blake2b-256 is 0xb220.
var codes = map[Algorithm]uint64{
	SHA256:     multihash.SHA2_256,
	Keccak256:  multihash.KECCAK_256,
	Blake2b256: multihash.BLAKE2B_MIN + 31,
}

// ParseAlgorithm resolves a name such as "sha2-256". Matching is
// case-insensitive; "" selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultAlgorithm, nil
	}
	algo := Algorithm(name)
	if _, ok := codes[algo]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return algo, nil
}

// Code returns the multihash code of the algorithm.
func (a Algorithm) Code() uint64 {
	return codes[a]
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case Keccak256:
		return crypto.NewKeccakState(), nil
	case Blake2b256:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
}

// Digest is a content hash together with the algorithm that produced it.
type Digest struct {
	Algorithm Algorithm
	Sum       []byte
}

// Sum hashes data with algo.
func Sum(data []byte, algo Algorithm) (Digest, error) {
	return SumReader(bytes.NewReader(data), algo)
}

// SumReader hashes everything read from r with algo.
func SumReader(r io.Reader, algo Algorithm) (Digest, error) {
	h, err := algo.newHash()
	if err != nil {
		return Digest{}, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, fmt.Errorf("digest: read input: %w", err)
	}
	return Digest{Algorithm: algo, Sum: h.Sum(nil)}, nil
}

// Hex renders the raw digest as 0x-prefixed hex, the fingerprint text form.
func (d Digest) Hex() string {
	return hexutil.Encode(d.Sum)
}

// Multihash wraps the digest in a self-describing multihash.
func (d Digest) Multihash() (multihash.Multihash, error) {
	code, ok := codes[d.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(d.Algorithm))
	}
	return multihash.Encode(d.Sum, code)
}

// CID renders the digest as a CIDv1 with the raw codec.
func (d Digest) CID() (cid.Cid, error) {
	mh, err := d.Multihash()
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// FromCID extracts the digest carried by a CID string. Only the algorithms
// in Algorithms are accepted.
func FromCID(s string) (Digest, error) {
	c, err := cid.Decode(strings.TrimSpace(s))
	if err != nil {
		return Digest{}, fmt.Errorf("digest: decode cid: %w", err)
	}
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return Digest{}, fmt.Errorf("digest: decode multihash: %w", err)
	}
	for algo, code := range codes {
		if code == decoded.Code {
			return Digest{Algorithm: algo, Sum: decoded.Digest}, nil
		}
	}
	return Digest{}, fmt.Errorf("%w: multihash code 0x%x", ErrUnknownAlgorithm, decoded.Code)
}
