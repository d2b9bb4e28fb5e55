package registry

import (
	"errors"
	"slices"
)

// Identity is an authenticated caller identity supplied by the host.
type Identity string

// SequenceNumber is the host's monotonic counter, typically a block height.
type SequenceNumber uint64

// SequenceSource yields the sequence number current at call time.
type SequenceSource interface {
	Current() SequenceNumber
}

// Claim is the record held on an active fingerprint.
type Claim struct {
	Owner        Identity
	RegisteredAt SequenceNumber
}

// Entry pairs a fingerprint with its claim.
type Entry struct {
	Fingerprint Fingerprint
	Claim       Claim
}

// Config holds the registry tunables, fixed at construction.
type Config struct {
	// MaxBytesInHash bounds the fingerprint length. Must be positive.
	MaxBytesInHash uint32
}

// Registry owns the fingerprint to claim mapping.
//
// Not safe for concurrent use: the host must serialize calls.
type Registry struct {
	cfg    Config
	seq    SequenceSource
	sink   EventSink
	proofs map[string]Claim
}

// New creates an empty registry. A nil sink discards events.
func New(cfg Config, seq SequenceSource, sink EventSink) (*Registry, error) {
	if cfg.MaxBytesInHash == 0 {
		return nil, errors.New("registry: MaxBytesInHash must be positive")
	}
	if seq == nil {
		return nil, errors.New("registry: sequence source is required")
	}
	if sink == nil {
		sink = Discard
	}
	return &Registry{
		cfg:    cfg,
		seq:    seq,
		sink:   sink,
		proofs: make(map[string]Claim),
	}, nil
}

// Config returns the registry configuration.
func (r *Registry) Config() Config {
	return r.cfg
}

// Fingerprint builds a fingerprint bounded by this registry's MaxBytesInHash.
func (r *Registry) Fingerprint(b []byte) (Fingerprint, error) {
	return NewFingerprint(b, r.cfg.MaxBytesInHash)
}

// Create claims fp for caller at the current sequence number.
func (r *Registry) Create(caller Identity, fp Fingerprint) error {
	if err := r.checkBound(fp); err != nil {
		return err
	}
	if _, ok := r.proofs[fp.b]; ok {
		return &Error{Code: CodeProofAlreadyClaimed, Fingerprint: fp, Caller: caller}
	}

	r.proofs[fp.b] = Claim{Owner: caller, RegisteredAt: r.seq.Current()}
	r.sink.Deposit(Event{Kind: ClaimCreated, Caller: caller, Fingerprint: fp})
	return nil
}

// Transfer hands the claim on fp from caller to receiver and restamps it with
// the current sequence number. The entry is updated in place.
func (r *Registry) Transfer(caller, receiver Identity, fp Fingerprint) error {
	if err := r.checkOwner(caller, fp); err != nil {
		return err
	}

	claim := r.proofs[fp.b]
	claim.Owner = receiver
	claim.RegisteredAt = r.seq.Current()
	r.proofs[fp.b] = claim

	r.sink.Deposit(Event{Kind: ClaimTransferred, Caller: caller, Receiver: receiver, Fingerprint: fp})
	return nil
}

// Revoke removes caller's claim on fp. The fingerprint becomes claimable again.
func (r *Registry) Revoke(caller Identity, fp Fingerprint) error {
	if err := r.checkOwner(caller, fp); err != nil {
		return err
	}

	delete(r.proofs, fp.b)
	r.sink.Deposit(Event{Kind: ClaimRevoked, Caller: caller, Fingerprint: fp})
	return nil
}

// Lookup returns the active claim on fp, if any.
func (r *Registry) Lookup(fp Fingerprint) (Claim, bool) {
	claim, ok := r.proofs[fp.b]
	return claim, ok
}

// Len returns the number of active claims.
func (r *Registry) Len() int {
	return len(r.proofs)
}

// Claims returns a snapshot of all active claims ordered by fingerprint bytes.
func (r *Registry) Claims() []Entry {
	entries := make([]Entry, 0, len(r.proofs))
	for k, claim := range r.proofs {
		entries = append(entries, Entry{Fingerprint: Fingerprint{b: k}, Claim: claim})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return a.Fingerprint.Compare(b.Fingerprint)
	})
	return entries
}

func (r *Registry) checkBound(fp Fingerprint) error {
	if uint64(fp.Len()) > uint64(r.cfg.MaxBytesInHash) {
		return &Error{
			Code:        CodeFingerprintTooLong,
			Fingerprint: fp,
			Length:      fp.Len(),
			Max:         r.cfg.MaxBytesInHash,
		}
	}
	return nil
}

func (r *Registry) checkOwner(caller Identity, fp Fingerprint) error {
	if err := r.checkBound(fp); err != nil {
		return err
	}
	claim, ok := r.proofs[fp.b]
	if !ok {
		return &Error{Code: CodeNoSuchProof, Fingerprint: fp, Caller: caller}
	}
	if claim.Owner != caller {
		return &Error{Code: CodeNotProofOwner, Fingerprint: fp, Caller: caller}
	}
	return nil
}
