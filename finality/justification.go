package finality

import (
	"fmt"
	"math"

	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/scale"
)

// Justification versions.
const (
	VersionV1      uint16 = 1
	VersionV2      uint16 = 2
	VersionV3      uint16 = 3
	CurrentVersion        = VersionV3
)

// Kind selects the variant of a Justification.
type Kind uint8

const (
	KindCommittee Kind = 0
	KindEmergency Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindCommittee:
		return "committee"
	case KindEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// SignatureSet holds at most one signature per authority; the position is
// the authority index and a nil entry means that authority did not sign.
type SignatureSet []*types.Signature

// IndexedSignature is a signature tagged with its authority index.
type IndexedSignature struct {
	Index     int
	Signature types.Signature
}

// Indexed returns the present signatures in index order.
func (s SignatureSet) Indexed() []IndexedSignature {
	out := make([]IndexedSignature, 0, len(s))
	for i, sig := range s {
		if sig != nil {
			out = append(out, IndexedSignature{Index: i, Signature: *sig})
		}
	}
	return out
}

// NewSignatureSet builds a set of the given size from indexed signatures.
func NewSignatureSet(size int, sigs ...IndexedSignature) (SignatureSet, error) {
	set := make(SignatureSet, size)
	for _, s := range sigs {
		if s.Index < 0 || s.Index >= size {
			return nil, fmt.Errorf("%w: index %d, size %d", ErrMissingAuthorityKey, s.Index, size)
		}
		if set[s.Index] != nil {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateSignature, s.Index)
		}
		sig := s.Signature
		set[s.Index] = &sig
	}
	return set, nil
}

// Justification is a finality proof: either a committee multisignature or
// a single emergency signature. Exactly one variant is set.
type Justification struct {
	Kind      Kind
	Committee SignatureSet
	Emergency types.Signature
}

// MarshalSCALE encodes the current (version 3) payload.
func (j Justification) MarshalSCALE(w *scale.Writer) error {
	switch j.Kind {
	case KindCommittee:
		w.PutU8(uint8(KindCommittee))
		enc, err := scale.EncodeToBytes(j.Committee)
		if err != nil {
			return err
		}
		w.PutRaw(enc)
	case KindEmergency:
		w.PutU8(uint8(KindEmergency))
		w.PutRaw(j.Emergency[:])
	default:
		return fmt.Errorf("%w: %s", ErrInvalidConsensusProof, j.Kind)
	}
	return nil
}

// UnmarshalSCALE decodes a version 3 payload.
func (j *Justification) UnmarshalSCALE(r *scale.Reader) error {
	tag, err := r.U8()
	if err != nil {
		return err
	}
	switch Kind(tag) {
	case KindCommittee:
		j.Kind = KindCommittee
		return r.Decode(&j.Committee)
	case KindEmergency:
		j.Kind = KindEmergency
		b, err := r.Raw(types.SignatureLength)
		if err != nil {
			return err
		}
		copy(j.Emergency[:], b)
		return nil
	default:
		return fmt.Errorf("%w: variant %d", ErrInvalidConsensusProof, tag)
	}
}

// signatureV1 is the version 1 signature entry; its index duplicates the
// entry position and is ignored.
type signatureV1 struct {
	ID  uint64
	Sgn types.Signature
}

// EncodeJustification returns the versioned (version 3) encoding of j.
func EncodeJustification(j *Justification) ([]byte, error) {
	payload, err := scale.EncodeToBytes(*j)
	if err != nil {
		return nil, err
	}
	if len(payload) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrInvalidConsensusProof, len(payload))
	}
	w := scale.NewWriter()
	w.PutU16(CurrentVersion)
	w.PutU16(uint16(len(payload)))
	w.PutRaw(payload)
	return w.Bytes(), nil
}

// DecodeJustification decodes a versioned justification. Input that is not
// a valid versioned envelope is retried as an unversioned version 1
// payload. All failures wrap ErrInvalidConsensusProof.
func DecodeJustification(raw []byte) (*Justification, error) {
	j, err := decodeVersioned(raw)
	if err == nil {
		return j, nil
	}
	if legacy, lerr := decodeV1(raw); lerr == nil {
		return legacy, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidConsensusProof, err)
}

func decodeVersioned(raw []byte) (*Justification, error) {
	r := scale.NewReader(raw)
	version, err := r.U16()
	if err != nil {
		return nil, err
	}
	size, err := r.U16()
	if err != nil {
		return nil, err
	}
	if int(size) != r.Remaining() {
		return nil, fmt.Errorf("payload size %d, have %d", size, r.Remaining())
	}
	payload, _ := r.Raw(int(size))

	switch version {
	case VersionV1:
		return decodeV1(payload)
	case VersionV2:
		var set SignatureSet
		if err := scale.DecodeBytes(payload, &set); err != nil {
			return nil, err
		}
		return &Justification{Kind: KindCommittee, Committee: set}, nil
	case VersionV3:
		var j Justification
		if err := scale.DecodeBytes(payload, &j); err != nil {
			return nil, err
		}
		return &j, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
}

func decodeV1(payload []byte) (*Justification, error) {
	var entries []*signatureV1
	if err := scale.DecodeBytes(payload, &entries); err != nil {
		return nil, err
	}
	set := make(SignatureSet, len(entries))
	for i, e := range entries {
		if e != nil {
			sig := e.Sgn
			set[i] = &sig
		}
	}
	return &Justification{Kind: KindCommittee, Committee: set}, nil
}
