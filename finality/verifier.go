package finality

import (
	"fmt"
	"sync/atomic"

	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/crypto"
	"github.com/tispark/tispark/log"
	"github.com/tispark/tispark/metrics"
)

// Stage is the progress of a single proof verification.
type Stage uint8

const (
	StageNotInit Stage = iota
	StageAuthoritySetBound
	StageProofAttached
	StageVerified
	StageRejected
)

func (s Stage) String() string {
	switch s {
	case StageNotInit:
		return "not_init"
	case StageAuthoritySetBound:
		return "authority_set_bound"
	case StageProofAttached:
		return "proof_attached"
	case StageVerified:
		return "verified"
	case StageRejected:
		return "rejected"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// QuorumThreshold returns the minimum number of signatures out of n that
// finalizes a block: the smallest s with 3s > 2n.
func QuorumThreshold(n int) int {
	return 2*n/3 + 1
}

// Certificate describes a block whose finality was verified.
type Certificate struct {
	BlockHash types.Hash
	Block     uint32
	StateRoot types.Hash
	Kind      Kind
	Signers   []int
}

// Verifier verifies consensus proofs against the installed authority set.
// The set is held behind an atomic pointer: Rotate swaps it in one step and
// each verification works on the snapshot it loaded first. A Verifier is
// safe for concurrent use.
type Verifier struct {
	set   atomic.Pointer[AuthoritySet]
	cache *crypto.SignatureCache
	log   *log.Logger
}

// NewVerifier creates a Verifier with set installed. cache may be nil.
func NewVerifier(set *AuthoritySet, cache *crypto.SignatureCache) (*Verifier, error) {
	if set == nil || set.Len() == 0 {
		return nil, ErrEmptyAuthoritySet
	}
	v := &Verifier{cache: cache, log: log.Default().Module("finality")}
	v.set.Store(set)
	metrics.AuthoritySetSize.Set(int64(set.Len()))
	return v, nil
}

// SetLogger replaces the verifier's logger.
func (v *Verifier) SetLogger(l *log.Logger) {
	if l != nil {
		v.log = l
	}
}

// Rotate installs a new authority set.
func (v *Verifier) Rotate(set *AuthoritySet) error {
	if set == nil || set.Len() == 0 {
		return ErrEmptyAuthoritySet
	}
	old := v.set.Swap(set)
	metrics.AuthorityRotations.Inc()
	metrics.AuthoritySetSize.Set(int64(set.Len()))
	v.log.Info("authority set rotated", "old", old.Len(), "new", set.Len())
	return nil
}

// AuthoritySet returns the installed set.
func (v *Verifier) AuthoritySet() *AuthoritySet {
	return v.set.Load()
}

// VerifyCommittee checks every signature of sigs over hash against the
// authority at its index and returns the verified indices. It does not
// check the quorum.
func (v *Verifier) VerifyCommittee(hash types.Hash, sigs []IndexedSignature, authorities []types.PublicKey) ([]int, error) {
	seen := make(map[int]struct{}, len(sigs))
	indices := make([]int, 0, len(sigs))
	for _, s := range sigs {
		if s.Index < 0 || s.Index >= len(authorities) {
			return nil, fmt.Errorf("%w: index %d", ErrMissingAuthorityKey, s.Index)
		}
		if _, dup := seen[s.Index]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateSignature, s.Index)
		}
		if !v.cache.Verify(authorities[s.Index], hash[:], s.Signature) {
			return nil, fmt.Errorf("%w: authority %d", ErrInvalidSignature, s.Index)
		}
		seen[s.Index] = struct{}{}
		indices = append(indices, s.Index)
	}
	return indices, nil
}

// VerifyEmergency reports whether sig is the emergency signer's signature
// over hash.
func (v *Verifier) VerifyEmergency(hash types.Hash, sig types.Signature, emergency types.PublicKey) bool {
	return v.cache.Verify(emergency, hash[:], sig)
}

// VerifyProof checks that proof's block was finalized by the installed
// authority set, either by a quorum of committee signatures or by the
// emergency signer.
func (v *Verifier) VerifyProof(proof *types.ConsensusProof) (*Certificate, error) {
	set := v.set.Load()
	stage := StageNotInit
	reject := func(err error) (*Certificate, error) {
		v.log.Debug("consensus proof rejected", "block", proof.State.Block, "stage", stage, "err", err)
		return nil, err
	}

	view, err := SetupAuthorityView(set.authorities, proof.UntrustedAuthorities, set.emergency)
	if err != nil {
		return reject(err)
	}
	stage = StageAuthoritySetBound

	j, err := DecodeJustification(proof.Justification)
	if err != nil {
		return reject(err)
	}
	hash := BuildConsensusHash(&proof.State)
	stage = StageProofAttached

	cert := &Certificate{
		BlockHash: hash,
		Block:     proof.State.Block,
		StateRoot: proof.State.StateRoot,
		Kind:      j.Kind,
	}
	switch j.Kind {
	case KindCommittee:
		signers, err := v.VerifyCommittee(hash, j.Committee.Indexed(), view.Authorities)
		if err != nil {
			return reject(err)
		}
		if need := QuorumThreshold(len(view.Authorities)); len(signers) < need {
			return reject(fmt.Errorf("%w: %d of %d, need %d", ErrQuorumNotReached, len(signers), len(view.Authorities), need))
		}
		cert.Signers = signers
	case KindEmergency:
		if view.Emergency == nil {
			return reject(ErrNoEmergencyKey)
		}
		if !v.VerifyEmergency(hash, j.Emergency, *view.Emergency) {
			return reject(fmt.Errorf("%w: emergency signer", ErrInvalidSignature))
		}
	default:
		return reject(fmt.Errorf("%w: %s", ErrInvalidConsensusProof, j.Kind))
	}

	stage = StageVerified
	metrics.ConsensusVerified.Inc()
	v.log.Debug("consensus proof verified", "block", cert.Block, "hash", cert.BlockHash, "kind", cert.Kind, "stage", stage)
	return cert, nil
}
