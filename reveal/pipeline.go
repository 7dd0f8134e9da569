// Package reveal decides whether a commitment may be opened. A reveal
// request carries a finality proof for a remote block and a storage proof
// against that block's state root; only when both hold is the commitment
// record taken from the proven storage value and decrypted.
package reveal

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tispark/tispark/commitreveal"
	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/finality"
	"github.com/tispark/tispark/log"
	"github.com/tispark/tispark/metrics"
	"github.com/tispark/tispark/trie"
)

// Stage is the progress of a reveal request.
type Stage uint8

const (
	StageRequested Stage = iota
	StageConsensusVerified
	StageStateVerified
	StageKeyDerived
	StageRevealed
	StageRejected
)

func (s Stage) String() string {
	switch s {
	case StageRequested:
		return "requested"
	case StageConsensusVerified:
		return "consensus_verified"
	case StageStateVerified:
		return "state_verified"
	case StageKeyDerived:
		return "key_derived"
	case StageRevealed:
		return "revealed"
	case StageRejected:
		return "rejected"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

var (
	ErrInvalidConsensusProof = errors.New("reveal: invalid consensus proof")
	ErrInvalidStateProof     = errors.New("reveal: invalid state proof")
	ErrDecryptionRejected    = commitreveal.ErrDecryptionRejected
	ErrRootMismatch          = errors.New("reveal: state root does not match finalized block")
	ErrStorageKeyMismatch    = errors.New("reveal: state proof key does not address the commitment")
)

// RejectedError reports a failed reveal. Stage is the last stage reached,
// Reason the class of failure (ErrInvalidConsensusProof,
// ErrInvalidStateProof, ErrDecryptionRejected or ErrAlreadyRevealed) and Err
// the underlying cause. errors.Is matches both Reason and Err.
type RejectedError struct {
	Stage  Stage
	Reason error
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("reveal rejected after %s: %v", e.Stage, e.Reason)
	}
	return fmt.Sprintf("reveal rejected after %s: %v: %v", e.Stage, e.Reason, e.Err)
}

func (e *RejectedError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// ConsensusVerifier certifies the finality of a remote block.
type ConsensusVerifier interface {
	VerifyProof(proof *types.ConsensusProof) (*finality.Certificate, error)
}

// StorageKeyFunc maps a commitment id to the storage key its record lives
// under on the remote chain.
type StorageKeyFunc func(id types.Hash) []byte

// Request is a single reveal request.
type Request struct {
	CommitID  types.Hash
	Consensus *types.ConsensusProof
	State     *types.StateProof
}

// Result is the outcome of a successful reveal.
type Result struct {
	Plaintext   []byte
	Key         []byte
	Commitment  *types.Commitment
	Certificate *finality.Certificate
}

// Pipeline runs reveal requests. It holds no mutable state of its own, so
// any number of requests may run concurrently.
type Pipeline struct {
	verifier   ConsensusVerifier
	codec      *commitreveal.Codec
	bounds     types.Bounds
	storageKey StorageKeyFunc
	log        *log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithStorageKey requires the state proof to ask for exactly the key fn
// returns for the commitment id.
func WithStorageKey(fn StorageKeyFunc) Option {
	return func(p *Pipeline) { p.storageKey = fn }
}

// New returns a Pipeline verifying consensus with verifier, decrypting with
// codec and validating records against bounds.
func New(verifier ConsensusVerifier, codec *commitreveal.Codec, bounds types.Bounds, opts ...Option) (*Pipeline, error) {
	if verifier == nil {
		return nil, errors.New("reveal: nil consensus verifier")
	}
	if codec == nil {
		codec = commitreveal.NewCodec(nil)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		verifier: verifier,
		codec:    codec,
		bounds:   bounds,
		log:      log.Default().Module("reveal"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Reveal returns the plaintext of commitment commitID if cp proves a block
// final and sp proves the commitment's record in that block's state.
func (p *Pipeline) Reveal(secret []byte, cp *types.ConsensusProof, sp *types.StateProof, commitID types.Hash) ([]byte, error) {
	res, err := p.Run(secret, &Request{CommitID: commitID, Consensus: cp, State: sp})
	if err != nil {
		return nil, err
	}
	return res.Plaintext, nil
}

// Run executes a reveal request and returns the full result. Every failure
// is a *RejectedError.
func (p *Pipeline) Run(secret []byte, req *Request) (*Result, error) {
	timer := metrics.NewTimer(metrics.RevealLatency)
	defer timer.Stop()
	metrics.RevealsRequested.Inc()

	if req == nil {
		return nil, &RejectedError{Stage: StageRequested, Reason: ErrInvalidConsensusProof, Err: errors.New("nil request")}
	}
	lg := p.log.With("commit", req.CommitID)
	stage := StageRequested
	reject := func(reason, cause error) (*Result, error) {
		metrics.RevealsRejected.With(stage.String()).Inc()
		lg.Debug("reveal rejected", "stage", stage, "reason", reason, "err", cause)
		return nil, &RejectedError{Stage: stage, Reason: reason, Err: cause}
	}

	if req.Consensus == nil {
		return reject(ErrInvalidConsensusProof, errors.New("missing consensus proof"))
	}
	cert, err := p.verifier.VerifyProof(req.Consensus)
	if err != nil {
		return reject(ErrInvalidConsensusProof, err)
	}
	stage = StageConsensusVerified

	if req.State == nil {
		return reject(ErrInvalidStateProof, errors.New("missing state proof"))
	}
	if req.State.Root.StateRoot != cert.StateRoot {
		return reject(ErrInvalidStateProof, fmt.Errorf("%w: proof %s, block %d has %s",
			ErrRootMismatch, req.State.Root.StateRoot, cert.Block, cert.StateRoot))
	}
	if err := trie.CheckSingleKey(req.State); err != nil {
		return reject(ErrInvalidStateProof, err)
	}
	if p.storageKey != nil && !bytes.Equal(req.State.Keys[0], p.storageKey(req.CommitID)) {
		return reject(ErrInvalidStateProof, ErrStorageKeyMismatch)
	}
	value, err := trie.ExtractSingleValue(req.State)
	if err != nil {
		return reject(ErrInvalidStateProof, err)
	}
	cm, err := types.DecodeCommitmentRecord(req.CommitID, value, p.bounds)
	if err != nil {
		return reject(ErrInvalidStateProof, err)
	}
	if cm.HasRevealedKey() {
		return reject(types.ErrAlreadyRevealed, nil)
	}
	stage = StageStateVerified

	key, err := p.codec.Reveal(secret, req.CommitID)
	if err != nil {
		return reject(ErrDecryptionRejected, err)
	}
	stage = StageKeyDerived

	plaintext, err := p.codec.Decrypt(key, cm.IV, cm.Ciphertext)
	if err != nil {
		return reject(ErrDecryptionRejected, err)
	}
	stage = StageRevealed

	metrics.RevealsAccepted.Inc()
	lg.Info("commitment revealed", "block", cert.Block, "kind", cert.Kind)
	return &Result{Plaintext: plaintext, Key: key, Commitment: cm, Certificate: cert}, nil
}
