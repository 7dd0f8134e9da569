// Package finality verifies that a remote block was finalized by the
// installed authority set. It rebuilds the block hash from header fields,
// decodes the finality justification, checks the caller-supplied authority
// roster against the trusted one and verifies the committee multisignature
// (with a quorum threshold) or the emergency signature.
package finality

import "errors"

var (
	ErrInvalidSignature      = errors.New("finality: invalid signature")
	ErrMissingAuthorityKey   = errors.New("finality: missing authority key")
	ErrUntrustedAuthorities  = errors.New("finality: untrusted authorities")
	ErrInvalidConsensusProof = errors.New("finality: invalid consensus proof")
	ErrQuorumNotReached      = errors.New("finality: quorum not reached")
	ErrDuplicateSignature    = errors.New("finality: duplicate signature index")
	ErrNoEmergencyKey        = errors.New("finality: no emergency key installed")
	ErrEmptyAuthoritySet     = errors.New("finality: empty authority set")
	ErrUnknownVersion        = errors.New("finality: unknown justification version")
)
