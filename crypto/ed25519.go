package crypto

import (
	"crypto/ed25519"

	"github.com/tispark/tispark/core/types"
)

// VerifyEd25519 reports whether sig is a valid ed25519 signature of msg by
// pk. Malformed inputs verify as false.
func VerifyEd25519(pk types.PublicKey, msg []byte, sig types.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), msg, sig[:])
}

// Ed25519Signer signs with an ed25519 private key. It is used by tools and
// fixtures that produce finality proofs for local chains.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519SignerFromSeed derives a signer from a 32-byte seed.
func NewEd25519SignerFromSeed(seed [ed25519.SeedSize]byte) *Ed25519Signer {
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed[:])}
}

// PublicKey returns the signer's public key.
func (s *Ed25519Signer) PublicKey() types.PublicKey {
	var pk types.PublicKey
	copy(pk[:], s.priv.Public().(ed25519.PublicKey))
	return pk
}

// Sign signs msg.
func (s *Ed25519Signer) Sign(msg []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(s.priv, msg))
	return sig
}
