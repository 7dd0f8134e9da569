package commitreveal

import (
	"github.com/tispark/tispark/core/types"
)

// Seal runs Setup and Commit and returns the resulting commitment. The
// derived key is dropped before returning.
func (c *Codec) Seal(secret []byte, ctx Context, plaintext []byte, bounds types.Bounds) (*types.Commitment, error) {
	m, err := c.Setup(secret, ctx)
	if err != nil {
		return nil, err
	}
	ct, iv, err := c.Commit(m.Key, m.IVSeed, plaintext)
	if err != nil {
		return nil, err
	}
	return types.NewCommitment(m.CommitID, ct, iv, ctx.Metadata, bounds)
}

// Open re-derives the key of commitment cm from secret and decrypts it.
func (c *Codec) Open(secret []byte, cm *types.Commitment) ([]byte, error) {
	key, err := c.Reveal(secret, cm.ID)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(key, cm.IV, cm.Ciphertext)
}

// NewRevealProof derives the key of commitment id and packages it as a
// proof that anyone can use to open the commitment.
func (c *Codec) NewRevealProof(secret []byte, id types.Hash) (*types.RevealProof, error) {
	key, err := c.Reveal(secret, id)
	if err != nil {
		return nil, err
	}
	return &types.RevealProof{CommitID: id, Secret: key}, nil
}

// OpenWithProof checks the proof's key length before any cryptographic work,
// then decrypts cm with the derived key carried by the proof.
func (c *Codec) OpenWithProof(proof *types.RevealProof, cm *types.Commitment) ([]byte, error) {
	if err := proof.CheckKeyLength(KeySize); err != nil {
		return nil, err
	}
	if proof.CommitID != cm.ID {
		return nil, ErrDecryptionRejected
	}
	return c.Decrypt(proof.Secret, cm.IV, cm.Ciphertext)
}
