package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tispark/tispark/scale"
)

// Commitment lifecycle errors.
var (
	ErrAlreadyCommitted = errors.New("commitment: already committed")
	ErrAlreadyRevealed  = errors.New("commitment: already revealed")
	ErrKeyLength        = errors.New("commitment: secret has wrong key length")
	ErrInvalidBounds    = errors.New("commitment: invalid bounds")
)

// Bounds are the configured maximum sizes of commitment fields.
type Bounds struct {
	KeySize       int `yaml:"key_size" json:"key_size"`
	IVLen         int `yaml:"iv_len" json:"iv_len"`
	MaxCiphertext int `yaml:"max_ciphertext" json:"max_ciphertext"`
	MaxMetadata   int `yaml:"max_metadata" json:"max_metadata"`
}

// DefaultBounds returns the bounds used by the AES-256-GCM codec.
func DefaultBounds() Bounds {
	return Bounds{
		KeySize:       32,
		IVLen:         12,
		MaxCiphertext: 4096,
		MaxMetadata:   1024,
	}
}

// Validate checks that every bound is positive.
func (b Bounds) Validate() error {
	if b.KeySize <= 0 || b.IVLen <= 0 || b.MaxCiphertext <= 0 || b.MaxMetadata <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidBounds, b)
	}
	return nil
}

// Commitment is the encrypted, identifier-bound record produced by a commit.
// RevealedKey is empty until the commitment is revealed and never changes
// afterwards.
type Commitment struct {
	ID          Hash          `json:"id"`
	Ciphertext  hexutil.Bytes `json:"ciphertext"`
	IV          hexutil.Bytes `json:"iv"`
	Metadata    hexutil.Bytes `json:"metadata"`
	RevealedKey hexutil.Bytes `json:"revealed_key,omitempty"`
}

// NewCommitment builds a commitment with no revealed key, validating every
// field against bounds.
func NewCommitment(id Hash, ciphertext, iv, metadata []byte, bounds Bounds) (*Commitment, error) {
	c := &Commitment{
		ID:         id,
		Ciphertext: append([]byte(nil), ciphertext...),
		IV:         append([]byte(nil), iv...),
		Metadata:   append([]byte(nil), metadata...),
	}
	if err := c.Validate(bounds); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field lengths against bounds.
func (c *Commitment) Validate(bounds Bounds) error {
	if err := CheckBound("ciphertext", c.Ciphertext, bounds.MaxCiphertext); err != nil {
		return err
	}
	if err := CheckBound("iv", c.IV, bounds.IVLen); err != nil {
		return err
	}
	if err := CheckBound("metadata", c.Metadata, bounds.MaxMetadata); err != nil {
		return err
	}
	return CheckBound("revealed_key", c.RevealedKey, bounds.KeySize)
}

// HasRevealedKey reports whether the commitment was already revealed.
func (c *Commitment) HasRevealedKey() bool { return len(c.RevealedKey) > 0 }

// WithRevealedKey returns a copy of c carrying key. It fails with
// ErrAlreadyRevealed if c already has a key.
func (c *Commitment) WithRevealedKey(key []byte) (*Commitment, error) {
	if c.HasRevealedKey() {
		return nil, ErrAlreadyRevealed
	}
	if len(key) == 0 {
		return nil, ErrKeyLength
	}
	cpy := *c
	cpy.RevealedKey = append([]byte(nil), key...)
	return &cpy, nil
}

// Record is the value a commitment is stored under on the remote chain.
// The commitment id is the storage key and is not repeated here.
type Record struct {
	Ciphertext  []byte
	Metadata    []byte
	IV          []byte
	RevealedKey []byte
}

// EncodeRecord returns the remote-chain encoding of c.
func (c *Commitment) EncodeRecord() ([]byte, error) {
	return scale.EncodeToBytes(Record{
		Ciphertext:  c.Ciphertext,
		Metadata:    c.Metadata,
		IV:          c.IV,
		RevealedKey: c.RevealedKey,
	})
}

// DecodeCommitmentRecord decodes a remote-chain record stored under id and
// validates it against bounds.
func DecodeCommitmentRecord(id Hash, b []byte, bounds Bounds) (*Commitment, error) {
	var rec Record
	if err := scale.DecodeBytes(b, &rec); err != nil {
		return nil, fmt.Errorf("commitment: decode record: %w", err)
	}
	c := &Commitment{
		ID:          id,
		Ciphertext:  rec.Ciphertext,
		IV:          rec.IV,
		Metadata:    rec.Metadata,
		RevealedKey: rec.RevealedKey,
	}
	if err := c.Validate(bounds); err != nil {
		return nil, err
	}
	return c, nil
}

// RevealProof carries the secret needed to open a commitment.
type RevealProof struct {
	CommitID Hash          `json:"commit_id"`
	Secret   hexutil.Bytes `json:"secret"`
}

// CheckKeyLength rejects a proof whose secret is not exactly keySize bytes.
func (p *RevealProof) CheckKeyLength(keySize int) error {
	if len(p.Secret) != keySize {
		return fmt.Errorf("%w: got %d, want %d", ErrKeyLength, len(p.Secret), keySize)
	}
	return nil
}
