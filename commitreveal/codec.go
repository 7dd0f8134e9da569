// Package commitreveal implements the stateless commit-reveal scheme: a
// per-commitment key is derived with HKDF-SHA256 from a long-term secret and
// the commitment id, and the payload is sealed with AES-256-GCM. The key is
// never stored; Reveal re-derives it on demand.
package commitreveal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/crypto"
	"github.com/tispark/tispark/scale"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is the GCM nonce length.
	NonceSize = 12
	// EntropySize is the number of random bytes mixed into a commit id.
	EntropySize = 32
	// KeyLabel is the HKDF info string separating commitment keys from any
	// other use of the secret.
	KeyLabel = "aesgcm256-commitkey"
)

var (
	ErrEncryption         = errors.New("commitreveal: encryption failed")
	ErrDecryptionRejected = errors.New("commitreveal: decryption rejected")
	ErrKeyDerivation      = errors.New("commitreveal: key derivation failed")
	ErrEntropy            = errors.New("commitreveal: entropy source failed")
	ErrEmptySecret        = errors.New("commitreveal: empty secret")
)

// Context is the caller-supplied input to Setup.
type Context struct {
	Height    uint32
	Timestamp uint64
	Metadata  []byte
}

// ivSeed is the canonical encoding of the height/timestamp pair.
type ivSeed struct {
	Height    uint32
	Timestamp uint64
}

// commitPreimage is hashed into the commitment id.
type commitPreimage struct {
	Height    uint32
	Timestamp uint64
	Metadata  []byte
	Entropy   [EntropySize]byte
}

// SetupMaterial is the result of Setup. Key is secret and must not be
// persisted.
type SetupMaterial struct {
	CommitID types.Hash
	Key      []byte
	IVSeed   []byte
}

// Codec derives keys and seals payloads. The only state it holds is the
// randomness source used by Setup; all other methods are pure.
type Codec struct {
	rand io.Reader
}

// NewCodec returns a Codec drawing entropy from r. A nil r uses
// crypto/rand.
func NewCodec(r io.Reader) *Codec {
	if r == nil {
		r = rand.Reader
	}
	return &Codec{rand: r}
}

// Setup draws fresh entropy, hashes it with ctx into a commit id and derives
// the commitment key from secret.
func (c *Codec) Setup(secret []byte, ctx Context) (*SetupMaterial, error) {
	pre := commitPreimage{
		Height:    ctx.Height,
		Timestamp: ctx.Timestamp,
		Metadata:  ctx.Metadata,
	}
	if _, err := io.ReadFull(c.rand, pre.Entropy[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	enc, err := scale.EncodeToBytes(pre)
	if err != nil {
		return nil, err
	}
	id := crypto.Blake2b256Hash(enc)

	key, err := c.Reveal(secret, id)
	if err != nil {
		return nil, err
	}
	seed, err := EncodeIVSeed(ctx.Height, ctx.Timestamp)
	if err != nil {
		return nil, err
	}
	return &SetupMaterial{CommitID: id, Key: key, IVSeed: seed}, nil
}

// EncodeIVSeed returns the 12-byte encoding of {height u32, timestamp u64}.
func EncodeIVSeed(height uint32, timestamp uint64) ([]byte, error) {
	return scale.EncodeToBytes(ivSeed{Height: height, Timestamp: timestamp})
}

// ExpandIV turns an IV seed into a full-width GCM nonce, zero padding or
// truncating as needed.
func ExpandIV(seed []byte) []byte {
	iv := make([]byte, NonceSize)
	copy(iv, seed)
	return iv
}

// Reveal re-derives the commitment key for id. It is deterministic.
func (c *Codec) Reveal(secret []byte, id types.Hash) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	kdf := hkdf.New(sha256.New, secret, id[:], []byte(KeyLabel))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	return key, nil
}

// Commit seals plaintext under key with the nonce expanded from seed and
// returns the ciphertext and the realized nonce.
func (c *Codec) Commit(key, seed, plaintext []byte) (ciphertext, iv []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	iv = ExpandIV(seed)
	return aead.Seal(nil, iv, plaintext, nil), iv, nil
}

// Decrypt opens ciphertext. Any failure, including a wrong-size key or
// nonce, yields ErrDecryptionRejected and no plaintext.
func (c *Codec) Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != NonceSize {
		return nil, ErrDecryptionRejected
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, ErrDecryptionRejected
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionRejected
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
