// Package types defines the wire contracts shared by the commit-reveal core:
// commitments, reveal proofs, consensus proofs and state proofs.
package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// HashLength is the size of every hash handled by the core.
	HashLength = 32

	// PublicKeyLength is the size of an ed25519 authority public key.
	PublicKeyLength = 32

	// SignatureLength is the size of an ed25519 authority signature.
	SignatureLength = 64
)

// Hash is a 32-byte digest (block hash, state root, commitment id).
type Hash [HashLength]byte

// PublicKey is a raw ed25519 authority public key.
type PublicKey [PublicKeyLength]byte

// Signature is a raw ed25519 signature.
type Signature [SignatureLength]byte

// BytesToHash converts bytes to Hash, left-padding if shorter than 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash converts a hex string, with or without 0x prefix, to a Hash.
// Decoding errors yield the zero hash.
func HexToHash(s string) Hash {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return Hash{}
	}
	return BytesToHash(b)
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the hex string representation of the hash.
func (h Hash) Hex() string { return hexutil.Encode(h[:]) }

// SetBytes sets the hash from a byte slice, left-padding if necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// IsZero returns whether the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler. The input must be
// exactly 32 bytes of 0x-prefixed hex.
func (h *Hash) UnmarshalText(input []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(input); err != nil {
		return err
	}
	if len(b) != HashLength {
		return fmt.Errorf("types: hash must be %d bytes, got %d", HashLength, len(b))
	}
	copy(h[:], b)
	return nil
}

// PublicKeyFromBytes converts a raw 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeyLength {
		return pk, fmt.Errorf("types: public key must be %d bytes, got %d", PublicKeyLength, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// Hex returns the 0x-prefixed hex form of the key.
func (pk PublicKey) Hex() string { return hexutil.Encode(pk[:]) }

// String implements fmt.Stringer.
func (pk PublicKey) String() string { return pk.Hex() }

// IsZero reports whether the key is unset.
func (pk PublicKey) IsZero() bool { return pk == PublicKey{} }

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return hexutil.Bytes(pk[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *PublicKey) UnmarshalText(input []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(input); err != nil {
		return err
	}
	parsed, err := PublicKeyFromBytes(b)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
