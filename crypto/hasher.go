package crypto

import (
	"errors"
	"fmt"

	"github.com/tispark/tispark/core/types"
)

// ErrUnknownHashAlgorithm is returned for an unsupported algorithm tag.
var ErrUnknownHashAlgorithm = errors.New("crypto: unknown hash algorithm")

// HashAlgorithm selects the hash function of a trie. The numeric values are
// the tags used in encoded state proofs.
type HashAlgorithm uint8

const (
	Keccak HashAlgorithm = 0
	Blake2 HashAlgorithm = 1
)

// HashFunc hashes a single byte string into a 32-byte digest.
type HashFunc func(data ...[]byte) types.Hash

// String returns the algorithm name.
func (a HashAlgorithm) String() string {
	switch a {
	case Keccak:
		return "keccak256"
	case Blake2:
		return "blake2b256"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// Func returns the hash function for a, or ErrUnknownHashAlgorithm.
func (a HashAlgorithm) Func() (HashFunc, error) {
	switch a {
	case Keccak:
		return Keccak256Hash, nil
	case Blake2:
		return Blake2b256Hash, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownHashAlgorithm, uint8(a))
	}
}
