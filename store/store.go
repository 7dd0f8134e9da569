// Package store persists commitments. It enforces the lifecycle the
// stateless core cannot: a commitment id is inserted at most once and its
// revealed key moves from empty to set at most once.
package store

import (
	"errors"

	"github.com/tispark/tispark/core/types"
)

var (
	ErrNotFound         = errors.New("store: commitment not found")
	ErrClosed           = errors.New("store: closed")
	ErrAlreadyCommitted = types.ErrAlreadyCommitted
	ErrAlreadyRevealed  = types.ErrAlreadyRevealed
)

// CommitmentStore is a commitment repository keyed by commitment id.
// Implementations are safe for concurrent use.
type CommitmentStore interface {
	// Insert stores c if no commitment with its id exists, and fails with
	// ErrAlreadyCommitted otherwise.
	Insert(c *types.Commitment) error

	// Get returns the commitment stored under id or ErrNotFound.
	Get(id types.Hash) (*types.Commitment, error)

	// Reveal attaches key to the commitment under id if it has none yet and
	// returns the updated commitment. A second reveal fails with
	// ErrAlreadyRevealed and leaves the stored key unchanged.
	Reveal(id types.Hash, key []byte) (*types.Commitment, error)

	// Close releases the store's resources.
	Close() error
}

func clone(c *types.Commitment) *types.Commitment {
	cpy := *c
	cpy.Ciphertext = append([]byte(nil), c.Ciphertext...)
	cpy.IV = append([]byte(nil), c.IV...)
	cpy.Metadata = append([]byte(nil), c.Metadata...)
	if c.RevealedKey != nil {
		cpy.RevealedKey = append([]byte(nil), c.RevealedKey...)
	}
	return &cpy
}
