package store

import (
	"sync"

	"github.com/tispark/tispark/core/types"
)

// MemoryStore is a CommitmentStore held in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[types.Hash]*types.Commitment
	closed  bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[types.Hash]*types.Commitment)}
}

// Insert implements CommitmentStore.
func (s *MemoryStore) Insert(c *types.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.entries[c.ID]; ok {
		return ErrAlreadyCommitted
	}
	s.entries[c.ID] = clone(c)
	return nil
}

// Get implements CommitmentStore.
func (s *MemoryStore) Get(id types.Hash) (*types.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	c, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

// Reveal implements CommitmentStore.
func (s *MemoryStore) Reveal(id types.Hash, key []byte) (*types.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	c, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated, err := c.WithRevealedKey(key)
	if err != nil {
		return nil, err
	}
	s.entries[id] = updated
	return clone(updated), nil
}

// Len returns the number of stored commitments.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close implements CommitmentStore.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
