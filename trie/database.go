package trie

import (
	"errors"
	"fmt"

	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/crypto"
)

var (
	ErrNodeNotFound = errors.New("trie: node not found in database")
)

// NodeReader retrieves trie nodes by hash.
type NodeReader interface {
	// Node retrieves the encoded trie node with the given hash.
	Node(hash types.Hash) ([]byte, error)
}

// MemoryDB is a read-only node store built from a list of proof nodes,
// keyed by the hash of each node under the trie's hash function.
type MemoryDB struct {
	nodes map[types.Hash][]byte
}

// NewMemoryDB hashes every node with hash and indexes it.
func NewMemoryDB(hash crypto.HashFunc, nodes [][]byte) *MemoryDB {
	db := &MemoryDB{nodes: make(map[types.Hash][]byte, len(nodes))}
	for _, n := range nodes {
		db.nodes[hash(n)] = n
	}
	return db
}

// Node returns the node stored under hash.
func (db *MemoryDB) Node(hash types.Hash) ([]byte, error) {
	n, ok := db.nodes[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, hash)
	}
	return n, nil
}

// Len returns the number of distinct nodes.
func (db *MemoryDB) Len() int { return len(db.nodes) }
