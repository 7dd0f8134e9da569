package trie

import (
	"bytes"
	"errors"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/crypto"
)

// ErrKeyNotInTrie is returned by Builder.Prove for a key that was never
// inserted.
var ErrKeyNotInTrie = errors.New("trie: key not in trie")

// Builder assembles a trie from key/value pairs and produces its root and
// proofs in the node format VerifyProof reads. Values are always stored
// inline. It is safe for concurrent use.
type Builder struct {
	mu      sync.Mutex
	alg     crypto.HashAlgorithm
	hash    crypto.HashFunc
	entries map[string][]byte

	// Cached result of the last build; reset by Put.
	root  *types.Hash
	nodes map[types.Hash][]byte
}

// NewBuilder returns an empty builder hashing with alg.
func NewBuilder(alg crypto.HashAlgorithm) (*Builder, error) {
	hash, err := alg.Func()
	if err != nil {
		return nil, err
	}
	return &Builder{alg: alg, hash: hash, entries: make(map[string][]byte)}, nil
}

// Put inserts or replaces the value under key. An empty value is stored
// as such, not treated as a deletion.
func (b *Builder) Put(key, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[string(key)] = bytes.Clone(value)
	b.root = nil
}

// Root returns the trie root hash.
func (b *Builder) Root() types.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.build()
}

// Prove returns the proof nodes for key: every hashed node on the path from
// the root to the key, root first. The proof of an absent key shows where
// the path ends.
func (b *Builder) Prove(key []byte) ([][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	root := b.build()
	var proof [][]byte
	_, _, err := lookup(b, root, key, func(n []byte) { proof = append(proof, n) })
	if err != nil {
		return nil, err
	}
	return proof, nil
}

// ProveExisting is Prove for a key that must be present.
func (b *Builder) ProveExisting(key []byte) ([][]byte, error) {
	b.mu.Lock()
	_, ok := b.entries[string(key)]
	b.mu.Unlock()
	if !ok {
		return nil, ErrKeyNotInTrie
	}
	return b.Prove(key)
}

// StateProof builds a complete single-key state proof for key.
func (b *Builder) StateProof(key []byte, timestamp, height uint64) (*types.StateProof, error) {
	proof, err := b.Prove(key)
	if err != nil {
		return nil, err
	}
	raw, err := EncodeProofBlob(b.alg, proof)
	if err != nil {
		return nil, err
	}
	return &types.StateProof{
		Keys:  []hexutil.Bytes{bytes.Clone(key)},
		Root:  types.StateCommitment{Timestamp: timestamp, StateRoot: b.Root()},
		Proof: types.Proof{Height: height, Raw: raw},
	}, nil
}

// Node implements NodeReader over the built trie. The caller must hold b.mu.
func (b *Builder) Node(hash types.Hash) ([]byte, error) {
	n, ok := b.nodes[hash]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return n, nil
}

type entry struct {
	nibbles []byte
	value   []byte
}

// build encodes the whole trie and caches root and nodes. The caller must
// hold b.mu.
func (b *Builder) build() types.Hash {
	if b.root != nil {
		return *b.root
	}
	entries := make([]entry, 0, len(b.entries))
	for k, v := range b.entries {
		entries = append(entries, entry{nibbles: keyToNibbles([]byte(k)), value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].nibbles, entries[j].nibbles) < 0
	})

	b.nodes = make(map[types.Hash][]byte)
	var enc []byte
	if len(entries) == 0 {
		enc = []byte{emptyTrie}
	} else {
		enc = b.encodeNode(entries, 0)
	}
	// The root is stored by hash whatever its size.
	root := b.hash(enc)
	b.nodes[root] = enc
	b.root = &root
	return root
}

// encodeNode encodes the subtrie holding entries, all of which share their
// first depth nibbles. entries is sorted and non-empty.
func (b *Builder) encodeNode(entries []entry, depth int) []byte {
	if len(entries) == 1 {
		return encodeLeaf(entries[0].nibbles[depth:], entries[0].value)
	}

	first := entries[0].nibbles[depth:]
	last := entries[len(entries)-1].nibbles[depth:]
	common := prefixLen(first, last)
	partial := first[:common]
	depth += common

	var (
		value    []byte
		hasValue bool
		children [childCount][]byte
	)
	if len(entries[0].nibbles) == depth {
		// Sorted order puts the key ending here first.
		value, hasValue = entries[0].value, true
		entries = entries[1:]
	}
	for len(entries) > 0 {
		nib := entries[0].nibbles[depth]
		end := 1
		for end < len(entries) && entries[end].nibbles[depth] == nib {
			end++
		}
		children[nib] = b.childRef(b.encodeNode(entries[:end], depth+1))
		entries = entries[end:]
	}
	return encodeBranch(partial, value, hasValue, &children)
}

// childRef returns the reference a parent stores for an encoded child:
// the node itself when shorter than a hash, otherwise its hash.
func (b *Builder) childRef(enc []byte) []byte {
	if len(enc) < inlineThreshold {
		return enc
	}
	h := b.hash(enc)
	b.nodes[h] = enc
	return h.Bytes()
}
