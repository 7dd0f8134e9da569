package trie

import (
	"fmt"

	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/crypto"
)

// maxLookupDepth bounds traversal; every step consumes at least one key
// nibble, so a well-formed lookup never comes close.
const maxLookupDepth = 2*maxKeyLength + 1

// maxKeyLength is the longest key a lookup accepts, in bytes.
const maxKeyLength = 1 << 12

// lookup walks the trie rooted at root looking for key. It returns the
// value and true, or nil and false when the trie provably does not contain
// the key. A node missing from db or failing to decode is an error. Every
// node fetched from db is passed to record when it is non-nil.
func lookup(db NodeReader, root types.Hash, key []byte, record func([]byte)) ([]byte, bool, error) {
	if len(key) > maxKeyLength {
		return nil, false, fmt.Errorf("%w: key of %d bytes", ErrStateVerify, len(key))
	}
	fetch := func(h types.Hash) ([]byte, error) {
		data, err := db.Node(h)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStateVerify, err)
		}
		if record != nil {
			record(data)
		}
		return data, nil
	}

	nibbles := keyToNibbles(key)
	data, err := fetch(root)
	if err != nil {
		return nil, false, err
	}
	for depth := 0; depth < maxLookupDepth; depth++ {
		n, err := decodeNode(data)
		if err != nil {
			return nil, false, err
		}
		switch n.kind {
		case kindEmpty:
			return nil, false, nil

		case kindLeaf:
			if !bytesEqual(n.partial, nibbles) {
				return nil, false, nil
			}
			return resolveValue(n, fetch)

		case kindBranch:
			if !hasPrefix(nibbles, n.partial) {
				return nil, false, nil
			}
			nibbles = nibbles[len(n.partial):]
			if len(nibbles) == 0 {
				if !n.hasValue {
					return nil, false, nil
				}
				return resolveValue(n, fetch)
			}
			child := n.children[nibbles[0]]
			if child == nil {
				return nil, false, nil
			}
			nibbles = nibbles[1:]
			if child.hashed {
				if data, err = fetch(types.BytesToHash(child.data)); err != nil {
					return nil, false, err
				}
			} else {
				data = child.data
			}
		}
	}
	return nil, false, fmt.Errorf("%w: lookup too deep", ErrStateVerify)
}

func resolveValue(n *decodedNode, fetch func(types.Hash) ([]byte, error)) ([]byte, bool, error) {
	if !n.valueHashed {
		return n.value, true, nil
	}
	v, err := fetch(types.BytesToHash(n.value))
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func bytesEqual(a, b []byte) bool {
	return len(a) == len(b) && prefixLen(a, b) == len(a)
}

// VerifyProof looks up key in the trie with the given root using only the
// proof nodes. It returns (value, true) for a present key and (nil, false)
// for a key the proof shows to be absent.
func VerifyProof(alg crypto.HashAlgorithm, root types.Hash, key []byte, proof [][]byte) ([]byte, bool, error) {
	hash, err := alg.Func()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStateVerify, err)
	}
	return lookup(NewMemoryDB(hash, proof), root, key, nil)
}
