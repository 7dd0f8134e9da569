package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/crypto"
	"github.com/tispark/tispark/scale"
)

// State proof errors.
var (
	ErrInvalidKeys  = errors.New("trie: state proof must request exactly one key")
	ErrStateVerify  = errors.New("trie: state proof verification failed")
	ErrMissingValue = errors.New("trie: key not present in state")
)

// ProofBlob is the decoded form of a raw state proof: the trie's hash
// algorithm and the proof nodes.
type ProofBlob struct {
	Hasher crypto.HashAlgorithm
	Nodes  [][]byte
}

// EncodeProofBlob returns the raw encoding of a proof blob.
func EncodeProofBlob(alg crypto.HashAlgorithm, nodes [][]byte) ([]byte, error) {
	return scale.EncodeToBytes(ProofBlob{Hasher: alg, Nodes: nodes})
}

// DecodeProofBlob decodes a raw state proof.
func DecodeProofBlob(raw []byte) (*ProofBlob, error) {
	var blob ProofBlob
	if err := scale.DecodeBytes(raw, &blob); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateVerify, err)
	}
	if _, err := blob.Hasher.Func(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateVerify, err)
	}
	return &blob, nil
}

// KeyValue is the lookup result for one key. Value is nil and Found false
// when the key is provably absent.
type KeyValue struct {
	Key   []byte
	Value []byte
	Found bool
}

// CheckSingleKey requires the proof to ask for exactly one key.
func CheckSingleKey(p *types.StateProof) error {
	if len(p.Keys) != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidKeys, len(p.Keys))
	}
	return nil
}

// Verify checks the proof against p.Root.StateRoot and returns the lookup
// result for every requested key.
func Verify(p *types.StateProof) ([]KeyValue, error) {
	blob, err := DecodeProofBlob(p.Proof.Raw)
	if err != nil {
		return nil, err
	}
	hash, _ := blob.Hasher.Func()
	db := NewMemoryDB(hash, blob.Nodes)

	out := make([]KeyValue, 0, len(p.Keys))
	for _, key := range p.Keys {
		v, found, err := lookup(db, p.Root.StateRoot, key, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, KeyValue{Key: bytes.Clone(key), Value: v, Found: found})
	}
	return out, nil
}

// ExtractSingleValue verifies a single-key proof and returns the value. A
// key shown to be absent yields ErrMissingValue.
func ExtractSingleValue(p *types.StateProof) ([]byte, error) {
	if err := CheckSingleKey(p); err != nil {
		return nil, err
	}
	kvs, err := Verify(p)
	if err != nil {
		return nil, err
	}
	if !kvs[0].Found {
		return nil, fmt.Errorf("%w: key %x", ErrMissingValue, kvs[0].Key)
	}
	return kvs[0].Value, nil
}
