package trie

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/tispark/tispark/crypto"
)

func newTestBuilder(t *testing.T, alg crypto.HashAlgorithm, kv map[string]string) *Builder {
	t.Helper()
	b, err := NewBuilder(alg)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range kv {
		b.Put([]byte(k), []byte(v))
	}
	return b
}

// -- Root --

func TestBuilderEmptyRoot(t *testing.T) {
	b := newTestBuilder(t, crypto.Blake2, nil)
	if b.Root() != crypto.Blake2b256Hash([]byte{emptyTrie}) {
		t.Fatalf("empty root: %s", b.Root())
	}
	v, found, err := VerifyProof(crypto.Blake2, b.Root(), []byte("k"), mustProve(t, b, "k"))
	if err != nil || found || v != nil {
		t.Fatalf("empty trie lookup: %x %v %v", v, found, err)
	}
}

func TestBuilderSingleLeafRoot(t *testing.T) {
	b := newTestBuilder(t, crypto.Keccak, map[string]string{"\xab": "v"})
	// leaf header, nibbles a b, value "v"
	want := crypto.Keccak256Hash([]byte{0x42, 0xab, 0x04, 'v'})
	if b.Root() != want {
		t.Fatalf("root %s, want %s", b.Root(), want)
	}
}

func TestBuilderRootChangesOnPut(t *testing.T) {
	b := newTestBuilder(t, crypto.Blake2, map[string]string{"a": "1"})
	r1 := b.Root()
	b.Put([]byte("a"), []byte("2"))
	if b.Root() == r1 {
		t.Fatal("root did not change after overwrite")
	}
	b.Put([]byte("a"), []byte("1"))
	if b.Root() != r1 {
		t.Fatal("root is not a function of content")
	}
}

func TestBuilderOrderIndependent(t *testing.T) {
	b1, _ := NewBuilder(crypto.Blake2)
	b2, _ := NewBuilder(crypto.Blake2)
	for i := 0; i < 50; i++ {
		b1.Put([]byte(fmt.Sprintf("key-%d", i)), []byte{byte(i)})
		b2.Put([]byte(fmt.Sprintf("key-%d", 49-i)), []byte{byte(49 - i)})
	}
	if b1.Root() != b2.Root() {
		t.Fatal("insertion order changed the root")
	}
}

// -- Prove --

func mustProve(t *testing.T, b *Builder, key string) [][]byte {
	t.Helper()
	proof, err := b.Prove([]byte(key))
	if err != nil {
		t.Fatalf("prove %q: %v", key, err)
	}
	return proof
}

func TestBuilderProveRoundTrip(t *testing.T) {
	kv := map[string]string{
		"do":       "verb",
		"dog":      "puppy",
		"doge":     "coin",
		"horse":    "stallion",
		"h":        "",
		"long":     string(bytes.Repeat([]byte("x"), 100)),
		"\x00":     "zero",
		"\x00\x0f": "zero-f",
	}
	for _, alg := range []crypto.HashAlgorithm{crypto.Keccak, crypto.Blake2} {
		b := newTestBuilder(t, alg, kv)
		root := b.Root()
		for k, want := range kv {
			v, found, err := VerifyProof(alg, root, []byte(k), mustProve(t, b, k))
			if err != nil {
				t.Fatalf("%s %q: %v", alg, k, err)
			}
			if !found || string(v) != want {
				t.Fatalf("%s %q: got %q (found=%v), want %q", alg, k, v, found, want)
			}
		}
	}
}

func TestBuilderProveAbsent(t *testing.T) {
	b := newTestBuilder(t, crypto.Blake2, map[string]string{"do": "verb", "dog": "puppy", "horse": "stallion"})
	for _, k := range []string{"d", "dot", "dogs", "cat", "", "horses"} {
		v, found, err := VerifyProof(crypto.Blake2, b.Root(), []byte(k), mustProve(t, b, k))
		if err != nil {
			t.Fatalf("%q: %v", k, err)
		}
		if found || v != nil {
			t.Fatalf("%q: expected absence, got %q", k, v)
		}
	}
}

func TestBuilderProofIsMinimal(t *testing.T) {
	b, _ := NewBuilder(crypto.Blake2)
	for i := 0; i < 200; i++ {
		b.Put(crypto.Blake2b256([]byte{byte(i)}), bytes.Repeat([]byte{byte(i)}, 40))
	}
	key := crypto.Blake2b256([]byte{7})
	proof := mustProve(t, b, string(key))
	if len(proof) < 2 {
		t.Fatalf("proof too short: %d nodes", len(proof))
	}
	// Every node on the path is needed.
	for i := range proof {
		partial := append(append([][]byte{}, proof[:i]...), proof[i+1:]...)
		if _, _, err := VerifyProof(crypto.Blake2, b.Root(), key, partial); !errors.Is(err, ErrStateVerify) {
			t.Fatalf("dropping node %d: expected ErrStateVerify, got %v", i, err)
		}
	}
}

func TestBuilderProveExisting(t *testing.T) {
	b := newTestBuilder(t, crypto.Blake2, map[string]string{"a": "1"})
	if _, err := b.ProveExisting([]byte("b")); !errors.Is(err, ErrKeyNotInTrie) {
		t.Fatalf("expected ErrKeyNotInTrie, got %v", err)
	}
	if _, err := b.ProveExisting([]byte("a")); err != nil {
		t.Fatal(err)
	}
}

func TestBuilderStateProof(t *testing.T) {
	b := newTestBuilder(t, crypto.Keccak, map[string]string{"commit": "record", "other": "x"})
	sp, err := b.StateProof([]byte("commit"), 1700, 12)
	if err != nil {
		t.Fatal(err)
	}
	if sp.Root.StateRoot != b.Root() || sp.Root.Timestamp != 1700 || sp.Proof.Height != 12 {
		t.Fatalf("unexpected state proof fields: %+v", sp)
	}
	v, err := ExtractSingleValue(sp)
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != "record" {
		t.Fatalf("got %q", v)
	}
}

func TestNewBuilderUnknownAlgorithm(t *testing.T) {
	if _, err := NewBuilder(crypto.HashAlgorithm(9)); !errors.Is(err, crypto.ErrUnknownHashAlgorithm) {
		t.Fatalf("expected ErrUnknownHashAlgorithm, got %v", err)
	}
}
