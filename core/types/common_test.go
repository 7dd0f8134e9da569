package types

import (
	"encoding/json"
	"testing"
)

func TestBytesToHash(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	h := BytesToHash(b)
	if h[HashLength-1] != 0x03 || h[HashLength-2] != 0x02 || h[HashLength-3] != 0x01 {
		t.Fatalf("BytesToHash failed: got %x", h)
	}
	// Leading bytes should be zero.
	for i := 0; i < HashLength-3; i++ {
		if h[i] != 0 {
			t.Fatalf("BytesToHash did not left-pad: byte %d is %x", i, h[i])
		}
	}
}

func TestBytesToHash_LongerThan32(t *testing.T) {
	b := make([]byte, 40)
	for i := range b {
		b[i] = byte(i)
	}
	h := BytesToHash(b)
	// Should take the rightmost 32 bytes.
	for i := 0; i < HashLength; i++ {
		if h[i] != byte(i+8) {
			t.Fatalf("BytesToHash longer input: byte %d got %x, want %x", i, h[i], byte(i+8))
		}
	}
}

func TestHexToHash(t *testing.T) {
	h := HexToHash("0xdead")
	if h[HashLength-1] != 0xad || h[HashLength-2] != 0xde {
		t.Fatalf("HexToHash failed: got %x", h)
	}
	if !HexToHash("not hex").IsZero() {
		t.Fatal("invalid hex should yield the zero hash")
	}
}

func TestHashIsZero(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Fatal("zero hash should be zero")
	}
	h[0] = 1
	if h.IsZero() {
		t.Fatal("non-zero hash should not be zero")
	}
}

func TestHashString(t *testing.T) {
	h := HexToHash("0x1234")
	if h.String() != h.Hex() {
		t.Fatalf("String() should match Hex(): got %s vs %s", h.String(), h.Hex())
	}
	if h.Hex()[0:2] != "0x" {
		t.Fatal("Hex should start with 0x")
	}
}

func TestHashJSON(t *testing.T) {
	root := HexToHash("0x48ad5b198c2750f37b4067360da4636947d1ed48c65ad3a3b21e33daac957865")
	enc, err := json.Marshal(StateCommitment{Timestamp: 7, StateRoot: root})
	if err != nil {
		t.Fatal(err)
	}
	var dec StateCommitment
	if err := json.Unmarshal(enc, &dec); err != nil {
		t.Fatal(err)
	}
	if dec.StateRoot != root || dec.Timestamp != 7 {
		t.Fatalf("JSON round trip: got %+v", dec)
	}

	var h Hash
	if err := h.UnmarshalText([]byte("0x1234")); err == nil {
		t.Fatal("short hash should be rejected")
	}
}

func TestPublicKeyFromBytes(t *testing.T) {
	if _, err := PublicKeyFromBytes(make([]byte, 31)); err == nil {
		t.Fatal("31-byte key should be rejected")
	}
	raw := make([]byte, PublicKeyLength)
	raw[0] = 0xa8
	pk, err := PublicKeyFromBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if pk.IsZero() || pk[0] != 0xa8 {
		t.Fatalf("unexpected key %s", pk)
	}

	var back PublicKey
	text, _ := pk.MarshalText()
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != pk {
		t.Fatalf("text round trip: got %s, want %s", back, pk)
	}
}
