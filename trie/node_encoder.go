package trie

import (
	"github.com/tispark/tispark/scale"
)

// encodeHeader writes the node header: prefix bits followed by the partial
// key nibble count.
func encodeHeader(w *scale.Writer, prefix byte, prefixBits uint, size int) {
	max := int(0xff >> prefixBits)
	first := size
	if first > max-1 {
		first = max - 1
	}
	if size == first {
		w.PutU8(prefix | byte(first))
		return
	}
	w.PutU8(prefix | byte(max))
	rem := size - first
	for rem >= 256 {
		w.PutU8(255)
		rem -= 255
	}
	w.PutU8(byte(rem - 1))
}

// encodeLeaf encodes a leaf holding value inline.
func encodeLeaf(partial, value []byte) []byte {
	w := scale.NewWriter()
	encodeHeader(w, leafPrefix, 2, len(partial))
	w.PutRaw(packNibbles(partial))
	w.PutBytes(value)
	return w.Bytes()
}

// encodeBranch encodes a branch. children holds the encoded child
// references: a 32-byte hash or an inline node shorter than that.
func encodeBranch(partial []byte, value []byte, hasValue bool, children *[childCount][]byte) []byte {
	w := scale.NewWriter()
	prefix := byte(branchPrefix)
	if hasValue {
		prefix = branchValuePrefix
	}
	encodeHeader(w, prefix, 2, len(partial))
	w.PutRaw(packNibbles(partial))

	var bitmap uint16
	for i, c := range children {
		if c != nil {
			bitmap |= 1 << i
		}
	}
	w.PutU16(bitmap)
	if hasValue {
		w.PutBytes(value)
	}
	for _, c := range children {
		if c != nil {
			w.PutBytes(c)
		}
	}
	return w.Bytes()
}
