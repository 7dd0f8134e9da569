package trie

import (
	"fmt"

	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/scale"
)

// decodeNode decodes an encoded trie node. Every length is checked against
// the remaining input, and the node must consume its input exactly.
func decodeNode(data []byte) (*decodedNode, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty node", ErrStateVerify)
	}
	r := scale.NewReader(data)
	n, err := decodeNodeFrom(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateVerify, err)
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateVerify, err)
	}
	return n, nil
}

func decodeNodeFrom(r *scale.Reader) (*decodedNode, error) {
	header, err := r.U8()
	if err != nil {
		return nil, err
	}
	if header == emptyTrie {
		return &decodedNode{kind: kindEmpty}, nil
	}

	n := new(decodedNode)
	var prefixBits uint
	switch header & (0b11 << 6) {
	case leafPrefix:
		n.kind, prefixBits = kindLeaf, 2
	case branchPrefix:
		n.kind, prefixBits = kindBranch, 2
	case branchValuePrefix:
		n.kind, prefixBits, n.hasValue = kindBranch, 2, true
	default:
		switch {
		case header&(0b111<<5) == hashedLeafPrefix:
			n.kind, prefixBits, n.valueHashed = kindLeaf, 3, true
		case header&(0b1111<<4) == hashedBranchPrefix:
			n.kind, prefixBits, n.hasValue, n.valueHashed = kindBranch, 4, true, true
		default:
			return nil, fmt.Errorf("%w: %#x", errBadHeader, header)
		}
	}

	count, err := decodeSize(header, prefixBits, r)
	if err != nil {
		return nil, err
	}
	packed, err := r.Raw((count + 1) / 2)
	if err != nil {
		return nil, err
	}
	if n.partial, err = unpackNibbles(packed, count); err != nil {
		return nil, err
	}

	if n.kind == kindLeaf {
		n.hasValue = true
		n.value, err = readValue(r, n.valueHashed)
		return n, err
	}

	bitmap, err := r.U16()
	if err != nil {
		return nil, err
	}
	if bitmap == 0 {
		return nil, errEmptyBitmap
	}
	if n.hasValue {
		if n.value, err = readValue(r, n.valueHashed); err != nil {
			return nil, err
		}
	}
	for i := 0; i < childCount; i++ {
		if bitmap&(1<<i) == 0 {
			continue
		}
		child, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		n.children[i] = &nodeRef{data: child, hashed: len(child) == types.HashLength}
	}
	return n, nil
}

// decodeSize reads the partial key nibble count that starts in the low
// bits of the header and continues in following bytes while they are 255.
func decodeSize(header byte, prefixBits uint, r *scale.Reader) (int, error) {
	max := int(0xff >> prefixBits)
	size := int(header) & max
	if size < max {
		return size, nil
	}
	size--
	for {
		b, err := r.U8()
		if err != nil {
			return 0, err
		}
		if b < 255 {
			size += int(b) + 1
			break
		}
		size += 255
		if size > maxPartialNibbles {
			return 0, errPartialTooLong
		}
	}
	if size > maxPartialNibbles {
		return 0, errPartialTooLong
	}
	return size, nil
}

func readValue(r *scale.Reader, hashed bool) ([]byte, error) {
	if hashed {
		b, err := r.Raw(types.HashLength)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), b...), nil
	}
	return r.Bytes()
}
