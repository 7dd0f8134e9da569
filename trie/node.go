package trie

import (
	"errors"

	"github.com/tispark/tispark/core/types"
)

// Node header prefixes. The top bits of the first byte select the node
// kind; the remaining bits start the partial key nibble count.
const (
	emptyTrie          = 0x00
	leafPrefix         = 0b01 << 6
	branchPrefix       = 0b10 << 6
	branchValuePrefix  = 0b11 << 6
	hashedLeafPrefix   = 0b001 << 5
	hashedBranchPrefix = 0b0001 << 4
	maxPartialNibbles  = 1<<16 - 1
	inlineThreshold    = types.HashLength
	childCount         = 16
)

var (
	errBadPadding     = errors.New("trie: non-zero partial key padding")
	errBadHeader      = errors.New("trie: unknown node header")
	errEmptyBitmap    = errors.New("trie: branch without children")
	errPartialTooLong = errors.New("trie: partial key too long")
)

type nodeKind uint8

const (
	kindEmpty nodeKind = iota
	kindLeaf
	kindBranch
)

// nodeRef points at a child node, either by hash or inline.
type nodeRef struct {
	data   []byte
	hashed bool
}

// decodedNode is a trie node read from a proof. For a hashed value the
// value field holds the value's hash.
type decodedNode struct {
	kind        nodeKind
	partial     []byte
	value       []byte
	hasValue    bool
	valueHashed bool
	children    [childCount]*nodeRef
}
