package types

import "github.com/ethereum/go-ethereum/common/hexutil"

// StateCommitment anchors a trie proof: the state root of the remote chain
// at a given time.
type StateCommitment struct {
	Timestamp uint64 `json:"timestamp"`
	StateRoot Hash   `json:"state_root"`
}

// Proof is a raw, hash-algorithm tagged trie proof taken at Height.
type Proof struct {
	Height uint64        `json:"height"`
	Raw    hexutil.Bytes `json:"raw"`
}

// StateProof asks for the value stored under exactly one key of the trie
// rooted at Root.StateRoot.
type StateProof struct {
	Keys  []hexutil.Bytes `json:"keys"`
	Root  StateCommitment `json:"root"`
	Proof Proof           `json:"proof"`
}
