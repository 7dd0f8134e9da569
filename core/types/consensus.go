package types

import "github.com/ethereum/go-ethereum/common/hexutil"

// ConsensusDigest holds the two consensus digest items of a block header:
// the pre-runtime slot data and the block author's seal.
type ConsensusDigest struct {
	PreRuntime hexutil.Bytes `json:"pre_runtime"`
	Seal       hexutil.Bytes `json:"seal"`
}

// ConsensusState is the subset of a remote block header needed to rebuild
// its hash.
type ConsensusState struct {
	Block          uint32          `json:"block"`
	ExtrinsicsRoot Hash            `json:"extrinsics_root"`
	StateRoot      Hash            `json:"state_root"`
	ParentHash     Hash            `json:"parent_hash"`
	Digest         ConsensusDigest `json:"digest"`
}

// ConsensusProof is the finality evidence for one remote block. The
// authority list is supplied by the caller and is checked against the
// installed set before use.
type ConsensusProof struct {
	Justification        hexutil.Bytes  `json:"justification"`
	State                ConsensusState `json:"state"`
	UntrustedAuthorities []PublicKey    `json:"untrusted_authorities"`
}
