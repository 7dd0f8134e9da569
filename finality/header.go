package finality

import (
	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/crypto"
	"github.com/tispark/tispark/scale"
)

// AuraEngineID is the consensus engine id under which block authorship
// digest items are recorded.
var AuraEngineID = [4]byte{'a', 'u', 'r', 'a'}

// Digest item tags.
const (
	digestSeal       = 5
	digestPreRuntime = 6
)

// EncodeHeader returns the canonical header encoding of s:
// parent hash, compact block number, state root, extrinsics root and a
// two-item digest (pre-runtime, then seal).
func EncodeHeader(s *types.ConsensusState) []byte {
	w := scale.NewWriter()
	w.PutRaw(s.ParentHash[:])
	w.PutCompact(uint64(s.Block))
	w.PutRaw(s.StateRoot[:])
	w.PutRaw(s.ExtrinsicsRoot[:])

	w.PutCompact(2)
	w.PutU8(digestPreRuntime)
	w.PutRaw(AuraEngineID[:])
	w.PutBytes(s.Digest.PreRuntime)
	w.PutU8(digestSeal)
	w.PutRaw(AuraEngineID[:])
	w.PutBytes(s.Digest.Seal)
	return w.Bytes()
}

// BuildConsensusHash returns the block hash committed to by s.
func BuildConsensusHash(s *types.ConsensusState) types.Hash {
	return crypto.Blake2b256Hash(EncodeHeader(s))
}
