package crypto

import (
	"github.com/tispark/tispark/core/types"
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 calculates the unkeyed BLAKE2b-256 hash of the given data,
// the native hash of Substrate chains.
func Blake2b256(data ...[]byte) []byte {
	d, _ := blake2b.New256(nil) // only fails for oversized keys
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Blake2b256Hash calculates BLAKE2b-256 and returns it as a types.Hash.
func Blake2b256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(Blake2b256(data...))
}
