// The same finality justification is often checked more than once: by the
// verify-consensus command, by the reveal pipeline, and by every reveal that
// targets the same finalized block. SignatureCache remembers ed25519 results
// keyed by Blake2b256(public key || signature || message).

package crypto

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tispark/tispark/core/types"
)

// DefaultSigCacheSize is the default number of entries in the signature cache.
const DefaultSigCacheSize = 4096

// SignatureCache is an LRU cache of signature verification results. It is
// safe for concurrent use and counts hits and misses.
type SignatureCache struct {
	capacity int
	entries  *lru.Cache

	hits   atomic.Int64
	misses atomic.Int64
}

// NewSignatureCache creates a cache holding at most capacity results. If
// capacity <= 0, DefaultSigCacheSize is used.
func NewSignatureCache(capacity int) *SignatureCache {
	if capacity <= 0 {
		capacity = DefaultSigCacheSize
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New(capacity)
	return &SignatureCache{capacity: capacity, entries: entries}
}

// SigCacheKey derives the cache key Blake2b256(pk || sig || msg).
func SigCacheKey(pk types.PublicKey, msg []byte, sig types.Signature) types.Hash {
	return Blake2b256Hash(pk[:], sig[:], msg)
}

// Verify checks sig with VerifyEd25519, consulting the cache first. A nil
// cache verifies directly.
func (c *SignatureCache) Verify(pk types.PublicKey, msg []byte, sig types.Signature) bool {
	if c == nil {
		return VerifyEd25519(pk, msg, sig)
	}
	key := SigCacheKey(pk, msg, sig)
	if valid, ok := c.Get(key); ok {
		return valid
	}
	valid := VerifyEd25519(pk, msg, sig)
	c.Add(key, valid)
	return valid
}

// Get looks up a cached verification result.
func (c *SignatureCache) Get(key types.Hash) (valid bool, ok bool) {
	v, found := c.entries.Get(key)
	if !found {
		c.misses.Add(1)
		return false, false
	}
	c.hits.Add(1)
	return v.(bool), true
}

// Add records a verification result, evicting the least recently used
// entry when full.
func (c *SignatureCache) Add(key types.Hash, valid bool) {
	c.entries.Add(key, valid)
}

// Len returns the number of cached results.
func (c *SignatureCache) Len() int { return c.entries.Len() }

// Hits returns the number of cache hits since creation or the last Purge.
func (c *SignatureCache) Hits() int64 { return c.hits.Load() }

// Misses returns the number of cache misses since creation or the last Purge.
func (c *SignatureCache) Misses() int64 { return c.misses.Load() }

// Purge drops every entry and resets the counters.
func (c *SignatureCache) Purge() {
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}
