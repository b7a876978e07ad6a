package hashindex

import "github.com/cespare/xxhash/v2"

// hashKey is the fast non-cryptographic hash linear hashing buckets keys
// by. xxhash is stable across versions for a fixed input, satisfying the
// requirement that bucket placement never shift under a store built with
// an older binary.
func hashKey(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// bucketIndexFor computes a key's logical bucket index under hash level L
// and split pointer S: h mod 2^L, promoted to h mod 2^(L+1) for any bucket
// that has already been split this cycle (index < S).
func bucketIndexFor(h uint64, level uint16, split uint64) uint64 {
	mod := uint64(1) << level
	b := h % mod
	if b < split {
		b = h % (mod << 1)
	}
	return b
}
