// Package hashid provides the default implementations of the "hashing
// function" collaborator txgraph deliberately keeps external: it turns
// arbitrary keys into the 64-bit idents txgraph.Node.Read and
// txgraph.Node.Write consume. txgraph never imports this package; callers
// choose a hasher and wire it in themselves.
package hashid

import (
	"golang.org/x/crypto/blake2b"

	"github.com/cespare/xxhash/v2"
)

// Hasher maps a byte key to a 64-bit ident. Implementations need not be
// collision-free — txgraph's conflict graph is built over hash identities,
// not values, so a collision only ever causes two distinct items to be
// treated as the same item for conflict-detection purposes (a false
// conflict, never a missed one).
type Hasher interface {
	Hash(key []byte) uint64
	HashString(key string) uint64
}

// Default returns the fast, non-cryptographic hasher (xxhash) used
// throughout this repository's tests and pkg/store's default
// configuration.
func Default() Hasher { return fastHasher{} }

type fastHasher struct{}

func (fastHasher) Hash(key []byte) uint64       { return xxhash.Sum64(key) }
func (fastHasher) HashString(key string) uint64 { return xxhash.Sum64String(key) }

// Strong returns a hasher built on blake2b. Prefer it over Default when
// keys are attacker-influenced and a predictable hash could let one tenant
// engineer artificial conflicts against another by choosing keys that
// collide under the fast hasher.
func Strong() Hasher { return strongHasher{} }

type strongHasher struct{}

func (strongHasher) Hash(key []byte) uint64 {
	sum := blake2b.Sum512(key)
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return v
}

func (s strongHasher) HashString(key string) uint64 {
	return s.Hash([]byte(key))
}
