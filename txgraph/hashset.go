package txgraph

import (
	"math"

	"github.com/orneryd/txgraph/pkg/alloc"
)

// inlineBuckets is the size of the small inline bucket array every HashSet
// starts with before it ever needs to grow onto the heap.
const inlineBuckets = 4

// hashMask keeps only the low 56 bits of a hash; the remaining 8 bits of a
// table slot hold the Robin-Hood distance-from-initial-bucket (DIB).
// Callers must not rely on the top byte of any hash passed to HashSet.
const hashMask = uint64(1)<<56 - 1

// HashSet is a compact membership set over 64-bit hashes. It starts as a
// small open-addressed Robin-Hood hashtable and irreversibly upgrades to a
// bloom filter once growing the table would cost at least as much memory as
// the bloom filter sized for the graph's target element count and false
// positive rate. See SPEC_FULL.md §4.1 for the exact formulas.
type HashSet struct {
	// table mode
	inline   [inlineBuckets]uint64
	buckets  []uint64
	heap     bool // true once buckets points at a heap allocation
	nbuckets int
	count    int

	// bloom mode; non-nil bits means the set has upgraded and stays
	// upgraded for the rest of its life (invariant 5).
	bits []byte
	k    int
	m    uint64

	n uint64
	p float64
}

// newHashSet constructs a HashSet sized for a graph with bloom target
// element count n and target false positive rate p.
func newHashSet(n uint64, p float64) *HashSet {
	hs := &HashSet{n: n, p: p}
	hs.buckets = hs.inline[:]
	hs.nbuckets = inlineBuckets
	hs.m, hs.k = bloomParams(n, p)
	return hs
}

// bloomParams derives the bloom filter's total bit count m (a power of two,
// minimum 2) and its effective bits-per-key k from the target element count
// n and false positive rate p, per SPEC_FULL.md §4.1.
func bloomParams(n uint64, p float64) (m uint64, k int) {
	if n < 16 {
		n = 16
	}
	mRaw := float64(n) * math.Log(p) / math.Log(1/math.Pow(2, math.Ln2))
	kRaw := math.Round((mRaw / float64(n)) * math.Ln2)
	m = 2
	for float64(m) < mRaw {
		m *= 2
	}
	k = int(math.Round(mRaw / float64(m) * kRaw))
	if k < 1 {
		k = 1
	}
	return m, k
}

func hashOf(x uint64) uint64  { return x & hashMask }
func dibOf(x uint64) uint8    { return uint8(x >> 56) }
func sethashdib(hash uint64, dib uint8) uint64 {
	return hashOf(hash) | uint64(dib)<<56
}

// testAdd implements both the bloom membership test (add=false) and
// insertion (add=true) against the bloom bit array, deriving each
// successive probe position from the prior one via a bit-mixing step.
func (hs *HashSet) testAdd(hash uint64, add bool) bool {
	hash = hashOf(hash)
	j := hash & (hs.m - 1)
	for i := 0; ; i++ {
		if add {
			hs.bits[j>>3] |= 1 << (j & 7)
		} else if hs.bits[j>>3]>>(j&7)&1 == 0 {
			return false
		}
		if i == hs.k-1 {
			break
		}
		hash *= 0x94d049bb133111eb
		hash ^= hash >> 31
		j = hash & (hs.m - 1)
	}
	return true
}

// add0 inserts hash into the table via Robin-Hood displacement. It assumes
// the table has room (caller has already grown if necessary) and that hash
// is not yet masked to 56 bits.
func (hs *HashSet) add0(hash uint64) {
	hash = hashOf(hash)
	dib := uint8(1)
	i := hash & uint64(hs.nbuckets-1)
	for {
		cur := hs.buckets[i]
		if dibOf(cur) == 0 {
			hs.buckets[i] = sethashdib(hash, dib)
			hs.count++
			return
		}
		if dibOf(cur) < dib {
			hs.buckets[i] = sethashdib(hash, dib)
			hash = hashOf(cur)
			dib = dibOf(cur)
		} else if hashOf(cur) == hash {
			return
		}
		dib++
		i = (i + 1) & uint64(hs.nbuckets-1)
	}
}

// grow doubles the table, or upgrades it to a bloom filter when doubling
// the table's byte footprint would meet or exceed the bloom filter's byte
// footprint (m/8 bytes). It returns false only when the allocator refuses
// the reservation for the new backing storage.
func (hs *HashSet) grow(a alloc.Allocator) bool {
	oldBuckets := hs.buckets
	oldN := hs.nbuckets

	if uint64(oldN*2*8) >= hs.m/8 {
		bloomBytes := hs.m / 8
		if !a.Alloc(uintptr(bloomBytes)) {
			return false
		}
		hs.bits = make([]byte, bloomBytes)
		hs.count = 0
		hs.nbuckets = 0
		hs.buckets = hs.inline[:]
		for _, slot := range oldBuckets[:oldN] {
			if dibOf(slot) != 0 {
				hs.testAdd(slot, true)
			}
		}
		if hs.heap {
			a.Free(uintptr(oldN * 8))
		}
		hs.heap = false
		return true
	}

	newN := oldN * 2
	if !a.Alloc(uintptr(newN * 8)) {
		return false
	}
	hs.buckets = make([]uint64, newN)
	hs.nbuckets = newN
	hs.count = 0
	for _, slot := range oldBuckets[:oldN] {
		if dibOf(slot) != 0 {
			hs.add0(slot)
		}
	}
	if hs.heap {
		a.Free(uintptr(oldN * 8))
	}
	hs.heap = true
	return true
}

// Add inserts hash into the set, growing or upgrading to a bloom filter as
// needed. It returns false only when the allocator refuses a required
// growth reservation (simulated out-of-memory).
func (hs *HashSet) Add(a alloc.Allocator, hash uint64) bool {
	for {
		if hs.bits != nil {
			hs.testAdd(hash, true)
			return true
		}
		if hs.count < hs.nbuckets>>1 {
			hs.add0(hash)
			return true
		}
		if !hs.grow(a) {
			return false
		}
	}
}

// Test reports whether hash is a member of the set. In bloom mode this may
// return a false positive but never a false negative (invariant 6).
func (hs *HashSet) Test(hash uint64) bool {
	if hs.bits != nil {
		return hs.testAdd(hash, false)
	}
	h := hashOf(hash)
	dib := uint8(1)
	i := h & uint64(hs.nbuckets-1)
	for {
		cur := hs.buckets[i]
		if hashOf(cur) == h && dibOf(cur) != 0 {
			return true
		}
		if dibOf(cur) < dib {
			return false
		}
		dib++
		i = (i + 1) & uint64(hs.nbuckets-1)
	}
}

// Empty reports whether the set has never had a successful Add: the bloom
// filter is inactive and the table is empty.
func (hs *HashSet) Empty() bool {
	return hs.bits == nil && hs.count == 0
}

// free releases any heap-allocated backing storage back to the allocator.
func (hs *HashSet) free(a alloc.Allocator) {
	if hs.heap {
		a.Free(uintptr(hs.nbuckets * 8))
	}
	if hs.bits != nil {
		a.Free(uintptr(len(hs.bits)))
	}
}
