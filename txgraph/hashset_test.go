package txgraph

import (
	"testing"

	"github.com/orneryd/txgraph/pkg/alloc"
)

func TestHashSetEmptyInitially(t *testing.T) {
	hs := newHashSet(1_000_000, 0.01)
	if !hs.Empty() {
		t.Fatal("new HashSet should be empty")
	}
}

func TestHashSetAddThenTest(t *testing.T) {
	a := alloc.Default()
	hs := newHashSet(1_000_000, 0.01)
	hashes := []uint64{1, 2, 3, 1 << 40, 0x00ffffffffffffff}
	for _, h := range hashes {
		if !hs.Add(a, h) {
			t.Fatalf("Add(%d) failed unexpectedly", h)
		}
	}
	for _, h := range hashes {
		if !hs.Test(h) {
			t.Errorf("Test(%d) = false, want true (no false negatives)", h)
		}
	}
	if hs.Empty() {
		t.Fatal("HashSet with entries should not report Empty")
	}
}

func TestHashSetTestMissingIsFalse(t *testing.T) {
	a := alloc.Default()
	hs := newHashSet(1_000_000, 0.01)
	hs.Add(a, 42)
	if hs.Test(7) {
		t.Error("Test for a never-added hash returned true in table mode")
	}
}

// TestHashSetGrowsAndStaysAccurate inserts enough distinct hashes to force
// several table growths (with a large n/p so it never upgrades to bloom)
// and checks every inserted hash is still found.
func TestHashSetGrowsAndStaysAccurate(t *testing.T) {
	a := alloc.Default()
	hs := newHashSet(1_000_000, 0.01)
	const count = 500
	inserted := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		h := uint64(i*2654435761 + 17)
		if !hs.Add(a, h) {
			t.Fatalf("Add failed at i=%d", i)
		}
		inserted = append(inserted, h)
	}
	for _, h := range inserted {
		if !hs.Test(h) {
			t.Errorf("Test(%d) = false after growth, want true", h)
		}
	}
	if hs.bits != nil {
		t.Fatal("expected table mode to suffice for n=1,000,000; set upgraded unexpectedly")
	}
}

// TestHashSetUpgradesToBloom uses a tiny n so the bloom filter's byte
// footprint is smaller than even a modestly grown table, forcing an
// upgrade, and checks invariant 5 (irreversible) and invariant 6 (no false
// negatives after upgrade).
func TestHashSetUpgradesToBloom(t *testing.T) {
	a := alloc.Default()
	hs := newHashSet(16, 0.5) // minimal n, loose fp rate => tiny bloom
	const count = 64
	inserted := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		h := uint64(i*2654435761 + 31)
		if !hs.Add(a, h) {
			t.Fatalf("Add failed at i=%d", i)
		}
		inserted = append(inserted, h)
	}
	if hs.bits == nil {
		t.Fatal("expected HashSet to have upgraded to a bloom filter by now")
	}
	for _, h := range inserted {
		if !hs.Test(h) {
			t.Errorf("Test(%d) = false after bloom upgrade, want true (invariant 6)", h)
		}
	}
	// Invariant 5: upgrade is irreversible. Adding more must not revert it.
	hs.Add(a, 999999)
	if hs.bits == nil {
		t.Fatal("HashSet reverted out of bloom mode, violating invariant 5")
	}
}

func TestHashSetAddFailsOnAllocatorRefusal(t *testing.T) {
	a := alloc.Bounded(0)
	hs := newHashSet(1_000_000, 0.01)
	// The first two adds fit in the inline array (no allocation needed).
	if !hs.Add(a, 1) || !hs.Add(a, 2) {
		t.Fatal("inline-capacity adds should not need allocator budget")
	}
	// The third add crosses the half-full threshold of the 4-slot inline
	// table and must grow, which the zero-budget allocator refuses.
	if hs.Add(a, 3) {
		t.Fatal("expected Add to fail once growth is required and budget is exhausted")
	}
}

func TestBloomParamsMinimumSize(t *testing.T) {
	m, k := bloomParams(0, 0.01)
	if m < 2 {
		t.Fatalf("m = %d, want >= 2", m)
	}
	if k < 1 {
		t.Fatalf("k = %d, want >= 1", k)
	}
}
