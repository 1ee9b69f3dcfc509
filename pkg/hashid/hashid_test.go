package hashid

import "testing"

func TestDefaultIsDeterministic(t *testing.T) {
	h := Default()
	a := h.HashString("doctors")
	b := h.HashString("doctors")
	if a != b {
		t.Fatalf("HashString not deterministic: %d != %d", a, b)
	}
}

func TestDefaultDistinguishesDistinctKeys(t *testing.T) {
	h := Default()
	keys := []string{"doctors", "current-batch", "receipts", "dots", "mytab", "checking", "saving"}
	seen := make(map[uint64]string)
	for _, k := range keys {
		v := h.HashString(k)
		if prev, ok := seen[v]; ok {
			t.Fatalf("hash collision between %q and %q", k, prev)
		}
		seen[v] = k
	}
}

func TestStrongMatchesHashAndHashString(t *testing.T) {
	h := Strong()
	if h.Hash([]byte("dots")) != h.HashString("dots") {
		t.Fatal("Strong().Hash and HashString disagree for the same key")
	}
}
