package txgraph

import "github.com/orneryd/txgraph/pkg/alloc"

// EdgeKind classifies a dependency edge between two transaction nodes.
type EdgeKind uint8

const (
	// KindWR marks an edge from a writer to a later reader of the same
	// item: the edge's target read a value the source had written.
	KindWR EdgeKind = iota + 1
	// KindWW marks two transactions that both wrote the same item.
	KindWW
	// KindRW marks an edge from a reader to a later writer of the same
	// item: the source's read happened before the target's write.
	KindRW
)

// String renders the edge kind the way Graph.Print does: lower-case.
func (k EdgeKind) String() string {
	switch k {
	case KindWR:
		return "wr"
	case KindWW:
		return "ww"
	case KindRW:
		return "rw"
	default:
		return "?"
	}
}

type edgeSlot struct {
	dib    uint8
	kind   EdgeKind
	target *Node
}

// EdgeMap is an open-addressed Robin-Hood map keyed by target node ident,
// storing (kind, target) pairs. Two edges are equal iff both their target
// ident and kind match; adding an equal edge a second time is a no-op, but
// two different kinds between the same pair of nodes occupy distinct
// entries (SPEC_FULL.md §4.2).
type EdgeMap struct {
	buckets  []edgeSlot
	nbuckets int
	count    int
}

func edgeEqual(a, b edgeSlot) bool {
	return a.target.ident == b.target.ident && a.kind == b.kind
}

// add0 performs the Robin-Hood insertion/displacement. It assumes the map
// already has room; callers must grow first.
func (m *EdgeMap) add0(e edgeSlot) {
	e.dib = 1
	i := e.target.ident & uint64(m.nbuckets-1)
	for {
		cur := m.buckets[i]
		if cur.dib == 0 {
			m.buckets[i] = e
			m.count++
			return
		}
		if edgeEqual(cur, e) {
			return
		}
		if cur.dib < e.dib {
			m.buckets[i], e = e, cur
		}
		e.dib++
		i = (i + 1) & uint64(m.nbuckets-1)
	}
}

// grow doubles the map's capacity (0 -> 2 -> 4 -> ...), re-inserting every
// live entry. It returns false only if the allocator refuses the
// reservation for the new backing array.
func (m *EdgeMap) grow(a alloc.Allocator) bool {
	oldBuckets := m.buckets
	oldN := m.nbuckets
	newN := 2
	if oldN != 0 {
		newN = oldN * 2
	}
	if !a.Alloc(uintptr(newN) * edgeSlotSize) {
		return false
	}
	m.buckets = make([]edgeSlot, newN)
	m.nbuckets = newN
	m.count = 0
	for _, slot := range oldBuckets {
		if slot.dib != 0 {
			m.add0(slot)
		}
	}
	if oldN != 0 {
		a.Free(uintptr(oldN) * edgeSlotSize)
	}
	return true
}

// edgeSlotSize approximates the byte footprint of one edgeSlot for
// allocation accounting purposes (dib + kind + a pointer-sized reference).
const edgeSlotSize = 1 + 1 + 8

// Add records an edge to target of the given kind. It is idempotent: an
// already-present (target, kind) pair leaves the map unchanged. Returns
// false only on simulated allocator failure during a required growth.
func (m *EdgeMap) Add(a alloc.Allocator, target *Node, kind EdgeKind) bool {
	if m.count == m.nbuckets/2 {
		if !m.grow(a) {
			return false
		}
	}
	m.add0(edgeSlot{kind: kind, target: target})
	return true
}

// Count returns the number of edges currently stored.
func (m *EdgeMap) Count() int {
	return m.count
}

// Each calls f once for every edge in the map, in implementation-defined
// order. f must not mutate the map.
func (m *EdgeMap) Each(f func(kind EdgeKind, target *Node)) {
	for _, slot := range m.buckets {
		if slot.dib != 0 {
			f(slot.kind, slot.target)
		}
	}
}

// Any reports whether pred matches any edge in the map, stopping at the
// first match.
func (m *EdgeMap) Any(pred func(kind EdgeKind, target *Node) bool) bool {
	for _, slot := range m.buckets {
		if slot.dib != 0 && pred(slot.kind, slot.target) {
			return true
		}
	}
	return false
}

func (m *EdgeMap) free(a alloc.Allocator) {
	if m.nbuckets != 0 {
		a.Free(uintptr(m.nbuckets) * edgeSlotSize)
	}
}
