package txgraph

import (
	"fmt"

	"github.com/orneryd/txgraph/pkg/alloc"
)

// State is a transaction node's position in its lifecycle.
type State uint8

const (
	// Active is the initial state assigned by Graph.Begin.
	Active State = iota
	// Nomem marks a node where a prior Read or Write failed to allocate;
	// further Read/Write calls become no-ops until Commit or Rollback.
	Nomem
	// Committed marks a node whose Commit succeeded.
	Committed
	// RolledBack marks a node that was rolled back, or whose Commit was
	// rejected by the serializability check.
	RolledBack
	// Released marks a node that was still Active when its graph was
	// closed. Accessing a Released node's fields after Graph.Close is
	// unsupported; the state exists only as a courtesy to observers that
	// still hold a reference.
	Released
)

// String renders the state the way Graph.PrintState does.
func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Committed:
		return "COMMIT"
	case RolledBack:
		return "ROLLBACK"
	case Nomem:
		return "NOMEM"
	case Released:
		return "RELEASED"
	default:
		return "UNKNOWN"
	}
}

// approxNodeSize is the byte footprint charged against the graph's
// allocator for the Node struct itself, mirroring the reference
// implementation's ptx_graph_begin call to its injected malloc.
const approxNodeSize = 128

// Node is one transaction: its identity, lifecycle state, local read/write
// sets, and its dependency edges to other nodes in the same graph.
//
// A Node must only be accessed by the goroutine driving its transaction;
// txgraph performs no internal synchronization (SPEC_FULL.md §5).
type Node struct {
	graph      *Graph
	prev, next *Node

	ident uint64
	state State
	label string

	reads  *HashSet
	writes *HashSet
	outs   *EdgeMap
	ins    *EdgeMap

	hasReads  bool
	hasWrites bool
	hasDeps   bool

	reached bool // GC mark bit; always cleared again before GC returns
}

// Ident returns the node's unique, never-reused identity within its graph.
func (n *Node) Ident() uint64 { return n.ident }

// State returns the node's current lifecycle state.
func (n *Node) State() State { return n.state }

// Label returns the node's diagnostic label.
func (n *Node) Label() string { return n.label }

// SetLabel sets the node's diagnostic label. An empty label restores the
// default "T(<ident>)" form.
func (n *Node) SetLabel(label string) {
	if label == "" {
		n.label = fmt.Sprintf("T(%d)", n.ident)
		return
	}
	n.label = label
}

// HasWrites reports whether the node has ever recorded a write. The
// commit-time certification check on other nodes reads the same flag.
func (n *Node) HasWrites() bool { return n.hasWrites }

// Outs returns the node's outgoing dependency edges.
func (n *Node) Outs() *EdgeMap { return n.outs }

// Ins returns the node's incoming dependency edges (diagnostic only).
func (n *Node) Ins() *EdgeMap { return n.ins }

func assertLive(n *Node) {
	if n.state != Active && n.state != Nomem {
		panic(fmt.Sprintf("txgraph: %s: operation requires ACTIVE or NOMEM, got %s", n.label, n.state))
	}
}

// Read records that the transaction observed the item identified by hash.
// It must only be called while the node is ACTIVE or NOMEM; any other
// state is a programmer error and panics. On NOMEM it is a no-op. If
// recording the read would require an allocation the graph's allocator
// refuses, the node transitions to NOMEM and the read is abandoned.
func (n *Node) Read(hash uint64) {
	assertLive(n)
	if n.state == Nomem {
		return
	}
	if !n.reads.Add(n.graph.alloc, hash) {
		n.state = Nomem
		return
	}
	n.hasReads = true
	for other := n.graph.head.next; other != n.graph.tail; other = other.next {
		if other == n {
			continue
		}
		if other.writes.Test(hash) {
			if !addDep(n.graph.alloc, other, n, KindWR) {
				n.state = Nomem
				return
			}
		}
	}
}

// Write records that the transaction produced the item identified by hash.
// Same preconditions and NOMEM behavior as Read. A write against the same
// hash as another live node's write produces edges in both directions
// (SPEC_FULL.md §4.3) so the commit-time certification check can find the
// earlier-committed partner from either side.
func (n *Node) Write(hash uint64) {
	assertLive(n)
	if n.state == Nomem {
		return
	}
	if !n.writes.Add(n.graph.alloc, hash) {
		n.state = Nomem
		return
	}
	n.hasWrites = true
	for other := n.graph.head.next; other != n.graph.tail; other = other.next {
		if other == n {
			continue
		}
		if other.reads.Test(hash) {
			if !addDep(n.graph.alloc, other, n, KindRW) {
				n.state = Nomem
				return
			}
		}
		if other.writes.Test(hash) {
			if !addDep(n.graph.alloc, other, n, KindWW) {
				n.state = Nomem
				return
			}
			if !addDep(n.graph.alloc, n, other, KindWW) {
				n.state = Nomem
				return
			}
		}
	}
}

// addDep records a dependency from -> to of the given kind: to.ins gets an
// entry sourced from "from", from.outs gets an entry targeting "to", and
// to.hasDeps is set. Idempotent for an already-present (pair, kind).
func addDep(a alloc.Allocator, from, to *Node, kind EdgeKind) bool {
	if !to.ins.Add(a, from, kind) {
		return false
	}
	if !from.outs.Add(a, to, kind) {
		return false
	}
	to.hasDeps = true
	return true
}

// Rollback forces the node into the ROLLEDBACK state. Valid only while the
// node is ACTIVE or NOMEM.
func (n *Node) Rollback() {
	assertLive(n)
	n.deactivate(RolledBack)
}

// Commit attempts to certify the transaction as serializable with the
// transactions it depends on.
//
// If the node is NOMEM, Commit latches the OOM sentinel, rolls the node
// back, and returns (false, true): the failure was allocation-induced, not
// a genuine conflict.
//
// Otherwise Commit clears the OOM sentinel and rejects the transaction
// (rolling it back and returning (false, false)) iff any outgoing
// dependency target is COMMITTED and has recorded writes — an
// already-serialized writer this transaction cannot be safely ordered
// after. Otherwise the node commits and Commit returns (true, false).
func (n *Node) Commit() (ok bool, oom bool) {
	assertLive(n)
	if n.state == Nomem {
		setOOM(true)
		n.deactivate(RolledBack)
		return false, true
	}
	setOOM(false)
	conflict := n.outs.Any(func(_ EdgeKind, target *Node) bool {
		return target.state == Committed && target.hasWrites
	})
	if conflict {
		n.deactivate(RolledBack)
		return false, false
	}
	n.deactivate(Committed)
	return true, false
}

// deactivate is the shared tail of Commit and Rollback: it sets the new
// state and applies the graph's autogc policy (immediate reclamation for
// edge-free nodes, threshold-driven full GC otherwise).
func (n *Node) deactivate(state State) {
	n.state = state
	g := n.graph
	if !g.autogcEnabled() {
		return
	}
	g.gccounter++
	if n.outs.Count() == 0 && !n.hasDeps {
		g.freeNode(n)
	}
	if g.gccounter >= g.autogc {
		g.gccounter = 0
		g.GC()
	}
}
