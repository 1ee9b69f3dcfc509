// Package txgraph implements an in-memory serializable-snapshot conflict
// detector for optimistic concurrency control: the certification step that
// decides, at commit time, whether a transaction can be serialized with
// the other transactions it overlapped or must be rolled back.
//
// Client code models each logical transaction as a Node. As the
// transaction executes it reports the 64-bit hashes of the data items it
// reads and writes via Node.Read and Node.Write; txgraph incrementally
// builds a conflict graph between overlapping transactions and, at
// Node.Commit, rejects any transaction with an outgoing dependency on an
// already-committed writer.
//
// txgraph does not hash data items, store their values, execute
// transactions, or persist anything: those are the caller's concern. See
// pkg/hashid and pkg/store for one concrete way to wire txgraph into a
// real key-value store.
package txgraph

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/orneryd/txgraph/pkg/alloc"
)

const (
	defaultN      = 1_000_000
	defaultP      = 0.01
	defaultAutoGC = 1000
)

// Options configures a Graph. The zero value is valid and resolves to the
// documented defaults (SPEC_FULL.md §6.2).
type Options struct {
	// Alloc is the allocator used for every heap allocation the graph
	// performs. Nil selects alloc.Default(), an unbounded counting
	// allocator.
	Alloc alloc.Allocator

	// N is the bloom filter's target element count. Non-positive selects
	// the default of 1,000,000.
	N int64

	// P is the bloom filter's target false positive rate. It must be
	// finite and strictly positive; any other value selects the default
	// of 0.01.
	P float64

	// AutoGC controls automatic mark-and-sweep garbage collection.
	// Positive values are the number of node deactivations between
	// automatic GC cycles. Zero selects the default of 1000. Negative
	// disables autogc entirely: nodes are reclaimed only via an explicit
	// GC call or when Close runs its final sweep. (The reference C
	// implementation's "non-positive means use the default" behavior at
	// construction time contradicts its own documented "-1 disables"
	// contract; this port honors the documented contract instead, see
	// "Open questions resolved" in DESIGN.md.)
	AutoGC int
}

func resolveN(n int64) uint64 {
	if n <= 0 {
		return defaultN
	}
	return uint64(n)
}

func resolveP(p float64) float64 {
	if p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p) {
		return p
	}
	return defaultP
}

func resolveAutoGC(v int) (threshold int, enabled bool) {
	switch {
	case v > 0:
		return v, true
	case v == 0:
		return defaultAutoGC, true
	default:
		return 0, false
	}
}

// Graph owns a population of transaction nodes and the allocator, GC
// policy, and ident counter they share. A Graph is not internally
// synchronized: callers must serialize all operations on a graph and its
// nodes externally (SPEC_FULL.md §5).
type Graph struct {
	head, tail *Node

	ident     uint64
	gccounter int
	autogc    int
	autogcOn  bool

	alloc alloc.Allocator
	n     uint64
	p     float64
}

// New constructs a Graph. It returns ok=false only if opts.Alloc refuses
// the allocation for the graph's own bookkeeping (simulated OOM); callers
// using the default allocator will never see this.
func New(opts Options) (g *Graph, ok bool) {
	a := opts.Alloc
	if a == nil {
		a = alloc.Default()
	}
	if !a.Alloc(approxNodeSize) { // sentinel pair accounting
		return nil, false
	}
	g = &Graph{
		alloc: a,
		n:     resolveN(opts.N),
		p:     resolveP(opts.P),
	}
	g.autogc, g.autogcOn = resolveAutoGC(opts.AutoGC)
	g.head = &Node{label: "<head>"}
	g.tail = &Node{label: "<tail>"}
	g.head.next = g.tail
	g.tail.prev = g.head
	return g, true
}

func (g *Graph) autogcEnabled() bool { return g.autogcOn }

// Begin allocates a new ACTIVE node, assigns it the next ident, appends it
// to the tail of the live list, and gives it the default label "T(<ident>)".
// It returns ok=false only if the allocator refuses the node's allocation.
func (g *Graph) Begin() (n *Node, ok bool) {
	if !g.alloc.Alloc(approxNodeSize) {
		return nil, false
	}
	n = &Node{
		graph:  g,
		state:  Active,
		reads:  newHashSet(g.n, g.p),
		writes: newHashSet(g.n, g.p),
		outs:   &EdgeMap{},
		ins:    &EdgeMap{},
	}
	g.ident++
	n.ident = g.ident
	n.SetLabel("")

	g.tail.prev.next = n
	n.prev = g.tail.prev
	n.next = g.tail
	g.tail.prev = n
	return n, true
}

func unlink(n *Node) {
	if n.prev != nil {
		n.prev.next = n.next
		n.next.prev = n.prev
		n.prev = nil
		n.next = nil
	}
	n.graph = nil
}

// freeNode releases a node's resources back to its graph's allocator and
// removes it from the live list.
func (g *Graph) freeNode(n *Node) {
	unlink(n)
	n.reads.free(g.alloc)
	n.writes.free(g.alloc)
	n.outs.free(g.alloc)
	n.ins.free(g.alloc)
	g.alloc.Free(approxNodeSize)
}

func gcMark(n *Node) {
	if n.reached {
		return
	}
	n.reached = true
	n.outs.Each(func(_ EdgeKind, target *Node) {
		gcMark(target)
	})
}

// GC runs an explicit mark-and-sweep pass: every node reachable from a
// currently-ACTIVE node via outgoing edges is retained; everything else is
// freed (SPEC_FULL.md §4.6, invariant 7).
func (g *Graph) GC() {
	for node := g.head.next; node != g.tail; node = node.next {
		if node.state == Active {
			gcMark(node)
		}
	}
	node := g.head.next
	for node != g.tail {
		next := node.next
		if node.reached {
			node.reached = false
		} else {
			g.freeNode(node)
		}
		node = next
	}
}

// Close runs a final GC pass, then forcibly unlinks and frees every
// remaining node, and releases the graph's own bookkeeping allocation.
// Any node still ACTIVE is marked RELEASED first, as a courtesy to an
// observer that captured a reference to it before Close — the node's
// storage is freed immediately afterward, so that reference must not be
// used again. Close must not be called more than once.
func (g *Graph) Close() {
	g.GC()
	for g.head.next != g.tail {
		node := g.head.next
		if node.state == Active {
			node.state = Released
		}
		g.freeNode(node)
	}
	g.alloc.Free(approxNodeSize)
}

// stateANSI returns the ANSI-colored rendering of a state the way the
// reference implementation's ptx_graph_print does.
func stateANSI(s State) string {
	switch s {
	case Active:
		return "\033[1mACTIVE\033[0m"
	case Committed:
		return "\033[1;32mCOMMIT\033[0m"
	case RolledBack:
		return "\033[1;31mROLLBACK\033[0m"
	case Nomem:
		return "\033[1;33mNOMEM\033[0m"
	case Released:
		return "\033[2mRELEASED\033[0m"
	default:
		return s.String()
	}
}

// Print writes one line per live node: its label, state, in/out edge
// counts, and a <READONLY> marker for nodes with no recorded writes. If
// withEdges is set, every outgoing and incoming edge is also printed as
// "<src> ----(kind)---> <dst>" / "<src> <---(kind)---- <dst>". If color is
// set, states are rendered with the same ANSI styling as the reference
// implementation's terminal output.
func (g *Graph) Print(w io.Writer, withEdges bool, color bool) {
	for node := g.head.next; node != g.tail; node = node.next {
		state := node.state.String()
		if color {
			state = stateANSI(node.state)
		}
		fmt.Fprintf(w, "%s %s (%d ins, %d outs)", node.label, state, node.ins.Count(), node.outs.Count())
		if node.writes.Empty() {
			if color {
				fmt.Fprint(w, " \033[2m<READONLY>\033[0m")
			} else {
				fmt.Fprint(w, " <READONLY>")
			}
		}
		fmt.Fprintln(w)
		if withEdges {
			node.outs.Each(func(kind EdgeKind, target *Node) {
				fmt.Fprintf(w, "  %s ----(%s)---> %s\n", node.label, kind, target.label)
			})
			node.ins.Each(func(kind EdgeKind, target *Node) {
				fmt.Fprintf(w, "  %s <---(%s)---- %s\n", node.label, kind, target.label)
			})
		}
	}
}

// PrintState returns a comma-separated "<label> <STATE>" list in
// live-list (creation) order, matching SPEC_FULL.md §6.3 exactly. It is
// stable enough to assert against directly in tests.
func (g *Graph) PrintState() string {
	var sb strings.Builder
	first := true
	for node := g.head.next; node != g.tail; node = node.next {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(node.label)
		sb.WriteByte(' ')
		sb.WriteString(node.state.String())
	}
	return sb.String()
}
