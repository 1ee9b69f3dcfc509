package txgraph

import (
	"strings"
	"testing"

	"github.com/orneryd/txgraph/pkg/alloc"
)

func TestNewResolvesZeroValueOptionsToDefaults(t *testing.T) {
	g := mustGraph(t, Options{})
	if g.n != defaultN {
		t.Errorf("n = %d, want default %d", g.n, defaultN)
	}
	if g.p != defaultP {
		t.Errorf("p = %f, want default %f", g.p, defaultP)
	}
	if !g.autogcEnabled() || g.autogc != defaultAutoGC {
		t.Errorf("autogc = (%d, enabled=%v), want (%d, true)", g.autogc, g.autogcEnabled(), defaultAutoGC)
	}
}

func TestNegativeAutoGCDisablesIt(t *testing.T) {
	g := mustGraph(t, Options{AutoGC: -1})
	if g.autogcEnabled() {
		t.Fatal("AutoGC: -1 should disable automatic GC")
	}
}

func TestPrintStateOrdersByCreation(t *testing.T) {
	g := mustGraph(t, Options{AutoGC: -1})
	a, _ := g.Begin()
	b, _ := g.Begin()
	a.SetLabel("T1")
	b.SetLabel("T2")
	a.Write(1)
	a.Commit()
	b.Write(2)
	b.Commit()

	want := "T1 COMMIT, T2 COMMIT"
	if got := g.PrintState(); got != want {
		t.Fatalf("PrintState() = %q, want %q", got, want)
	}
}

func TestPrintIncludesReadonlyMarker(t *testing.T) {
	g := mustGraph(t, Options{AutoGC: -1})
	n, _ := g.Begin()
	n.SetLabel("reader")
	n.Read(1)
	var sb strings.Builder
	g.Print(&sb, false, false)
	if !strings.Contains(sb.String(), "<READONLY>") {
		t.Fatalf("Print() output missing <READONLY> marker: %q", sb.String())
	}
}

func TestGCFreesUnreachableCommittedNodes(t *testing.T) {
	g := mustGraph(t, Options{AutoGC: -1})
	n, _ := g.Begin()
	n.SetLabel("solo")
	n.Write(1)
	n.Commit()

	g.GC()
	if got := g.PrintState(); got != "" {
		t.Fatalf("PrintState() after GC = %q, want empty (no live nodes, no reachers)", got)
	}
}

func TestGCRetainsNodesReachableFromActive(t *testing.T) {
	g := mustGraph(t, Options{AutoGC: -1})
	writer, _ := g.Begin()
	writer.SetLabel("writer")
	reader, _ := g.Begin()
	reader.SetLabel("reader")

	reader.Read(1)
	writer.Write(1) // creates reader -> writer RW edge; writer is reachable
	writer.Commit()

	g.GC()
	state := g.PrintState()
	if !strings.Contains(state, "writer COMMIT") {
		t.Fatalf("PrintState() = %q, want writer retained (reachable from active reader)", state)
	}
	if !strings.Contains(state, "reader ACTIVE") {
		t.Fatalf("PrintState() = %q, want reader still present", state)
	}
}

func TestAutoGCRunsAtThreshold(t *testing.T) {
	g := mustGraph(t, Options{AutoGC: 2})
	for i := 0; i < 2; i++ {
		n, _ := g.Begin()
		n.Write(uint64(i + 100))
		n.Commit()
	}
	// Two independent committed, edge-free nodes: each is freed immediately
	// on deactivate (no outs, no deps) regardless of the threshold, but this
	// also exercises the gccounter reaching autogc without panicking.
	if g.PrintState() != "" {
		t.Fatalf("PrintState() = %q, want empty: both nodes were edge-free on commit", g.PrintState())
	}
}

func TestCloseReleasesActiveNodesAndFreesEverything(t *testing.T) {
	g := mustGraph(t, Options{AutoGC: -1})
	n, _ := g.Begin()
	n.Write(1)
	g.Close()
	if n.State() != Released {
		t.Fatalf("State() after Close = %v, want Released", n.State())
	}
}

func TestGraphLeavesNoLiveAllocationsAfterClose(t *testing.T) {
	a := alloc.Bounded(1 << 20)
	g := mustGraph(t, Options{Alloc: a, AutoGC: -1})
	for i := 0; i < 10; i++ {
		n, _ := g.Begin()
		n.Write(uint64(i))
		n.Read(uint64(i + 1000))
		if i%2 == 0 {
			n.Commit()
		} else {
			n.Rollback()
		}
	}
	g.Close()
	if got := a.Live(); got != 0 {
		t.Fatalf("alloc.Live() after Close = %d, want 0 (no leaks)", got)
	}
}

func TestNewFailsWhenAllocatorRefuses(t *testing.T) {
	a := alloc.Bounded(0)
	_, ok := New(Options{Alloc: a})
	if ok {
		t.Fatal("New() should fail: allocator has zero budget and New charges approxNodeSize")
	}
}
