package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/orneryd/txgraph/pkg/hashid"
	"github.com/orneryd/txgraph/txgraph"
)

// scenario is one named, scripted certification walkthrough. step runs the
// scenario's transaction calls against a fresh graph.
type scenario struct {
	name string
	step func(g *txgraph.Graph, h hashid.Hasher)
}

var scenarios = []scenario{
	{"write-skew-2", func(g *txgraph.Graph, h hashid.Hasher) {
		t1, _ := g.Begin()
		t1.SetLabel("T1")
		t2, _ := g.Begin()
		t2.SetLabel("T2")
		doctors := h.HashString("doctors")
		t1.Read(doctors)
		t2.Read(doctors)
		t1.Write(doctors)
		t1.Commit()
		t2.Write(doctors)
		t2.Commit()
	}},
	{"write-skew-3", func(g *txgraph.Graph, h hashid.Hasher) {
		t1, _ := g.Begin()
		t1.SetLabel("T1")
		t2, _ := g.Begin()
		t2.SetLabel("T2")
		t3, _ := g.Begin()
		t3.SetLabel("T3")
		doctors := h.HashString("doctors")
		t1.Read(doctors)
		t2.Read(doctors)
		t3.Read(doctors)
		t1.Write(doctors)
		t1.Commit()
		t2.Write(doctors)
		t2.Commit()
		t3.Write(doctors)
		t3.Commit()
	}},
	{"receipts", func(g *txgraph.Graph, h hashid.Hasher) {
		currentBatch := h.HashString("current-batch")
		receipts := h.HashString("receipts")
		t2, _ := g.Begin()
		t2.SetLabel("T2")
		t2.Read(currentBatch)
		t3, _ := g.Begin()
		t3.SetLabel("T3")
		t3.Write(currentBatch)
		t3.Commit()
		t1, _ := g.Begin()
		t1.SetLabel("T1")
		t1.Read(currentBatch)
		t1.Read(receipts)
		t1.Commit()
		t2.Write(receipts)
		t2.Commit()
	}},
	{"dots-2", func(g *txgraph.Graph, h hashid.Hasher) {
		dots := h.HashString("dots")
		t1, _ := g.Begin()
		t1.SetLabel("T1")
		t2, _ := g.Begin()
		t2.SetLabel("T2")
		t1.Write(dots)
		t2.Write(dots)
		t2.Commit()
		t2prime, _ := g.Begin()
		t2prime.SetLabel("T2'")
		t2prime.Read(dots)
		t2prime.Commit()
		t1.Commit()
		t1prime, _ := g.Begin()
		t1prime.SetLabel("T1'")
		t1prime.Write(dots)
		t1prime.Commit()
	}},
	{"intersecting", func(g *txgraph.Graph, h hashid.Hasher) {
		mytab := h.HashString("mytab")
		t1, _ := g.Begin()
		t1.SetLabel("T1")
		t2, _ := g.Begin()
		t2.SetLabel("T2")
		t1.Read(mytab)
		t1.Write(mytab)
		t2.Read(mytab)
		t2.Write(mytab)
		t2.Commit()
		t1.Commit()
	}},
	{"write-read", func(g *txgraph.Graph, h hashid.Hasher) {
		dots := h.HashString("dots")
		t1, _ := g.Begin()
		t1.SetLabel("T1")
		t2, _ := g.Begin()
		t2.SetLabel("T2")
		t1.Write(dots)
		t2.Read(dots)
		t2.Commit()
		t1.Commit()
	}},
	{"write-write", func(g *txgraph.Graph, h hashid.Hasher) {
		checking := h.HashString("checking")
		t1, _ := g.Begin()
		t1.SetLabel("T1")
		t2, _ := g.Begin()
		t2.SetLabel("T2")
		t1.Write(checking)
		t2.Write(checking)
		t1.Commit()
		t2.Commit()
	}},
	{"overdraft", func(g *txgraph.Graph, h hashid.Hasher) {
		checking := h.HashString("checking")
		saving := h.HashString("saving")
		t1, _ := g.Begin()
		t1.SetLabel("T1")
		t1.Read(checking)
		t1.Read(saving)
		t2, _ := g.Begin()
		t2.SetLabel("T2")
		t2.Read(checking)
		t2.Read(saving)
		t1.Write(saving)
		t2.Write(checking)
		t1.Commit()
		t2.Commit()
	}},
}

func findScenario(name string) (scenario, bool) {
	for _, s := range scenarios {
		if s.name == name {
			return s, true
		}
	}
	return scenario{}, false
}

func runDemo(cmd *cobra.Command, args []string) error {
	withEdges, _ := cmd.Flags().GetBool("edges")
	h := hashid.Default()

	names := make([]string, 0, len(scenarios))
	if len(args) == 1 {
		if _, ok := findScenario(args[0]); !ok {
			return fmt.Errorf("unknown scenario %q", args[0])
		}
		names = append(names, args[0])
	} else {
		for _, s := range scenarios {
			names = append(names, s.name)
		}
		sort.Strings(names)
	}

	for _, name := range names {
		s, _ := findScenario(name)
		g, ok := txgraph.New(txgraph.Options{AutoGC: -1})
		if !ok {
			return fmt.Errorf("scenario %s: failed to construct graph", name)
		}
		s.step(g, h)
		fmt.Fprintf(os.Stdout, "== %s ==\n", name)
		fmt.Fprintln(os.Stdout, g.PrintState())
		g.Print(os.Stdout, withEdges, true)
		fmt.Fprintln(os.Stdout)
		g.Close()
	}
	return nil
}
