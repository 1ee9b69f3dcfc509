package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orneryd/txgraph/pkg/hashid"
	"github.com/orneryd/txgraph/txgraph"
)

// A script file has one instruction per line:
//
//	BEGIN <name>              start a transaction and bind it to <name>
//	READ <name> <item>        record a read of <item> by the bound transaction
//	WRITE <name> <item>       record a write of <item> by the bound transaction
//	COMMIT <name>             attempt to commit the bound transaction
//	ROLLBACK <name>           roll the bound transaction back
//
// Blank lines and lines starting with "#" are ignored.
func runScript(cmd *cobra.Command, args []string) error {
	withEdges, _ := cmd.Flags().GetBool("edges")
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer f.Close()

	g, ok := txgraph.New(txgraph.Options{AutoGC: -1})
	if !ok {
		return fmt.Errorf("run: failed to construct graph")
	}
	defer g.Close()

	h := hashid.Default()
	named := make(map[string]*txgraph.Node)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		op := strings.ToUpper(fields[0])

		switch op {
		case "BEGIN":
			if len(fields) != 2 {
				return fmt.Errorf("run: line %d: BEGIN requires a transaction name", lineNo)
			}
			n, ok := g.Begin()
			if !ok {
				return fmt.Errorf("run: line %d: graph allocator refused Begin", lineNo)
			}
			n.SetLabel(fields[1])
			named[fields[1]] = n
		case "READ", "WRITE":
			if len(fields) != 3 {
				return fmt.Errorf("run: line %d: %s requires a transaction name and an item", lineNo, op)
			}
			n, ok := named[fields[1]]
			if !ok {
				return fmt.Errorf("run: line %d: unknown transaction %q", lineNo, fields[1])
			}
			hash := h.HashString(fields[2])
			if op == "READ" {
				n.Read(hash)
			} else {
				n.Write(hash)
			}
		case "COMMIT":
			if len(fields) != 2 {
				return fmt.Errorf("run: line %d: COMMIT requires a transaction name", lineNo)
			}
			n, ok := named[fields[1]]
			if !ok {
				return fmt.Errorf("run: line %d: unknown transaction %q", lineNo, fields[1])
			}
			committed, oom := n.Commit()
			fmt.Fprintf(os.Stdout, "%s: committed=%v oom=%v\n", fields[1], committed, oom)
		case "ROLLBACK":
			if len(fields) != 2 {
				return fmt.Errorf("run: line %d: ROLLBACK requires a transaction name", lineNo)
			}
			n, ok := named[fields[1]]
			if !ok {
				return fmt.Errorf("run: line %d: unknown transaction %q", lineNo, fields[1])
			}
			n.Rollback()
		default:
			return fmt.Errorf("run: line %d: unknown instruction %q", lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("run: reading script: %w", err)
	}

	fmt.Fprintln(os.Stdout, g.PrintState())
	g.Print(os.Stdout, withEdges, true)
	return nil
}
