// Package main provides the txgraph CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "txgraph",
		Short: "txgraph - in-memory serializable-snapshot conflict detector",
		Long: `txgraph drives a conflict graph over transaction read/write sets and
certifies each one for serializability at commit time.

This CLI is a diagnostic harness: it replays named scenario scripts or a
line-oriented script file against a live graph and prints the resulting
node states and edges.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("txgraph v%s\n", version)
		},
	})

	demoCmd := &cobra.Command{
		Use:   "demo [scenario]",
		Short: "Replay a built-in certification scenario",
		Long:  "Replay one of the named scenarios (or all of them with no argument) and print terminal states.",
		RunE:  runDemo,
	}
	demoCmd.Flags().Bool("edges", false, "also print each node's dependency edges")
	rootCmd.AddCommand(demoCmd)

	runCmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Drive a graph from a line-oriented script file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}
	runCmd.Flags().Bool("edges", false, "also print each node's dependency edges")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
