// Package main is the solvent command line interface.
//
// It drives the same evaluation loop as the MCP server from the shell:
// solve runs a single task, bench evaluates a whole suite with bounded
// parallelism, report renders stored results, and screen runs the guardrail
// scanner over a source file.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
