// Package main provides the seqfile CLI for writing, inspecting, sorting and
// merging sequence files.
//
// Usage:
//
//	seqfile <command> [flags]
//
// Commands:
//
//	write <file>          Write generated records
//	read <file>           Read a file and optionally verify its records
//	dump <file>           Print the header and records
//	sort <files>          Sort files into --out
//	merge <files>         Merge sorted files into --out
//	check <file>          Verify that a file is sorted
//	bench <file>          Write, read, sort or merge and check in one run
package main

import (
	"fmt"
	"os"

	"github.com/aalhour/seqfile"
)

func main() {
	t := newTool(seqfile.DefaultFS())
	if err := t.Root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
