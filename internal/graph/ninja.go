package graph

import (
	"fmt"
	"io"
	"sort"
)

// WriteNinja renders the graph in Ninja syntax, the output of
// `litani graph --format ninja`. Nothing in run-build writes a litani.ninja
// file into the run directory. Litani's own dispatcher schedules jobs
// natively and never reads Ninja output, so this only describes the same
// rule/edge shape the dispatcher uses, not a file buildable by an external
// ninja binary.
func WriteNinja(w io.Writer, g *Graph) error {
	fmt.Fprintln(w, "# generated by litani - do not edit, not consumed by the build itself")
	for _, n := range sortedByTarget(g.Nodes) {
		if n.Phony {
			fmt.Fprintf(w, "build %s: phony %s\n", n.Target, joinInputs(n.Inputs))
			continue
		}
		fmt.Fprintf(w, "rule job_%s\n  command = %s\n", shortID(n.JobID), n.Job.Command)
		fmt.Fprintf(w, "build %s: job_%s %s\n", joinOutputs(n.Outputs), shortID(n.JobID), joinInputs(n.Inputs))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func joinInputs(inputs []string) string {
	sorted := append([]string{}, inputs...)
	sort.Strings(sorted)
	out := ""
	for i, in := range sorted {
		if i > 0 {
			out += " "
		}
		out += in
	}
	return out
}

func joinOutputs(outputs []string) string {
	return joinInputs(outputs)
}
