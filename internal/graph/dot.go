package graph

import (
	"fmt"
	"io"
	"sort"
)

// WriteDOT renders the assembled graph as Graphviz DOT, the format behind
// the `litani graph` subcommand (spec ch. 6). Phony aggregators are drawn as
// dashed boxes; real jobs are plain boxes labeled by description (falling
// back to command).
func WriteDOT(w io.Writer, g *Graph) error {
	if _, err := fmt.Fprintln(w, "digraph litani {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "  rankdir=LR;")

	for _, n := range sortedByTarget(g.Nodes) {
		label := nodeLabel(n)
		style := "solid"
		if n.Phony {
			style = "dashed"
		}
		fmt.Fprintf(w, "  %q [label=%q style=%s shape=box];\n", n.Target, label, style)
	}
	for _, n := range sortedByTarget(g.Nodes) {
		for _, in := range n.Inputs {
			for _, up := range g.producerOf[in] {
				fmt.Fprintf(w, "  %q -> %q;\n", up.Target, n.Target)
			}
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

func nodeLabel(n *Node) string {
	if n.Phony {
		return n.Target
	}
	if n.Job.Description != "" {
		return n.Job.Description
	}
	return n.Job.Command
}

func sortedByTarget(nodes []*Node) []*Node {
	out := append([]*Node{}, nodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}
