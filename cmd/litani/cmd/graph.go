package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/litani-build/litani/internal/graph"
	"github.com/litani-build/litani/internal/registry"
)

var (
	graphFormat string
	graphOutput string
)

func newGraphCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "graph",
		Short: "Render the dependency graph of the current run",
		Long: `Assembles the graph from the job registry and writes it as DOT or Ninja,
without dispatching anything.`,
		Args: cobra.NoArgs,
		RunE: runGraph,
	}
	c.Flags().StringVar(&graphFormat, "format", "dot", "dot or ninja")
	c.Flags().StringVar(&graphOutput, "output", "", "output file (stdout if not specified)")
	return c
}

func runGraph(cmd *cobra.Command, args []string) error {
	layout, err := resolveLayout()
	if err != nil {
		return err
	}
	jobs, err := registry.New(layout).LoadAll()
	if err != nil {
		return fmt.Errorf("graph: load jobs: %w", err)
	}
	g, err := graph.Assemble(jobs)
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}

	out := cmd.OutOrStdout()
	if graphOutput != "" {
		f, err := os.Create(graphOutput)
		if err != nil {
			return fmt.Errorf("graph: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch graphFormat {
	case "dot":
		return graph.WriteDOT(out, g)
	case "ninja":
		return graph.WriteNinja(out, g)
	default:
		return fmt.Errorf("graph: unknown --format %q, want dot or ninja", graphFormat)
	}
}
