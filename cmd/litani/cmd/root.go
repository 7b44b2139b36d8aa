// Package cmd wires the litani subcommands (init, add-job, run-build, exec,
// graph, print-capabilities) onto a cobra root command, following the
// Use/Short/Long/Args/RunE shape and package-level command variables this
// codebase's CLI corpus uses throughout.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/litani-build/litani/internal/rundir"
)

var (
	outputPrefix string
	runID        string
	verbose      bool

	log = logrus.New()
)

// NewRootCommand assembles the litani CLI.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "litani",
		Short: "Incremental build orchestrator",
		Long: `litani assembles a dependency graph from a registry of jobs, dispatches
them under global and per-pool parallelism limits, and renders a live report
of the run as it progresses.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(os.Stderr)
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&outputPrefix, "output-prefix", ".", "directory under which the litani/ run tree is created")
	root.PersistentFlags().StringVar(&runID, "run-id", "", "run to operate on (defaults to the most recent litani init)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInitCommand())
	root.AddCommand(newAddJobCommand())
	root.AddCommand(newRunBuildCommand())
	root.AddCommand(newExecCommand())
	root.AddCommand(newGraphCommand())
	root.AddCommand(newPrintCapabilitiesCommand())

	return root
}

// resolveLayout builds the Layout for the current invocation: an explicit
// --run-id wins, otherwise the pointer file left by the most recent init is
// consulted (spec ch. 4.1, "process-wide pointer").
func resolveLayout() (*rundir.Layout, error) {
	id := runID
	if id == "" {
		pointer := rundir.New(outputPrefix, "").PointerFile()
		b, err := os.ReadFile(pointer)
		if err != nil {
			return nil, fmt.Errorf("no --run-id given and no prior 'litani init' found in %s: %w", outputPrefix, err)
		}
		id = strings.TrimSpace(string(b))
	}
	return rundir.New(outputPrefix, id), nil
}

func entryLog(component string) *logrus.Entry {
	return log.WithField("component", component)
}
