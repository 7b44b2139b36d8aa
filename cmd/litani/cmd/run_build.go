package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/litani-build/litani/internal/cachestore"
	"github.com/litani-build/litani/internal/configcheck"
	"github.com/litani-build/litani/internal/dispatch"
	"github.com/litani-build/litani/internal/executor"
	"github.com/litani-build/litani/internal/graph"
	"github.com/litani-build/litani/internal/postprocess"
	"github.com/litani-build/litani/internal/registry"
	"github.com/litani-build/litani/internal/renderer"
)

var (
	runBuildParallel              int
	runBuildPipelines             []string
	runBuildCIStage               string
	runBuildDryRun                bool
	runBuildFailOnPipelineFailure bool
)

func newRunBuildCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "run-build",
		Short: "Assemble the graph and dispatch every registered job",
		Long: `Loads every job persisted by add-job, validates pool references and
outcome policy, assembles the dependency graph, and dispatches jobs under
the global --parallel cap and each job's pool depth. A background renderer
keeps run.json and the html report current while jobs are in flight.`,
		Args: cobra.NoArgs,
		RunE: runRunBuild,
	}
	c.Flags().IntVarP(&runBuildParallel, "parallel", "j", 0, "max concurrently running jobs; 0 means unbounded, unset defaults to runtime.NumCPU()")
	c.Flags().StringSliceVar(&runBuildPipelines, "pipelines", nil, "restrict dispatch to these pipeline_name values and their dependencies")
	c.Flags().StringVar(&runBuildCIStage, "ci-stage", "", "restrict dispatch to this ci_stage and its dependencies")
	c.Flags().BoolVar(&runBuildDryRun, "dry-run", false, "walk the graph and mark every job successful without executing it")
	c.Flags().BoolVar(&runBuildFailOnPipelineFailure, "fail-on-pipeline-failure", false, "exit non-zero if any pipeline did not fully succeed")
	c.MarkFlagsMutuallyExclusive("pipelines", "ci-stage")
	return c
}

func runRunBuild(cmd *cobra.Command, args []string) error {
	layout, err := resolveLayout()
	if err != nil {
		return err
	}
	rlog := entryLog("run-build")

	run, err := cachestore.New(layout).Load()
	if err != nil {
		return fmt.Errorf("run-build: load run: %w", err)
	}

	jobs, err := registry.New(layout).LoadAll()
	if err != nil {
		return fmt.Errorf("run-build: load jobs: %w", err)
	}
	if err := configcheck.ValidateOrError(jobs, run.Pools); err != nil {
		return fmt.Errorf("run-build: %w", err)
	}

	g, err := graph.Assemble(jobs)
	if err != nil {
		return fmt.Errorf("run-build: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rctx, rcancel := context.WithCancel(ctx)
	rep := renderer.New(layout, rlog)
	renderDone := make(chan struct{})
	go func() {
		rep.Run(rctx)
		close(renderDone)
	}()

	var parallel *int
	if cmd.Flags().Changed("parallel") {
		v := runBuildParallel
		parallel = &v
	}

	d := dispatch.New(g, executor.New(layout, rlog), rlog)
	result, err := d.Run(ctx, dispatch.Options{
		Parallel:  parallel,
		Pipelines: runBuildPipelines,
		CIStage:   runBuildCIStage,
		DryRun:    runBuildDryRun,
		Pools:     run.Pools,
	})
	rcancel()
	<-renderDone
	if err != nil {
		return fmt.Errorf("run-build: %w", err)
	}

	status, err := postprocess.Finalize(cachestore.New(layout), run, jobs, result)
	if err != nil {
		return fmt.Errorf("run-build: %w", err)
	}
	if err := rep.RenderOnce(); err != nil {
		rlog.WithError(err).Warn("final run.json render failed")
	}

	outcomes, _ := postprocess.Summarize(jobs, result.States)
	for _, o := range outcomes {
		rlog.WithField("pipeline", o.Name).WithField("success", o.Success).Info("pipeline finished")
	}
	fmt.Printf("run %s: %s\n", layout.RunID, status)

	if runBuildFailOnPipelineFailure && postprocess.AnyPipelineFailed(outcomes) {
		return fmt.Errorf("run-build: one or more pipelines failed")
	}
	return nil
}
