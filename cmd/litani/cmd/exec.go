package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/litani-build/litani/internal/executor"
	"github.com/litani-build/litani/internal/model"
	"github.com/litani-build/litani/internal/rundir"
)

var execJobID string

func newExecCommand() *cobra.Command {
	c := &cobra.Command{
		Use:    "exec",
		Short:  "Run a single already-registered job and write its status file",
		Hidden: true,
		Long: `Runs exactly one job outside of run-build's dispatch loop. run-build
never shells out to it, calling the executor package in-process instead, and
the rules 'litani graph --format ninja' emits run each job's command directly.`,
		Args: cobra.NoArgs,
		RunE: runExec,
	}
	c.Flags().StringVar(&execJobID, "job-id", "", "job_id to execute (required)")
	return c
}

func runExec(cmd *cobra.Command, args []string) error {
	if execJobID == "" {
		return fmt.Errorf("exec: --job-id is required")
	}
	layout, err := resolveLayout()
	if err != nil {
		return err
	}

	var spec model.JobSpec
	if err := rundir.ReadJSON(layout.JobFile(execJobID), &spec); err != nil {
		return fmt.Errorf("exec: load job %s: %w", execJobID, err)
	}
	status, err := executor.New(layout, entryLog("exec")).Run(context.Background(), spec)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if status.Outcome != model.OutcomeSuccess && status.Outcome != model.OutcomeFailIgnored {
		return fmt.Errorf("exec: job %s exited with outcome %s", execJobID, status.Outcome)
	}
	return nil
}
