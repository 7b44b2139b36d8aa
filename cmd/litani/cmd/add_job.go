package cmd

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/litani-build/litani/internal/cachestore"
	"github.com/litani-build/litani/internal/model"
	"github.com/litani-build/litani/internal/registry"
)

var (
	addJobCommand                string
	addJobPipelineName           string
	addJobCIStage                string
	addJobInputs                 []string
	addJobOutputs                []string
	addJobCwd                    string
	addJobStdoutFile             string
	addJobStderrFile             string
	addJobTimeout                int
	addJobDescription            string
	addJobPool                   string
	addJobInterleaveStdoutStderr bool
	addJobIgnoreReturns          []int
	addJobOkReturns              []int
	addJobTimeoutOK              bool
	addJobTimeoutIgnore          bool
	addJobOutcomeTable           string
	addJobProfileMemory          bool
	addJobProfileMemoryInterval  int
	addJobTags                   []string
	addJobInputGlobs             []string
	addJobOutputGlobs            []string
)

func newAddJobCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "add-job",
		Short: "Register one job in the current run",
		Long: `Assigns the job a fresh job_id and status_file, validates it, and
persists it into the run's job registry. The graph is not assembled until
run-build starts.`,
		Args: cobra.NoArgs,
		RunE: runAddJob,
	}
	c.Flags().StringVar(&addJobCommand, "command", "", "shell command to execute (required)")
	c.Flags().StringVar(&addJobPipelineName, "pipeline-name", "", "pipeline this job belongs to (required)")
	c.Flags().StringVar(&addJobCIStage, "ci-stage", "", "build, test, or report (required)")
	c.Flags().StringSliceVar(&addJobInputs, "inputs", nil, "paths this job depends on")
	c.Flags().StringSliceVar(&addJobOutputs, "outputs", nil, "paths this job produces")
	c.Flags().StringVar(&addJobCwd, "cwd", "", "working directory for the command")
	c.Flags().StringVar(&addJobStdoutFile, "stdout-file", "", "path to mirror the job's stdout to, in addition to the in-memory capture")
	c.Flags().StringVar(&addJobStderrFile, "stderr-file", "", "path to mirror the job's stderr to, in addition to the in-memory capture")
	c.Flags().IntVar(&addJobTimeout, "timeout", 0, "seconds before the job is killed, 0 for no timeout")
	c.Flags().StringVar(&addJobDescription, "description", "", "human-readable label shown in reports and the graph")
	c.Flags().StringVar(&addJobPool, "pool", "", "pool this job's concurrency is bounded by")
	c.Flags().BoolVar(&addJobInterleaveStdoutStderr, "interleave-stdout-stderr", false, "merge stdout and stderr into one capture")
	c.Flags().IntSliceVar(&addJobIgnoreReturns, "ignore-returns", nil, "return codes classified as success")
	c.Flags().IntSliceVar(&addJobOkReturns, "ok-returns", nil, "return codes classified as fail_ignored")
	c.Flags().BoolVar(&addJobTimeoutOK, "timeout-ok", false, "classify a timeout as success")
	c.Flags().BoolVar(&addJobTimeoutIgnore, "timeout-ignore", false, "classify a timeout as fail_ignored")
	c.Flags().StringVar(&addJobOutcomeTable, "outcome-table", "", "path to a JSON return-code-to-outcome override table")
	c.Flags().BoolVar(&addJobProfileMemory, "profile-memory", false, "sample RSS memory while the job runs")
	c.Flags().IntVar(&addJobProfileMemoryInterval, "profile-memory-interval", 1, "seconds between RSS samples")
	c.Flags().StringSliceVar(&addJobTags, "tags", nil, "free-form labels carried onto the job")
	c.Flags().StringSliceVar(&addJobInputGlobs, "input-globs", nil, "doublestar patterns (e.g. 'src/**/*.go') expanded against the filesystem and appended to --inputs")
	c.Flags().StringSliceVar(&addJobOutputGlobs, "output-globs", nil, "doublestar patterns expanded against the filesystem and appended to --outputs")
	return c
}

func runAddJob(cmd *cobra.Command, args []string) error {
	layout, err := resolveLayout()
	if err != nil {
		return err
	}

	run, err := cachestore.New(layout).Load()
	if err != nil {
		return fmt.Errorf("add-job: load run: %w", err)
	}

	inputs, err := expandGlobs(addJobInputs, addJobInputGlobs)
	if err != nil {
		return fmt.Errorf("add-job: --input-globs: %w", err)
	}
	outputs, err := expandGlobs(addJobOutputs, addJobOutputGlobs)
	if err != nil {
		return fmt.Errorf("add-job: --output-globs: %w", err)
	}

	spec := model.JobSpec{
		PipelineName:           addJobPipelineName,
		CIStage:                model.CIStage(addJobCIStage),
		Inputs:                 inputs,
		Outputs:                outputs,
		Command:                addJobCommand,
		Cwd:                    addJobCwd,
		StdoutFile:             addJobStdoutFile,
		StderrFile:             addJobStderrFile,
		TimeoutSeconds:         addJobTimeout,
		InterleaveStdoutStderr: addJobInterleaveStdoutStderr,
		Description:            addJobDescription,
		Pool:                   addJobPool,
		IgnoreReturns:          addJobIgnoreReturns,
		OkReturns:              addJobOkReturns,
		TimeoutOK:              addJobTimeoutOK,
		TimeoutIgnore:          addJobTimeoutIgnore,
		OutcomeTable:           addJobOutcomeTable,
		ProfileMemory:          addJobProfileMemory,
		ProfileMemoryInterval:  addJobProfileMemoryInterval,
		Tags:                   addJobTags,
	}

	added, err := registry.New(layout).AddJob(spec, run.Pools)
	if err != nil {
		return fmt.Errorf("add-job: %w", err)
	}
	fmt.Println(added.JobID)
	return nil
}

// expandGlobs appends every filesystem match of each doublestar pattern to
// literal, deduplicating the combined list so a path named explicitly and
// also matched by a glob is not registered twice (spec ch. 3, "inputs and
// outputs... compared literally for DAG edges" — glob expansion happens
// once here, at registration time, not at dispatch time).
func expandGlobs(literal, patterns []string) ([]string, error) {
	seen := make(map[string]bool, len(literal))
	out := make([]string, 0, len(literal))
	for _, p := range literal {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
