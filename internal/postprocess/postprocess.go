// Package postprocess implements the Pipeline Postprocessor (spec ch. 4.8):
// once the dispatcher reaches quiescence, it folds per-job outcomes into a
// per-pipeline outcome, decides the run's overall status, and performs the
// single finalizing write to the Cache Store.
package postprocess

import (
	"sort"

	"github.com/litani-build/litani/internal/cachestore"
	"github.com/litani-build/litani/internal/dispatch"
	"github.com/litani-build/litani/internal/model"
)

// PipelineOutcome is the rolled-up result for one pipeline_name (spec ch.
// 4.8, "success iff every job is success or fail_ignored").
type PipelineOutcome struct {
	Name    string
	Success bool
}

// Summarize computes each pipeline's outcome and the overall run outcome
// from the dispatcher's final job states.
func Summarize(jobs []model.JobSpec, states map[string]dispatch.JobState) ([]PipelineOutcome, model.RunStatus) {
	byPipeline := map[string][]model.JobSpec{}
	for _, j := range jobs {
		byPipeline[j.PipelineName] = append(byPipeline[j.PipelineName], j)
	}

	names := make([]string, 0, len(byPipeline))
	for name := range byPipeline {
		names = append(names, name)
	}
	sort.Strings(names)

	outcomes := make([]PipelineOutcome, 0, len(names))
	runSuccess := true
	for _, name := range names {
		success := true
		for _, j := range byPipeline[name] {
			switch states[j.JobID] {
			case dispatch.StateSucceeded, dispatch.StateFailIgnored:
				// contributes success
			default:
				success = false
			}
		}
		outcomes = append(outcomes, PipelineOutcome{Name: name, Success: success})
		if !success {
			runSuccess = false
		}
	}

	status := model.RunSuccess
	if !runSuccess {
		status = model.RunFailure
	}
	return outcomes, status
}

// Finalize performs the single terminal Cache Store write that marks the run
// complete (spec ch. 4.8, "Writes final Cache Store"). It does not write
// run.json; run-build renders run.json once more after Finalize returns.
func Finalize(store *cachestore.Store, run *model.Run, jobs []model.JobSpec, result *dispatch.Result) (model.RunStatus, error) {
	statusedJobs := make([]model.JobSpec, len(jobs))
	copy(statusedJobs, jobs)

	_, runStatus := Summarize(jobs, result.States)
	if err := store.Finalize(run, statusedJobs, result.Timeline, runStatus); err != nil {
		return "", err
	}
	return runStatus, nil
}

// AnyPipelineFailed reports whether --fail-on-pipeline-failure should cause
// a non-zero process exit (spec ch. 4.8, "Exit code").
func AnyPipelineFailed(outcomes []PipelineOutcome) bool {
	for _, o := range outcomes {
		if !o.Success {
			return true
		}
	}
	return false
}
