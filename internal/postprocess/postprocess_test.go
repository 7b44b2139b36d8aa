package postprocess

import (
	"testing"

	"github.com/litani-build/litani/internal/dispatch"
	"github.com/litani-build/litani/internal/model"
)

func TestSummarize_FailIgnoredCountsAsPipelineSuccess(t *testing.T) {
	jobs := []model.JobSpec{
		{JobID: "a", PipelineName: "p1"},
		{JobID: "b", PipelineName: "p1"},
		{JobID: "c", PipelineName: "p2"},
	}
	states := map[string]dispatch.JobState{
		"a": dispatch.StateSucceeded,
		"b": dispatch.StateFailIgnored,
		"c": dispatch.StateFailed,
	}
	outcomes, status := Summarize(jobs, states)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(outcomes))
	}
	byName := map[string]PipelineOutcome{}
	for _, o := range outcomes {
		byName[o.Name] = o
	}
	if !byName["p1"].Success {
		t.Fatalf("expected p1 success (fail_ignored counts as success)")
	}
	if byName["p2"].Success {
		t.Fatalf("expected p2 failure")
	}
	if status != model.RunFailure {
		t.Fatalf("expected overall run failure, got %v", status)
	}
}

func TestSummarize_AllSuccessYieldsRunSuccess(t *testing.T) {
	jobs := []model.JobSpec{{JobID: "a", PipelineName: "p1"}}
	states := map[string]dispatch.JobState{"a": dispatch.StateSucceeded}
	_, status := Summarize(jobs, states)
	if status != model.RunSuccess {
		t.Fatalf("expected run success, got %v", status)
	}
}

func TestAnyPipelineFailed(t *testing.T) {
	outcomes := []PipelineOutcome{{Name: "p1", Success: true}, {Name: "p2", Success: false}}
	if !AnyPipelineFailed(outcomes) {
		t.Fatalf("expected true")
	}
}
