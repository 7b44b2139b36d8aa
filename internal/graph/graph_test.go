package graph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/litani-build/litani/internal/model"
)

func buildJobs() []model.JobSpec {
	return []model.JobSpec{
		{
			JobID: "job-a", Command: "cc -c a.c -o a.o",
			PipelineName: "build", CIStage: model.StageBuild,
			Outputs: []string{"a.o"}, StatusFile: "/run/status/job-a.json",
		},
		{
			JobID: "job-b", Command: "cc a.o -o a.out",
			PipelineName: "build", CIStage: model.StageBuild,
			Inputs: []string{"a.o"}, Outputs: []string{"a.out"}, StatusFile: "/run/status/job-b.json",
		},
		{
			JobID: "job-c", Command: "./a.out --test",
			PipelineName: "build", CIStage: model.StageTest,
			Inputs: []string{"a.out"}, StatusFile: "/run/status/job-c.json",
		},
	}
}

func TestAssemble_BuildsEdgesFromInputsOutputs(t *testing.T) {
	g, err := Assemble(buildJobs())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	b := g.ByJobID("job-b")
	if b == nil {
		t.Fatalf("expected node for job-b")
	}
	producers := g.Producers("a.o")
	if len(producers) != 1 || producers[0].JobID != "job-a" {
		t.Fatalf("expected job-a to produce a.o, got %+v", producers)
	}
}

func TestAssemble_AddsPhonyPipelineAndStageAggregators(t *testing.T) {
	g, err := Assemble(buildJobs())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	pipeline := g.PhonyTarget("pipeline", "build")
	if pipeline == nil || !pipeline.Phony {
		t.Fatalf("expected a phony pipeline aggregator for 'build'")
	}
	if pipeline.Pool != "" {
		t.Fatalf("phony nodes must never carry pool membership, got %q", pipeline.Pool)
	}
	stage := g.PhonyTarget("ci_stage", string(model.StageTest))
	if stage == nil {
		t.Fatalf("expected a phony ci_stage aggregator for 'test'")
	}
}

func TestAssemble_DetectsCycle(t *testing.T) {
	jobs := []model.JobSpec{
		{JobID: "x", Command: "a", Inputs: []string{"y.out"}, Outputs: []string{"x.out"}, StatusFile: "/s/x.json", PipelineName: "p", CIStage: model.StageBuild},
		{JobID: "y", Command: "b", Inputs: []string{"x.out"}, Outputs: []string{"y.out"}, StatusFile: "/s/y.json", PipelineName: "p", CIStage: model.StageBuild},
	}
	if _, err := Assemble(jobs); err == nil {
		t.Fatalf("expected cycle detection error")
	}
}

func TestAncestorsOf_PrunesToPipelineSelection(t *testing.T) {
	jobs := buildJobs()
	jobs = append(jobs, model.JobSpec{
		JobID: "job-d", Command: "echo unrelated", PipelineName: "other",
		CIStage: model.StageBuild, StatusFile: "/run/status/job-d.json",
	})
	g, err := Assemble(jobs)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	target := g.PhonyTarget("pipeline", "build")
	ancestors := g.AncestorsOf(target)
	if _, ok := ancestors["job-d"]; ok {
		t.Fatalf("job-d belongs to a different pipeline and should be pruned")
	}
	for _, id := range []string{"job-a", "job-b", "job-c"} {
		if _, ok := ancestors[id]; !ok {
			t.Fatalf("expected %s in pipeline ancestors", id)
		}
	}
}

func TestWriteDOT_EmitsNodesAndEdges(t *testing.T) {
	g, err := Assemble(buildJobs())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteDOT(&buf, g); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "digraph litani {") {
		t.Fatalf("expected digraph header, got %q", out)
	}
	if !strings.Contains(out, "->") {
		t.Fatalf("expected at least one edge in DOT output")
	}
}

func TestWriteNinja_EmitsRulePerJob(t *testing.T) {
	g, err := Assemble(buildJobs())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteNinja(&buf, g); err != nil {
		t.Fatalf("WriteNinja: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "rule job_job-a") {
		t.Fatalf("expected a rule for job-a, got:\n%s", out)
	}
}
