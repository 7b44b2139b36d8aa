package renderer

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/litani-build/litani/internal/cachestore"
	"github.com/litani-build/litani/internal/model"
	reg "github.com/litani-build/litani/internal/registry"
	"github.com/litani-build/litani/internal/rundir"
)

func TestRenderOnce_TreatsMissingStatusAsRunning(t *testing.T) {
	prefix := t.TempDir()
	layout := rundir.New(prefix, "run-1")
	if err := layout.EnsureCreated(); err != nil {
		t.Fatalf("EnsureCreated: %v", err)
	}
	store := cachestore.New(layout)
	if _, err := store.Create("demo", 1, 0, 0, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	registry := reg.New(layout)
	if _, err := registry.AddJob(model.JobSpec{Command: "true", PipelineName: "p", CIStage: model.StageBuild}, nil); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	r := New(layout, nil)
	if err := r.RenderOnce(); err != nil {
		t.Fatalf("RenderOnce: %v", err)
	}

	b, err := os.ReadFile(layout.RunJSON())
	if err != nil {
		t.Fatalf("read run.json: %v", err)
	}
	var doc reportDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal run.json: %v", err)
	}
	if doc.RunningNow != 1 || len(doc.Jobs) != 1 || !doc.Jobs[0].Running {
		t.Fatalf("expected one running job, got %+v", doc)
	}

	if fi, err := os.Lstat(layout.HTMLSymlink()); err != nil || fi.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("expected html symlink to be created, err=%v", err)
	}
}

func TestRenderOnce_PicksUpCompletedStatus(t *testing.T) {
	prefix := t.TempDir()
	layout := rundir.New(prefix, "run-1")
	layout.EnsureCreated()
	store := cachestore.New(layout)
	store.Create("demo", 1, 0, 0, nil)
	registry := reg.New(layout)
	spec, err := registry.AddJob(model.JobSpec{Command: "true", PipelineName: "p", CIStage: model.StageBuild}, nil)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	status := model.JobStatus{Complete: true, Outcome: model.OutcomeSuccess, WrapperReturnCode: 0}
	if err := rundir.WriteJSON(layout.StatusFile(spec.JobID), status); err != nil {
		t.Fatalf("write status: %v", err)
	}

	r := New(layout, nil)
	if err := r.RenderOnce(); err != nil {
		t.Fatalf("RenderOnce: %v", err)
	}

	b, _ := os.ReadFile(layout.RunJSON())
	var doc reportDocument
	json.Unmarshal(b, &doc)
	if doc.RunningNow != 0 || doc.Jobs[0].Running {
		t.Fatalf("expected the job to be reported complete, got %+v", doc)
	}
	if doc.Jobs[0].Status.Outcome != model.OutcomeSuccess {
		t.Fatalf("expected success outcome, got %+v", doc.Jobs[0].Status)
	}
}
