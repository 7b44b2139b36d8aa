package cachestore

import (
	"testing"

	"github.com/litani-build/litani/internal/model"
	"github.com/litani-build/litani/internal/rundir"
)

func TestStore_CreateLoadFinalize(t *testing.T) {
	prefix := t.TempDir()
	layout := rundir.New(prefix, "run-1")
	if err := layout.EnsureCreated(); err != nil {
		t.Fatalf("EnsureCreated: %v", err)
	}

	store := New(layout)
	pools := []model.Pool{{Name: "io", Depth: 2}}
	run, err := store.Create("demo", 1, 2, 3, pools)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if run.Status != model.RunInProgress {
		t.Fatalf("expected in_progress status, got %q", run.Status)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Project != "demo" || len(loaded.Pools) != 1 || loaded.Pools[0].Depth != 2 {
		t.Fatalf("unexpected loaded run: %+v", loaded)
	}

	jobs := []model.JobSpec{{JobID: "j1", Command: "true"}}
	var tl model.Timeline
	tl.Append(0, 1)
	tl.Append(1, 0)
	if err := store.Finalize(loaded, jobs, tl, model.RunSuccess); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	final, err := store.Load()
	if err != nil {
		t.Fatalf("Load after finalize: %v", err)
	}
	if final.Status != model.RunSuccess {
		t.Fatalf("expected success status, got %q", final.Status)
	}
	if final.EndTime == nil {
		t.Fatalf("expected end_time to be set")
	}
	if len(final.Jobs) != 1 || final.Parallelism.MaxConcurrency() != 1 {
		t.Fatalf("unexpected finalized run: %+v", final)
	}
}
