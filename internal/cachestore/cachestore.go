// Package cachestore owns the Cache Store (spec ch. 4.2): the single JSON
// document holding a Run. It is a single-writer resource — init creates it,
// run-build finalization rewrites it wholesale — and is read by the Report
// Renderer and the Pipeline Postprocessor.
package cachestore

import (
	"fmt"
	"os"
	"time"

	"github.com/litani-build/litani/internal/model"
	"github.com/litani-build/litani/internal/rundir"
)

// Store wraps a Layout with the typed Run document it manages.
type Store struct {
	layout *rundir.Layout
}

func New(layout *rundir.Layout) *Store {
	return &Store{layout: layout}
}

// Create seeds a brand-new Cache Store (the init subcommand). It is an error
// to call Create against a run directory that already has a cache file.
func (s *Store) Create(project string, versionMajor, versionMinor, versionPatch int, pools []model.Pool) (*model.Run, error) {
	if _, err := os.Stat(s.layout.CacheFile()); err == nil {
		return nil, fmt.Errorf("cachestore: create: %s already exists", s.layout.CacheFile())
	}
	run := &model.Run{
		RunID:        s.layout.RunID,
		Project:      project,
		VersionMajor: versionMajor,
		VersionMinor: versionMinor,
		VersionPatch: versionPatch,
		Version:      fmt.Sprintf("%d.%d.%d", versionMajor, versionMinor, versionPatch),
		StartTime:    time.Now().UTC(),
		Status:       model.RunInProgress,
		Pools:        pools,
		Jobs:         nil,
	}
	if err := rundir.WriteJSON(s.layout.CacheFile(), run); err != nil {
		return nil, fmt.Errorf("cachestore: create: %w", err)
	}
	return run, nil
}

// Load reads the Cache Store document back into memory.
func (s *Store) Load() (*model.Run, error) {
	var run model.Run
	if err := rundir.ReadJSON(s.layout.CacheFile(), &run); err != nil {
		return nil, fmt.Errorf("cachestore: load: %w", err)
	}
	return &run, nil
}

// Finalize is the single write that happens at the end of run-build: it
// folds the loaded job registry, the sealed parallelism timeline and the
// run-level status into the Cache Store in one atomic replace (spec ch. 4.2,
// ch. 4.5 "Parallelism timeline").
func (s *Store) Finalize(run *model.Run, jobs []model.JobSpec, timeline model.Timeline, status model.RunStatus) error {
	run.Jobs = jobs
	run.Parallelism = timeline
	run.Status = status
	now := time.Now().UTC()
	run.EndTime = &now
	if err := rundir.WriteJSON(s.layout.CacheFile(), run); err != nil {
		return fmt.Errorf("cachestore: finalize: %w", err)
	}
	return nil
}
