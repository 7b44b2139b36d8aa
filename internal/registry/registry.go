// Package registry implements the Job Registry (spec ch. 4.3): add-job
// assigns a fresh UUID, computes a status_file path, and atomically writes
// one JSON file per job under <run>/jobs/. At run-build start every file in
// that directory is loaded back into the Cache Store's jobs list.
package registry

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/litani-build/litani/internal/model"
	"github.com/litani-build/litani/internal/rundir"
)

type Registry struct {
	layout *rundir.Layout
}

func New(layout *rundir.Layout) *Registry {
	return &Registry{layout: layout}
}

// AddJob assigns job_id and status_file, validates the spec's own
// invariants, and persists it. Pool existence against Run.Pools is checked
// separately by Validate at run-build start, since add-job may run before
// every pool has been declared in some workflows — but by default add-job
// also rejects an unknown pool eagerly when pools is non-nil.
func (r *Registry) AddJob(spec model.JobSpec, pools []model.Pool) (model.JobSpec, error) {
	if spec.JobID == "" {
		spec.JobID = uuid.NewString()
	}
	if spec.StatusFile == "" {
		spec.StatusFile = r.layout.StatusFile(spec.JobID)
	}
	if err := spec.Validate(); err != nil {
		return model.JobSpec{}, err
	}
	if spec.Pool != "" && pools != nil {
		if !poolExists(pools, spec.Pool) {
			return model.JobSpec{}, &model.JobConfigError{
				Description: jobDescription(spec),
				Pool:        spec.Pool,
				Message:     "references a pool that does not exist",
			}
		}
	}
	if err := rundir.WriteJSON(r.layout.JobFile(spec.JobID), spec); err != nil {
		return model.JobSpec{}, fmt.Errorf("registry: persist job %s: %w", spec.JobID, err)
	}
	return spec, nil
}

func jobDescription(spec model.JobSpec) string {
	if spec.Description != "" {
		return spec.Description
	}
	return spec.Command
}

func poolExists(pools []model.Pool, name string) bool {
	for _, p := range pools {
		if p.Name == name {
			return true
		}
	}
	return false
}

// LoadAll reads every persisted JobSpec under the jobs directory, sorted by
// job_id for deterministic iteration order (spec open question (a): ties are
// broken by a documented deterministic order rather than left to map
// iteration).
func (r *Registry) LoadAll() ([]model.JobSpec, error) {
	ids, err := r.layout.LoadJobIDs()
	if err != nil {
		return nil, fmt.Errorf("registry: list jobs: %w", err)
	}
	sort.Strings(ids)

	jobs := make([]model.JobSpec, 0, len(ids))
	for _, id := range ids {
		var spec model.JobSpec
		if err := rundir.ReadJSON(r.layout.JobFile(id), &spec); err != nil {
			return nil, fmt.Errorf("registry: load job %s: %w", id, err)
		}
		jobs = append(jobs, spec)
	}
	return jobs, nil
}

// ValidatePools checks every loaded job's pool reference against the run's
// declared pools, returning the first offending job as a *model.JobConfigError
// (spec ch. 4.3, "Failure mode").
func ValidatePools(jobs []model.JobSpec, pools []model.Pool) error {
	for _, j := range jobs {
		if j.Pool == "" {
			continue
		}
		if !poolExists(pools, j.Pool) {
			return &model.JobConfigError{
				Description: jobDescription(j),
				Pool:        j.Pool,
				Message:     "references a pool that does not exist",
			}
		}
	}
	return nil
}
