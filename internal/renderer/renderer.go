// Package renderer implements the Report Renderer (spec ch. 4.7): a
// background worker that, on a fixed cadence, reads the Job Registry and
// every job's status file and folds them into a consolidated run.json plus
// an atomically-swapped "html" symlink. It shares no mutable state with the
// dispatcher — everything it knows comes from the filesystem — so a stalled
// or crashed renderer never corrupts dispatch state, and a stalled dispatcher
// never blocks rendering. Tolerant reads and isolated error handling follow
// the same shape as this codebase's other best-effort status readers: a
// missing or partially-written file degrades to "still running" rather than
// aborting the render pass.
package renderer

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/litani-build/litani/internal/cachestore"
	"github.com/litani-build/litani/internal/model"
	"github.com/litani-build/litani/internal/registry"
	"github.com/litani-build/litani/internal/rundir"
)

// DefaultInterval is the renderer's fixed tick cadence (spec ch. 4.7).
const DefaultInterval = 2 * time.Second

type Renderer struct {
	layout   *rundir.Layout
	registry *registry.Registry
	store    *cachestore.Store
	interval time.Duration
	log      *logrus.Entry
}

func New(layout *rundir.Layout, log *logrus.Entry) *Renderer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Renderer{
		layout:   layout,
		registry: registry.New(layout),
		store:    cachestore.New(layout),
		interval: DefaultInterval,
		log:      log.WithField("component", "renderer"),
	}
}

// Run ticks RenderOnce at r.interval until ctx is cancelled, then performs
// one last render so the final state is never more than one lost tick stale
// (spec ch. 4.7, "final render on termination").
func (r *Renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.RenderOnce(); err != nil {
				r.log.WithError(err).Warn("final render failed")
			}
			return
		case <-ticker.C:
			if err := r.RenderOnce(); err != nil {
				// Isolated error handling: log and keep ticking. A single bad
				// read must never take the renderer down mid-run (spec ch. 4.7).
				r.log.WithError(err).Warn("render tick failed, continuing")
			}
		}
	}
}

// RenderOnce performs a single render pass: load the registry, read every
// status file, merge, and atomically publish run.json and the html symlink.
func (r *Renderer) RenderOnce() error {
	run, err := r.store.Load()
	if err != nil {
		return err
	}

	jobs, err := r.registry.LoadAll()
	if err != nil {
		return err
	}

	merged := make([]renderedJob, 0, len(jobs))
	running := 0
	for _, j := range jobs {
		st, known := readStatusTolerant(r.layout.StatusFile(j.JobID))
		if known && st.Complete {
			merged = append(merged, renderedJob{Spec: j, Status: st})
			continue
		}
		running++
		merged = append(merged, renderedJob{Spec: j, Status: st, Running: true})
	}

	doc := reportDocument{
		RunID:       run.RunID,
		Project:     run.Project,
		Status:      run.Status,
		StartTime:   run.StartTime,
		Jobs:        merged,
		RunningNow:  running,
		GeneratedAt: time.Now().UTC(),
	}
	sort.Slice(doc.Jobs, func(i, j int) bool { return doc.Jobs[i].Spec.JobID < doc.Jobs[j].Spec.JobID })

	if err := rundir.WriteJSON(r.layout.RunJSON(), doc); err != nil {
		return err
	}
	return rundir.SwapSymlink(r.layout.HTMLSymlink(), r.layout.RunDir())
}

type renderedJob struct {
	Spec    model.JobSpec   `json:"job"`
	Status  model.JobStatus `json:"status"`
	Running bool            `json:"running"`
}

type reportDocument struct {
	RunID       string          `json:"run_id"`
	Project     string          `json:"project"`
	Status      model.RunStatus `json:"status"`
	StartTime   time.Time       `json:"start_time"`
	Jobs        []renderedJob   `json:"jobs"`
	RunningNow  int             `json:"running_now"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// readStatusTolerant reads a job's status file, treating a missing or
// unparseable file as "not yet complete" rather than an error — the
// dispatcher may still be writing the preliminary status doc when the
// renderer's tick lands (spec ch. 4.6, "preliminary status write").
func readStatusTolerant(path string) (model.JobStatus, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.JobStatus{}, false
	}
	var st model.JobStatus
	if err := json.Unmarshal(b, &st); err != nil {
		return model.JobStatus{}, false
	}
	return st, true
}
