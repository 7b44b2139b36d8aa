// Package dispatch implements the Dispatcher (spec ch. 4.5): it walks the
// assembled graph, admits ready jobs under a global parallelism cap and
// per-pool semaphores, runs them through the Job Executor, and records the
// parallelism timeline. Scheduling is round-based: each round starts one
// goroutine per ready job, buffered channels act as the global and per-pool
// semaphores, and a WaitGroup seals the round before the ready set is
// recomputed from the jobs that have completed.
package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/litani-build/litani/internal/graph"
	"github.com/litani-build/litani/internal/model"
)

// JobState is one node's position in the per-run state machine (spec ch.
// 4.5, "State machine").
type JobState string

const (
	StatePending      JobState = "pending"
	StateReady        JobState = "ready"
	StateRunning      JobState = "running"
	StateSucceeded    JobState = "succeeded"
	StateFailed       JobState = "failed"
	StateFailIgnored  JobState = "failed_ignored"
	StateSkipped      JobState = "skipped"
)

// Executor is the interface the dispatcher drives a job through; satisfied
// by *executor.Executor, kept as an interface here so tests can supply a
// fake without spawning real processes.
type Executor interface {
	Run(ctx context.Context, job model.JobSpec) (model.JobStatus, error)
}

// Options configures one run-build invocation (spec ch. 6, CLI flags).
//
// Parallel distinguishes three states: nil means the flag was never set and
// the dispatcher defaults to runtime.NumCPU(); a pointer to 0 means the user
// explicitly passed "-j 0", which spec ch. 4.5 defines as unbounded
// parallelism (the global admission gate is skipped entirely); a pointer to
// N>0 caps the run at N concurrently running jobs.
type Options struct {
	Parallel  *int
	Pipelines []string
	CIStage   string
	DryRun    bool
	Pools     []model.Pool
}

// Result summarizes one run-build pass (spec ch. 4.5, ch. 4.8 feed this).
type Result struct {
	States    map[string]JobState
	Statuses  map[string]model.JobStatus
	Timeline  model.Timeline
	AnyFailed bool
}

type Dispatcher struct {
	graph *graph.Graph
	exec  Executor
	log   *logrus.Entry
}

func New(g *graph.Graph, exec Executor, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{graph: g, exec: exec, log: log.WithField("component", "dispatcher")}
}

// Run drives every job node to a terminal state and returns the outcome.
func (d *Dispatcher) Run(ctx context.Context, opts Options) (*Result, error) {
	selected, err := d.selectJobs(opts)
	if err != nil {
		return nil, err
	}

	// global is nil when parallelism is unbounded (opts.Parallel explicitly
	// set to 0); every send/receive on it below is guarded accordingly.
	var global chan struct{}
	switch {
	case opts.Parallel == nil:
		global = make(chan struct{}, runtime.NumCPU())
	case *opts.Parallel > 0:
		global = make(chan struct{}, *opts.Parallel)
	}
	pools := make(map[string]chan struct{}, len(opts.Pools))
	for _, p := range opts.Pools {
		depth := p.Depth
		if depth <= 0 {
			depth = 1
		}
		pools[p.Name] = make(chan struct{}, depth)
	}
	// Config validation guarantees every job.Pool is declared, but guard
	// here too so a caller that forgets to pass Options.Pools degrades to
	// depth-1 rather than deadlocking on a nil channel.
	for _, n := range selected {
		if n.Pool != "" {
			if _, ok := pools[n.Pool]; !ok {
				pools[n.Pool] = make(chan struct{}, 1)
			}
		}
	}

	sched := &scheduler{
		g:        d.graph,
		jobs:     selected,
		states:   make(map[string]JobState, len(selected)),
		statuses: make(map[string]model.JobStatus, len(selected)),
		pools:    pools,
	}
	for id := range selected {
		sched.states[id] = StatePending
	}

	start := time.Now()
	var mu sync.Mutex
	var wg sync.WaitGroup
	runningCount := 0
	record := func(delta int) {
		mu.Lock()
		runningCount += delta
		sched.timeline.Append(time.Since(start).Seconds(), runningCount)
		mu.Unlock()
	}

	for {
		mu.Lock()
		ready := sched.readyJobs()
		mu.Unlock()
		if len(ready) == 0 {
			break
		}
		for _, n := range ready {
			n := n
			wg.Add(1)
			go func() {
				defer wg.Done()
				if global != nil {
					global <- struct{}{}
				}
				var poolSlot chan struct{}
				if n.Pool != "" {
					poolSlot = pools[n.Pool]
					poolSlot <- struct{}{}
				}

				// Only once both the global and pool tokens are actually
				// held does this job count toward the recorded parallelism
				// timeline (spec §8: the timeline must never show more
				// than P globally or D_p in pool p running at once).
				mu.Lock()
				sched.states[n.JobID] = StateRunning
				mu.Unlock()
				record(1)

				defer func() {
					if global != nil {
						<-global
					}
					if poolSlot != nil {
						<-poolSlot
					}
					record(-1)
				}()
				d.runOne(ctx, opts.DryRun, n, sched, &mu)
			}()
		}
		wg.Wait()
	}

	result := &Result{States: sched.states, Statuses: sched.statuses, Timeline: sched.timeline}
	for _, st := range sched.states {
		if st == StateFailed {
			result.AnyFailed = true
		}
	}
	return result, nil
}

func (d *Dispatcher) runOne(ctx context.Context, dryRun bool, n *graph.Node, sched *scheduler, mu *sync.Mutex) {
	var status model.JobStatus
	if dryRun {
		status = model.JobStatus{WrapperArguments: *n.Job, Complete: true, Outcome: model.OutcomeSuccess}
	} else {
		var err error
		status, err = d.exec.Run(ctx, *n.Job)
		if err != nil {
			d.log.WithError(err).WithField("job_id", n.JobID).Error("executor returned an error")
			status.Outcome = model.OutcomeFail
		}
	}

	mu.Lock()
	sched.statuses[n.JobID] = status
	switch status.Outcome {
	case model.OutcomeSuccess:
		sched.states[n.JobID] = StateSucceeded
	case model.OutcomeFailIgnored:
		sched.states[n.JobID] = StateFailIgnored
	default:
		sched.states[n.JobID] = StateFailed
		sched.poisonDownstream(n.JobID)
	}
	mu.Unlock()
}

// selectJobs restricts execution to the ancestors of every selected
// pipeline/ci_stage phony target, or to every job when no filter is given
// (spec ch. 4.5, "--pipelines/--ci-stage filtering", mutually exclusive).
func (d *Dispatcher) selectJobs(opts Options) (map[string]*graph.Node, error) {
	if len(opts.Pipelines) > 0 && opts.CIStage != "" {
		return nil, fmt.Errorf("--pipelines and --ci-stage are mutually exclusive")
	}
	if len(opts.Pipelines) == 0 && opts.CIStage == "" {
		all := make(map[string]*graph.Node)
		for _, n := range d.graph.Nodes {
			if !n.Phony {
				all[n.JobID] = n
			}
		}
		return all, nil
	}

	var targets []*graph.Node
	if opts.CIStage != "" {
		if t := d.graph.PhonyTarget("ci_stage", opts.CIStage); t != nil {
			targets = append(targets, t)
		}
	}
	for _, p := range opts.Pipelines {
		if t := d.graph.PhonyTarget("pipeline", p); t != nil {
			targets = append(targets, t)
		}
	}
	return d.graph.AncestorsOf(targets...), nil
}

type scheduler struct {
	g        *graph.Graph
	jobs     map[string]*graph.Node
	states   map[string]JobState
	statuses map[string]model.JobStatus
	pools    map[string]chan struct{}
	timeline model.Timeline
}

// readyJobs returns every pending job whose inputs are all satisfied by
// producers that have already reached a terminal state, sorted by job_id for
// a deterministic dispatch order among ties (spec open question (a)).
func (s *scheduler) readyJobs() []*graph.Node {
	var ready []*graph.Node
	for id, n := range s.jobs {
		if s.states[id] != StatePending {
			continue
		}
		if s.inputsSatisfied(n) {
			ready = append(ready, n)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].JobID < ready[j].JobID })
	return ready
}

func (s *scheduler) inputsSatisfied(n *graph.Node) bool {
	for _, in := range n.Inputs {
		for _, up := range s.g.Producers(in) {
			if up.Phony || up.JobID == "" {
				continue
			}
			if _, inSelection := s.jobs[up.JobID]; !inSelection {
				continue // producer outside the current filter selection: treat its output as pre-existing
			}
			switch s.states[up.JobID] {
			case StateSucceeded, StateFailIgnored:
				// satisfied
			default:
				return false
			}
		}
	}
	return true
}

// poisonDownstream marks every job that transitively depends on a failed
// job's outputs as skipped, without touching jobs outside that subtree
// (spec ch. 4.5, "Success rule: fail poisons only its subtree").
func (s *scheduler) poisonDownstream(failedJobID string) {
	failedNode := s.g.ByJobID(failedJobID)
	if failedNode == nil {
		return
	}
	poisonedOutputs := make(map[string]bool, len(failedNode.Outputs))
	for _, out := range failedNode.Outputs {
		poisonedOutputs[out] = true
	}

	changed := true
	for changed {
		changed = false
		for id, n := range s.jobs {
			if s.states[id] != StatePending {
				continue
			}
			for _, in := range n.Inputs {
				if poisonedOutputs[in] {
					s.states[id] = StateSkipped
					for _, out := range n.Outputs {
						poisonedOutputs[out] = true
					}
					changed = true
					break
				}
			}
		}
	}
}
