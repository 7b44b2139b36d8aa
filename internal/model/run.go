// Package model defines the persistent data model shared by every component
// of the litani core: the Run document (Cache Store), Pool, JobSpec, JobStatus
// and the parallelism Timeline (spec ch. 3).
package model

import "time"

type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunSuccess    RunStatus = "success"
	RunFailure    RunStatus = "failure"
)

// Pool is a named integer semaphore that bounds how many jobs referencing it
// may run concurrently (spec ch. 3, "Pool").
type Pool struct {
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

// Run is the Cache Store document (spec ch. 4.2): a single JSON aggregate
// describing one build from init through finalization.
type Run struct {
	RunID        string    `json:"run_id"`
	Project      string    `json:"project"`
	Version      string    `json:"version,omitempty"`
	VersionMajor int       `json:"version_major"`
	VersionMinor int       `json:"version_minor"`
	VersionPatch int       `json:"version_patch"`
	StartTime    time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Status       RunStatus `json:"status"`
	Pools        []Pool    `json:"pools"`
	Jobs         []JobSpec `json:"jobs"`
	Parallelism  Timeline  `json:"parallelism"`
	Aux          any       `json:"aux,omitempty"`

	// OutputPrefix and OutputSymlink are not part of the wire schema. No
	// component sets or reads them; the registry, dispatcher and renderer
	// locate the run directory through rundir.Layout.
	OutputPrefix  string `json:"-"`
	OutputSymlink string `json:"-"`
}

func (r *Run) PoolDepth(name string) (int, bool) {
	for _, p := range r.Pools {
		if p.Name == name {
			return p.Depth, true
		}
	}
	return 0, false
}

// CIStage is a coarse phase label used for filtering (spec GLOSSARY).
type CIStage string

const (
	StageBuild  CIStage = "build"
	StageTest   CIStage = "test"
	StageReport CIStage = "report"
)

// JobSpec is the immutable record produced by add-job (spec ch. 3, "JobSpec").
type JobSpec struct {
	JobID        string  `json:"job_id"`
	PipelineName string  `json:"pipeline_name"`
	CIStage      CIStage `json:"ci_stage"`

	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`

	Command                string `json:"command"`
	Cwd                     string `json:"cwd,omitempty"`
	TimeoutSeconds          int    `json:"timeout,omitempty"`
	StdoutFile              string `json:"stdout_file,omitempty"`
	StderrFile              string `json:"stderr_file,omitempty"`
	InterleaveStdoutStderr  bool   `json:"interleave_stdout_stderr"`
	Description             string `json:"description,omitempty"`
	Pool                    string `json:"pool,omitempty"`

	IgnoreReturns []int  `json:"ignore_returns,omitempty"`
	OkReturns     []int  `json:"ok_returns,omitempty"`
	TimeoutOK     bool   `json:"timeout_ok"`
	TimeoutIgnore bool   `json:"timeout_ignore"`
	OutcomeTable  string `json:"outcome_table,omitempty"`

	ProfileMemory         bool     `json:"profile_memory"`
	ProfileMemoryInterval int      `json:"profile_memory_interval,omitempty"`
	Tags                  []string `json:"tags,omitempty"`

	StatusFile string `json:"status_file"`
}

// Validate checks the invariants from spec ch. 3 that can be verified without
// consulting the rest of the run (pool existence is checked by the registry,
// which has access to Run.Pools).
func (j *JobSpec) Validate() error {
	if j.Command == "" {
		return fieldErr(j, "command is required")
	}
	if j.PipelineName == "" {
		return fieldErr(j, "pipeline_name is required")
	}
	if j.CIStage == "" {
		return fieldErr(j, "ci_stage is required")
	}
	if j.TimeoutSeconds < 0 {
		return fieldErr(j, "timeout must be a positive integer")
	}
	if j.TimeoutOK && j.TimeoutIgnore {
		return fieldErr(j, "timeout_ok and timeout_ignore are mutually exclusive")
	}
	return nil
}

func fieldErr(j *JobSpec, msg string) error {
	desc := j.Description
	if desc == "" {
		desc = j.Command
	}
	return &JobConfigError{Description: desc, Message: msg}
}

// JobConfigError names the offending job by description, per spec ch. 4.3
// ("a job referencing a non-existent pool causes run-build to fail fatally
// with a diagnostic naming the job description and offending pool").
type JobConfigError struct {
	Description string
	Pool        string
	Message     string
}

func (e *JobConfigError) Error() string {
	if e.Pool != "" {
		return "job " + quote(e.Description) + ": " + e.Message + " (pool " + quote(e.Pool) + ")"
	}
	return "job " + quote(e.Description) + ": " + e.Message
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	return "\"" + s + "\""
}

// MemorySample is one point of a job's RSS trace (spec ch. 3, "JobStatus").
type MemorySample struct {
	TSeconds float64 `json:"t_seconds"`
	RSSBytes uint64  `json:"rss_bytes"`
}

// JobStatus is written atomically to JobSpec.StatusFile twice: once as a
// start placeholder (Complete=false) and once with the final outcome
// (spec ch. 3, "JobStatus").
type JobStatus struct {
	WrapperArguments  JobSpec         `json:"wrapper_arguments"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           *time.Time      `json:"end_time,omitempty"`
	Complete          bool            `json:"complete"`
	Outcome           Outcome         `json:"outcome,omitempty"`
	WrapperReturnCode int             `json:"wrapper_return_code"`
	CommandReturnCode *int            `json:"command_return_code,omitempty"`
	TimedOut          bool            `json:"timed_out,omitempty"`
	Stdout            []string        `json:"stdout,omitempty"`
	Stderr            []string        `json:"stderr,omitempty"`
	MemoryTrace       []MemorySample  `json:"memory_trace,omitempty"`
}

// TimelineSample is one (t_seconds, running_count) point (spec ch. 3, "Timeline").
type TimelineSample struct {
	TSeconds     float64 `json:"t_seconds"`
	RunningCount int     `json:"running_count"`
}

// Timeline records concurrent running-job counts over a run's wall clock.
type Timeline struct {
	Samples []TimelineSample `json:"samples"`
}

func (tl *Timeline) Append(tSeconds float64, runningCount int) {
	n := len(tl.Samples)
	if n > 0 && tl.Samples[n-1].TSeconds == tSeconds {
		tl.Samples[n-1].RunningCount = runningCount
		return
	}
	tl.Samples = append(tl.Samples, TimelineSample{TSeconds: tSeconds, RunningCount: runningCount})
}

// MaxConcurrency returns the highest running_count ever recorded in the
// timeline. The dispatcher records a single global timeline; there is no
// per-pool timeline.
func (tl *Timeline) MaxConcurrency() int {
	max := 0
	for _, s := range tl.Samples {
		if s.RunningCount > max {
			max = s.RunningCount
		}
	}
	return max
}
