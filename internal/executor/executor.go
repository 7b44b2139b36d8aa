// Package executor implements the Job Executor (spec ch. 4.6): it runs one
// job's command as a subprocess, capturing stdout/stderr, enforcing a
// timeout with graceful-then-forceful process-group termination, optionally
// sampling RSS memory, classifying the result through the outcome table,
// and copying declared outputs into the artifacts tree.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/litani-build/litani/internal/model"
	"github.com/litani-build/litani/internal/procutil"
	"github.com/litani-build/litani/internal/rundir"
)

// gracePeriod is how long the executor waits after SIGTERM before escalating
// to SIGKILL on a timed-out job's process group.
const gracePeriod = 5 * time.Second

type Executor struct {
	layout       *rundir.Layout
	artifactsDir string
	log          *logrus.Entry
}

func New(layout *rundir.Layout, log *logrus.Entry) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{layout: layout, artifactsDir: layout.ArtifactsDir(), log: log.WithField("component", "executor")}
}

// Run executes one job end to end: preliminary status write, subprocess
// launch, timeout/memory supervision, outcome classification, final status
// write, and artifact copy. The returned outcome is also the value already
// persisted to the job's status file.
func (e *Executor) Run(ctx context.Context, job model.JobSpec) (model.JobStatus, error) {
	statusPath := job.StatusFile
	if statusPath == "" {
		statusPath = e.layout.StatusFile(job.JobID)
	}

	started := model.JobStatus{
		WrapperArguments: job,
		StartTime:        time.Now().UTC(),
		Complete:         false,
	}
	if err := rundir.WriteJSON(statusPath, started); err != nil {
		return model.JobStatus{}, fmt.Errorf("executor: write preliminary status: %w", err)
	}

	outcomeTable, err := loadOutcomeTable(job.OutcomeTable)
	if err != nil {
		return model.JobStatus{}, fmt.Errorf("executor: load outcome_table: %w", err)
	}

	cmd := exec.Command("/bin/sh", "-c", job.Command)
	if job.Cwd != "" {
		cmd.Dir = job.Cwd
	}
	procutil.SetPgid(cmd)

	var stdoutLines, stderrLines []string
	var linesMu sync.Mutex
	appendLine := func(dst *[]string, line string) {
		linesMu.Lock()
		*dst = append(*dst, line)
		linesMu.Unlock()
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return model.JobStatus{}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return model.JobStatus{}, err
	}

	// Interleaving writes both streams into the same slice under the shared
	// mutex that already serializes appends, which preserves arrival order
	// closely enough for a wrapper log (spec ch. 4.6, "interleave_stdout_stderr").
	stdoutDst, stderrDst := &stdoutLines, &stderrLines
	if job.InterleaveStdoutStderr {
		stderrDst = &stdoutLines
	}

	// Mirror each stream to its declared file, independent of the in-memory
	// interleave setting, which only governs how lines are grouped for the
	// status document (spec ch. 4.6 step 2, "capture to memory AND mirror
	// to file").
	stdoutMirror, err := openMirror(job.StdoutFile)
	if err != nil {
		e.log.WithError(err).WithField("job_id", job.JobID).Warn("could not open stdout_file for mirroring")
	}
	defer closeMirror(stdoutMirror)
	stderrMirror, err := openMirror(job.StderrFile)
	if err != nil {
		e.log.WithError(err).WithField("job_id", job.JobID).Warn("could not open stderr_file for mirroring")
	}
	defer closeMirror(stderrMirror)

	if err := cmd.Start(); err != nil {
		final := e.finalizeNonStarted(job, started, err)
		_ = rundir.WriteJSON(statusPath, final)
		return final, nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(stdoutPipe, func(l string) {
			appendLine(stdoutDst, l)
			writeMirrorLine(stdoutMirror, l)
		})
	}()
	go func() {
		defer wg.Done()
		streamLines(stderrPipe, func(l string) {
			appendLine(stderrDst, l)
			writeMirrorLine(stderrMirror, l)
		})
	}()

	exited := make(chan struct{})
	var memTrace []model.MemorySample
	if job.ProfileMemory {
		go e.sampleMemory(job, cmd, exited, &memTrace, &linesMu)
	}

	var timedOut bool
	if job.TimeoutSeconds > 0 {
		timer := time.AfterFunc(time.Duration(job.TimeoutSeconds)*time.Second, func() {
			timedOut = true
			if !procutil.KillGroupAfterGrace(cmd, gracePeriod, exited) {
				e.log.WithField("job_id", job.JobID).Warn("timed-out process group still alive after SIGKILL")
			}
		})
		defer timer.Stop()
	}
	go func() {
		select {
		case <-ctx.Done():
			if !procutil.KillGroupAfterGrace(cmd, gracePeriod, exited) {
				e.log.WithField("job_id", job.JobID).Warn("cancelled process group still alive after SIGKILL")
			}
		case <-exited:
		}
	}()

	waitErr := cmd.Wait()
	close(exited)
	wg.Wait()

	result := classifyExit(waitErr, timedOut, job, outcomeTable)

	now := time.Now().UTC()
	final := model.JobStatus{
		WrapperArguments:  job,
		StartTime:         started.StartTime,
		EndTime:           &now,
		Complete:          true,
		Outcome:           result.Outcome,
		WrapperReturnCode: result.WrapperReturnCode,
		CommandReturnCode: exitCodePtr(waitErr),
		TimedOut:          timedOut,
		Stdout:            stdoutLines,
		Stderr:            stderrLines,
		MemoryTrace:       memTrace,
	}
	if err := rundir.WriteJSON(statusPath, final); err != nil {
		return final, fmt.Errorf("executor: write final status: %w", err)
	}

	e.copyArtifacts(job)
	return final, nil
}

func (e *Executor) finalizeNonStarted(job model.JobSpec, started model.JobStatus, startErr error) model.JobStatus {
	now := time.Now().UTC()
	e.log.WithError(startErr).WithField("job_id", job.JobID).Warn("job failed to start")
	return model.JobStatus{
		WrapperArguments:  job,
		StartTime:         started.StartTime,
		EndTime:           &now,
		Complete:          true,
		Outcome:           model.OutcomeFail,
		WrapperReturnCode: 1,
		Stderr:            []string{startErr.Error()},
	}
}

func classifyExit(waitErr error, timedOut bool, job model.JobSpec, table map[string]model.Outcome) model.ClassifyResult {
	in := model.ClassifyInput{
		TimedOut:      timedOut,
		IgnoreReturns: toSet(job.IgnoreReturns),
		OkReturns:     toSet(job.OkReturns),
		TimeoutOK:     job.TimeoutOK,
		TimeoutIgnore: job.TimeoutIgnore,
		OutcomeTable:  table,
	}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		in.HasReturnCode = true
		in.ReturnCode = 0
	case errors.As(waitErr, &exitErr):
		if exitErr.ProcessState != nil && exitErr.ProcessState.Exited() {
			in.HasReturnCode = true
			in.ReturnCode = exitErr.ExitCode()
		}
	}
	return model.Classify(in)
}

func exitCodePtr(waitErr error) *int {
	var exitErr *exec.ExitError
	if waitErr == nil {
		zero := 0
		return &zero
	}
	if errors.As(waitErr, &exitErr) && exitErr.ProcessState != nil && exitErr.ProcessState.Exited() {
		code := exitErr.ExitCode()
		return &code
	}
	return nil
}

func toSet(codes []int) map[int]struct{} {
	if len(codes) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// openMirror creates (truncating) the file a job's stdout_file/stderr_file
// points at, creating parent directories as needed. A blank path is not an
// error; it just means no mirroring was requested.
func openMirror(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

func writeMirrorLine(f *os.File, line string) {
	if f == nil {
		return
	}
	fmt.Fprintln(f, line)
}

func closeMirror(f *os.File) {
	if f != nil {
		f.Close()
	}
}

func streamLines(r io.Reader, handle func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		handle(sc.Text())
	}
}

func (e *Executor) sampleMemory(job model.JobSpec, cmd *exec.Cmd, exited <-chan struct{}, trace *[]model.MemorySample, mu *sync.Mutex) {
	interval := job.ProfileMemoryInterval
	if interval <= 0 {
		interval = 1
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-exited:
			return
		case <-ticker.C:
			if cmd.Process == nil {
				continue
			}
			rss, ok := procutil.SampleRSS(cmd.Process.Pid)
			if !ok {
				continue
			}
			mu.Lock()
			*trace = append(*trace, model.MemorySample{TSeconds: time.Since(start).Seconds(), RSSBytes: rss})
			mu.Unlock()
		}
	}
}

// copyArtifacts copies every declared output into
// <artifacts>/<pipeline>/<ci_stage>/<basename>, warning (never failing the
// job) when a declared output is missing or a basename collides with one
// already copied for the same pipeline/stage (spec ch. 4.6, "Artifacts").
// A directory output is copied recursively, basename-to-basename.
func (e *Executor) copyArtifacts(job model.JobSpec) {
	if len(job.Outputs) == 0 {
		return
	}
	destDir := filepath.Join(e.artifactsDir, job.PipelineName, string(job.CIStage))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		e.log.WithError(err).Warn("could not create artifacts directory")
		return
	}
	for _, out := range job.Outputs {
		info, err := os.Stat(out)
		if err != nil {
			e.log.WithField("job_id", job.JobID).Warnf("declared output missing: %s", out)
			continue
		}
		base := filepath.Base(out)
		dest := filepath.Join(destDir, base)
		if _, err := os.Lstat(dest); err == nil {
			e.log.WithField("job_id", job.JobID).Warnf("artifact name collision: %s", base)
		}
		if info.IsDir() {
			if err := copyDir(out, dest); err != nil {
				e.log.WithError(err).WithField("job_id", job.JobID).Warnf("could not copy directory output: %s", out)
			}
			continue
		}
		if err := copyFile(out, dest, info.Mode()); err != nil {
			e.log.WithError(err).WithField("job_id", job.JobID).Warnf("could not copy artifact: %s", out)
		}
	}
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// copyDir walks src recursively and reproduces its tree under dest,
// preserving relative paths (spec ch. 4.6 step 7, "directory outputs are
// copied recursively").
func copyDir(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func loadOutcomeTable(path string) (map[string]model.Outcome, error) {
	if path == "" {
		return nil, nil
	}
	var raw map[string]string
	if err := rundir.ReadJSON(path, &raw); err != nil {
		return nil, err
	}
	table := make(map[string]model.Outcome, len(raw))
	for k, v := range raw {
		oc, err := model.ParseOutcome(v)
		if err != nil {
			return nil, fmt.Errorf("outcome_table[%s]: %w", k, err)
		}
		table[k] = oc
	}
	return table, nil
}
