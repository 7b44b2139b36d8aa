package rundir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves every path that lives under a single run directory
// (spec ch. 6, "Persisted layout").
type Layout struct {
	OutputPrefix string
	RunID        string
}

func New(outputPrefix, runID string) *Layout {
	return &Layout{OutputPrefix: outputPrefix, RunID: runID}
}

func (l *Layout) RunDir() string {
	return filepath.Join(l.OutputPrefix, "litani", "runs", l.RunID)
}

func (l *Layout) CacheFile() string       { return filepath.Join(l.RunDir(), "cache.json") }
func (l *Layout) JobsDir() string         { return filepath.Join(l.RunDir(), "jobs") }
func (l *Layout) StatusDir() string       { return filepath.Join(l.RunDir(), "status") }
func (l *Layout) NinjaFile() string       { return filepath.Join(l.RunDir(), "litani.ninja") }
func (l *Layout) ArtifactsDir() string    { return filepath.Join(l.RunDir(), "artifacts") }
func (l *Layout) HTMLSymlink() string     { return filepath.Join(l.RunDir(), "html") }
func (l *Layout) RunJSON() string         { return filepath.Join(l.RunDir(), "run.json") }
func (l *Layout) JobFile(jobID string) string    { return filepath.Join(l.JobsDir(), jobID+".json") }
func (l *Layout) StatusFile(jobID string) string { return filepath.Join(l.StatusDir(), jobID+".json") }

func (l *Layout) LatestSymlink() string {
	return filepath.Join(l.OutputPrefix, "litani", "runs", "latest")
}

// runsRoot pointer file: the process-wide pointer naming the current cache
// directory, written by init (spec ch. 4.1).
func (l *Layout) PointerFile() string {
	return filepath.Join(l.OutputPrefix, "litani", ".litani-run-id")
}

// EnsureCreated makes every directory a fresh run needs and writes the
// pointer file + latest symlink. init calls this; it errors if the run
// directory already exists (spec ch. 8, "init on an existing directory is
// an error").
func (l *Layout) EnsureCreated() error {
	runDir := l.RunDir()
	if _, err := os.Stat(runDir); err == nil {
		return fmt.Errorf("rundir: run directory already exists: %s", runDir)
	} else if !os.IsNotExist(err) {
		return err
	}

	for _, d := range []string{runDir, l.JobsDir(), l.StatusDir(), l.ArtifactsDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("rundir: create %s: %w", d, err)
		}
	}

	if err := WriteAtomic(l.PointerFile(), []byte(l.RunID+"\n")); err != nil {
		return err
	}
	return SwapSymlink(l.LatestSymlink(), runDir)
}

// LoadJobIDs lists every job_id with a persisted spec under JobsDir, in the
// order os.ReadDir returns the entries (sorted by file name, hence by
// job_id). Insertion order is not recorded.
func (l *Layout) LoadJobIDs() ([]string, error) {
	entries, err := os.ReadDir(l.JobsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(ext)])
	}
	return ids, nil
}

// ReadJSON is a small helper shared by every component that loads a
// JSON document written by WriteAtomic.
func ReadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// WriteJSON marshals v and writes it via WriteAtomic.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteAtomic(path, b)
}
