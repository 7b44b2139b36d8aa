package rundir

import (
	"fmt"
	"os"
	"time"
)

// staleLockAge is how long an acquisition lock file may sit untouched before
// a new acquirer is allowed to steal it. Guards against a crashed process
// wedging the run directory forever.
const staleLockAge = 5 * time.Minute

// LockableDirectory is the scoped acquisition external readers/copiers use
// before touching a run directory (spec ch. 5, "Locking"): acquisition
// creates a lock file, retried with backoff, that is removed by an explicit
// Release. The lock file is not removed when the holding process exits; a
// left-over lock file is taken over by the next acquirer once it is older
// than staleLockAge.
type LockableDirectory struct {
	lockPath string
	file     *os.File
}

// NewLockableDirectory returns a lock scoped to dir (a run directory).
func NewLockableDirectory(dir string) *LockableDirectory {
	return &LockableDirectory{lockPath: dir + "/.lock"}
}

// Acquire blocks, retrying with backoff, until the lock is held or ctx-free
// attempts are exhausted. maxWait<=0 means retry forever.
func (l *LockableDirectory) Acquire(maxWait time.Duration) error {
	deadline := time.Time{}
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}
	backoff := 25 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Sync()
			l.file = f
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("rundir: acquire lock %s: %w", l.lockPath, err)
		}

		if info, statErr := os.Stat(l.lockPath); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			os.Remove(l.lockPath)
			continue
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("rundir: timed out acquiring lock %s", l.lockPath)
		}
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// Release drops the lock. Safe to call on an unlocked LockableDirectory.
func (l *LockableDirectory) Release() error {
	if l.file == nil {
		return nil
	}
	l.file.Close()
	err := os.Remove(l.lockPath)
	l.file = nil
	return err
}

// ExpiredSentinel marks dir's report as superseded by a newer one. Report
// cleanup may only delete directories that are both sentinel-marked and
// currently unlocked (spec ch. 5).
func ExpiredSentinel(dir string) string {
	return dir + "/.expired"
}

func MarkExpired(dir string) error {
	return os.WriteFile(ExpiredSentinel(dir), []byte(time.Now().UTC().Format(time.RFC3339)), 0o644)
}

func IsExpired(dir string) bool {
	_, err := os.Stat(ExpiredSentinel(dir))
	return err == nil
}

// IsLocked reports whether dir currently has a live lock file, without
// taking the lock itself.
func IsLocked(dir string) bool {
	_, err := os.Stat(NewLockableDirectory(dir).lockPath)
	return err == nil
}
