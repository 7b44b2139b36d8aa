// Package rundir owns the on-disk home for a single litani run: the atomic
// write primitive every other component builds on, the directory layout
// under <output-prefix>/litani/runs/<run_id>, and the "latest" symlink that
// external tools follow (spec ch. 4.1).
package rundir

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic writes content to path by creating a sibling temp file,
// fsyncing, and renaming it over path. Readers following path concurrently
// see either the old or the new complete file, never a partial write.
func WriteAtomic(path string, content []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rundir: create %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("rundir: create temp file in %s: %w", dir, err)
	}

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err := f.Chmod(perm); err != nil {
		return fmt.Errorf("rundir: chmod temp file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("rundir: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("rundir: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("rundir: close temp file: %w", err)
	}

	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("rundir: rename into place: %w", err)
	}
	success = true
	return nil
}

// SwapSymlink atomically repoints the symlink at linkPath to target: it
// creates a uniquely named symlink next to linkPath, then renames it over
// linkPath. This is used for both the "latest" run symlink and the "html"
// report symlink (spec ch. 4.1, design note "Atomic symlink swap") — a
// reader following linkPath never observes a missing or half-swapped target.
func SwapSymlink(linkPath, target string) error {
	dir := filepath.Dir(linkPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rundir: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(linkPath)+".symlink-*")
	if err != nil {
		return fmt.Errorf("rundir: reserve symlink name: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	os.Remove(tmpName)

	if err := os.Symlink(target, tmpName); err != nil {
		return fmt.Errorf("rundir: create symlink: %w", err)
	}
	if err := os.Rename(tmpName, linkPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rundir: swap symlink into place: %w", err)
	}
	return nil
}
