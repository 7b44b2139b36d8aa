package rundir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomic_ReplacesWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	if err := WriteAtomic(path, []byte(`{"v":1}`)); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteAtomic(path, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("second write: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != `{"v":2}` {
		t.Fatalf("got %q, want latest content", b)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %v", entries)
	}
}

func TestSwapSymlink_PointsAtLatestTarget(t *testing.T) {
	dir := t.TempDir()
	targetA := filepath.Join(dir, "a")
	targetB := filepath.Join(dir, "b")
	os.MkdirAll(targetA, 0o755)
	os.MkdirAll(targetB, 0o755)

	link := filepath.Join(dir, "latest")
	if err := SwapSymlink(link, targetA); err != nil {
		t.Fatalf("swap a: %v", err)
	}
	if got, _ := os.Readlink(link); got != targetA {
		t.Fatalf("got %q want %q", got, targetA)
	}
	if err := SwapSymlink(link, targetB); err != nil {
		t.Fatalf("swap b: %v", err)
	}
	if got, _ := os.Readlink(link); got != targetB {
		t.Fatalf("got %q want %q", got, targetB)
	}
}

func TestLayout_EnsureCreated_RefusesExisting(t *testing.T) {
	prefix := t.TempDir()
	l := New(prefix, "run-1")
	if err := l.EnsureCreated(); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := l.EnsureCreated(); err == nil {
		t.Fatalf("expected error creating an existing run directory")
	}
}

func TestLockableDirectory_ExclusiveAcquire(t *testing.T) {
	dir := t.TempDir()
	l1 := NewLockableDirectory(dir)
	if err := l1.Acquire(0); err != nil {
		t.Fatalf("l1 acquire: %v", err)
	}

	l2 := NewLockableDirectory(dir)
	// Use a short timeout instead of blocking forever on a held lock.
	err := l2.Acquire(50_000_000) // 50ms
	if err == nil {
		t.Fatalf("expected l2 to fail to acquire a held lock")
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l2.Acquire(0); err != nil {
		t.Fatalf("l2 acquire after release: %v", err)
	}
	l2.Release()
}
