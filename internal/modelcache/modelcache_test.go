package modelcache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireEmptyDirIsNil(t *testing.T) {
	h, err := Acquire("")
	if err != nil {
		t.Fatalf("Acquire(\"\"): %v", err)
	}
	if h != nil {
		t.Fatalf("handle = %+v, want nil", h)
	}
	if err := h.Release(); err != nil {
		t.Errorf("Release on nil handle: %v", err)
	}
}

func TestAcquireCreatesDirAndLocks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	h, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer func() {
		if err := h.Release(); err != nil {
			t.Errorf("Release: %v", err)
		}
	}()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".vid2srt.lock")); err != nil {
		t.Errorf("lock file not created: %v", err)
	}
	if h.Dir != dir {
		t.Errorf("Dir = %q, want %q", h.Dir, dir)
	}
}
