// Package modelcache manages the shared model download directory. A file
// lock serializes model downloads so concurrent jobs pointed at the same
// cache do not corrupt partially written checkpoints.
package modelcache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Handle is an acquired cache directory.
type Handle struct {
	Dir  string
	lock *flock.Flock
}

// Acquire ensures dir exists and takes the cache lock. An empty dir returns
// a nil handle: the engines fall back to their own default cache and no
// locking applies.
func Acquire(dir string) (*Handle, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure model cache dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, ".vid2srt.lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock model cache: %w", err)
	}
	return &Handle{Dir: dir, lock: lock}, nil
}

// Release drops the cache lock. Safe on a nil handle.
func (h *Handle) Release() error {
	if h == nil || h.lock == nil {
		return nil
	}
	return h.lock.Unlock()
}
