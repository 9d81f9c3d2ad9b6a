//go:build unix

// Package memlimit applies the process-wide address-space cap at startup.
// Capping is an environment concern, not a pipeline behavior: it runs once
// before any model work and is never consulted again.
package memlimit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Apply caps the address space at gib gibibytes via RLIMIT_AS, preserving
// the existing hard limit. A zero or negative value leaves the process
// unlimited.
func Apply(gib int) error {
	if gib <= 0 {
		return nil
	}
	var current unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &current); err != nil {
		return fmt.Errorf("read address-space limit: %w", err)
	}
	limit := unix.Rlimit{
		Cur: uint64(gib) << 30,
		Max: current.Max,
	}
	if current.Max != unix.RLIM_INFINITY && limit.Cur > current.Max {
		limit.Cur = current.Max
	}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &limit); err != nil {
		return fmt.Errorf("set address-space limit: %w", err)
	}
	return nil
}
