//go:build !unix

package memlimit

// Apply is a no-op on platforms without RLIMIT_AS.
func Apply(gib int) error {
	return nil
}
