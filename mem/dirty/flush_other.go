//go:build !linux && !freebsd && !darwin

package dirty

import "context"

// Without mmap-backed images there is nothing to write back; OpenImage loads
// a private copy on these platforms.
func (t *Tracker) flushRanges(ctx context.Context, data []byte, ranges []Range) error {
	return ctx.Err()
}

func fdatasync(fd int) error { return nil }
