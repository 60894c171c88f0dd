package pagetable

import "errors"

var (
	// ErrMappingCollision indicates an attempt to map a page that already has
	// a valid entry. This is a kernel programming bug, not a transient
	// condition; callers at the boundary decide whether to abort.
	ErrMappingCollision = errors.New("pagetable: mapping collision")

	// ErrAddressOutOfRange indicates a virtual address at or beyond the
	// SV39 limit.
	ErrAddressOutOfRange = errors.New("pagetable: virtual address out of range")

	// ErrNotMapped indicates a walk without allocation found no entry.
	ErrNotMapped = errors.New("pagetable: not mapped")
)
