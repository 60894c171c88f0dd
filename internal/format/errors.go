package format

import "errors"

var (
	// ErrBadAddress indicates a physical address outside the memory image.
	ErrBadAddress = errors.New("format: address outside memory image")
	// ErrUnaligned indicates an address that was required to be page-aligned.
	ErrUnaligned = errors.New("format: address not page-aligned")
)
