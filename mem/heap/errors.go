package heap

import "errors"

var (
	// ErrBadSize indicates a zero-size allocation request.
	ErrBadSize = errors.New("heap: allocation size must be positive")
)
