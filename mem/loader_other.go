//go:build !linux && !darwin

package mem

import (
	"fmt"
	"io"
	"os"

	"github.com/hz826/pkevm/internal/format"
)

// OpenImage loads the image file into memory on platforms without mmap
// support. Mutations are not written back; Close discards them.
func OpenImage(path string, base uint64) (*Image, error) {
	if !format.PageAligned(base) {
		return nil, fmt.Errorf("mem: image base %#x: %w", base, format.ErrUnaligned)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	sz := st.Size()
	if sz == 0 || sz%format.PageSize != 0 {
		return nil, fmt.Errorf("mem: image file %s has size %d, want a non-zero page multiple", path, sz)
	}

	buf := make([]byte, sz)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}

	return &Image{
		data: buf,
		base: base,
		size: uint64(sz),
	}, nil
}

// CreateImage creates a zeroed image file of the given size and opens it.
func CreateImage(path string, base, size uint64) (*Image, error) {
	if !format.PageAligned(size) || size == 0 {
		return nil, fmt.Errorf("mem: image size %#x: %w", size, format.ErrUnaligned)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		return nil, err
	}
	return OpenImage(path, base)
}

// Close releases the image buffer.
func (im *Image) Close() error {
	im.data = nil
	return nil
}
