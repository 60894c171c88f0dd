//go:build linux || darwin

package mem

import (
	"fmt"
	"os"
	"syscall"

	"github.com/hz826/pkevm/internal/format"
)

// OpenImage mmaps an existing memory-image file RW so the simulated DRAM can
// be mutated in place and flushed back incrementally.
func OpenImage(path string, base uint64) (*Image, error) {
	if !format.PageAligned(base) {
		return nil, fmt.Errorf("mem: image base %#x: %w", base, format.ErrUnaligned)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sz := st.Size()
	if sz == 0 || sz%format.PageSize != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("mem: image file %s has size %d, want a non-zero page multiple", path, sz)
	}

	data, err := syscall.Mmap(
		int(f.Fd()),
		0,
		int(sz),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mem: mmap failed: %w", err)
	}

	return &Image{
		f:    f,
		data: data,
		base: base,
		size: uint64(sz),
	}, nil
}

// CreateImage creates a zeroed image file of the given size and opens it.
func CreateImage(path string, base, size uint64) (*Image, error) {
	if !format.PageAligned(size) || size == 0 {
		return nil, fmt.Errorf("mem: image size %#x: %w", size, format.ErrUnaligned)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return OpenImage(path, base)
}

// Close unmaps and closes a file-backed image. In-memory images just drop
// their slice.
func (im *Image) Close() error {
	var err error
	if im.f != nil {
		if im.data != nil {
			_ = syscall.Munmap(im.data)
		}
		err = im.f.Close()
		im.f = nil
	}
	im.data = nil
	return err
}
