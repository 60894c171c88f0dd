package mem

import (
	"fmt"
	"os"

	"github.com/hz826/pkevm/internal/format"
)

// PhysAddr is a physical address in the simulated machine. Physical addresses
// are the reference currency of the whole subsystem: page-table entries,
// free-list links and descriptor fields all hold them.
type PhysAddr = uint64

// Image is the simulated DRAM, backed by an mmapped file (unix) or a plain
// byte slice. Physical address pa corresponds to byte offset pa-base.
type Image struct {
	f    *os.File
	data []byte
	base uint64
	size uint64
}

// NewImage creates an in-memory image of the given size at the given physical
// base. base and size must be page-aligned.
func NewImage(base, size uint64) (*Image, error) {
	if !format.PageAligned(base) || !format.PageAligned(size) {
		return nil, fmt.Errorf("mem: image base %#x size %#x: %w", base, size, format.ErrUnaligned)
	}
	if size == 0 {
		return nil, fmt.Errorf("mem: zero-size image")
	}
	return &Image{
		data: make([]byte, size),
		base: base,
		size: size,
	}, nil
}

// Base returns the physical address of the first byte of the image.
func (im *Image) Base() PhysAddr { return im.base }

// Size returns the image size in bytes.
func (im *Image) Size() uint64 { return im.size }

// End returns one past the highest physical address of the image.
func (im *Image) End() PhysAddr { return im.base + im.size }

// Bytes returns the raw backing slice.
func (im *Image) Bytes() []byte { return im.data }

// Contains reports whether [pa, pa+n) lies entirely inside the image.
func (im *Image) Contains(pa PhysAddr, n uint64) bool {
	return pa >= im.base && pa-im.base <= im.size && n <= im.size-(pa-im.base)
}

// Offset converts a physical address to its byte offset in the image.
// Used by dirty tracking to mark modified ranges.
func (im *Image) Offset(pa PhysAddr) int {
	return int(pa - im.base)
}

// check panics if [pa, pa+n) is outside the image. A physical address that
// escaped the image means the kernel state itself is corrupt, which is not a
// recoverable condition.
func (im *Image) check(pa PhysAddr, n uint64) {
	if !im.Contains(pa, n) {
		panic(fmt.Sprintf("mem: physical address %#x (+%d) outside image [%#x, %#x)",
			pa, n, im.base, im.base+im.size))
	}
}

// Word reads the 64-bit little-endian word at pa.
func (im *Image) Word(pa PhysAddr) uint64 {
	im.check(pa, 8)
	return format.ReadU64(im.data, int(pa-im.base))
}

// SetWord writes the 64-bit little-endian word at pa.
func (im *Image) SetWord(pa PhysAddr, v uint64) {
	im.check(pa, 8)
	format.PutU64(im.data, int(pa-im.base), v)
}

// Page returns the backing bytes of the page at pa, which must be
// page-aligned.
func (im *Image) Page(pa PhysAddr) []byte {
	if !format.PageAligned(pa) {
		panic(fmt.Sprintf("mem: Page(%#x): not page-aligned", pa))
	}
	im.check(pa, format.PageSize)
	off := pa - im.base
	return im.data[off : off+format.PageSize]
}

// ZeroPage clears the page at pa. Freshly allocated table and pool pages are
// zeroed explicitly; the physical allocator hands out pages as-is.
func (im *Image) ZeroPage(pa PhysAddr) {
	p := im.Page(pa)
	clear(p)
}

// ZeroRange clears n bytes starting at pa.
func (im *Image) ZeroRange(pa PhysAddr, n uint64) {
	im.check(pa, n)
	off := pa - im.base
	clear(im.data[off : off+n])
}

// FD returns the file descriptor backing a file-backed image, or -1 for an
// in-memory image.
func (im *Image) FD() int {
	if im == nil || im.f == nil {
		return -1
	}
	return int(im.f.Fd())
}
