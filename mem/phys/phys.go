// Package phys implements the physical page allocator: single 4KiB pages,
// handed out and reclaimed through a free list threaded through the free
// pages themselves. The first word of every free page holds the physical
// address of the next free page, so the allocator needs no metadata of its
// own beyond the list head.
package phys

import (
	"errors"
	"fmt"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
)

var (
	// ErrOutOfMemory indicates the free list is exhausted.
	ErrOutOfMemory = errors.New("phys: out of physical pages")

	// ErrBadPage indicates a page address that is unaligned or outside the
	// allocator's range.
	ErrBadPage = errors.New("phys: bad page address")
)

// Allocator is the single-page physical allocator contract consumed by the
// page-table engine and the heap. Pages returned by AllocPage are not
// guaranteed to be zeroed; callers that need zero pages clear them.
type Allocator interface {
	AllocPage() (mem.PhysAddr, error)
	FreePage(pa mem.PhysAddr) error
}

// Stats holds free-list counters for instrumentation and tests.
type Stats struct {
	TotalPages int // pages handed to the allocator at init
	FreePages  int // pages currently on the free list
	AllocCalls int
	FreeCalls  int
}

// FreeList is the standard Allocator implementation.
//
// NOT thread-safe; the kernel model is single execution context.
type FreeList struct {
	img   *mem.Image
	start mem.PhysAddr // first managed page
	end   mem.PhysAddr // one past the last managed page
	head  mem.PhysAddr // top of the free stack, 0 when empty
	stats Stats
}

// NewFreeList builds a free list over the page range [start, end), which must
// be page-aligned and inside the image. Every page in the range starts free.
func NewFreeList(img *mem.Image, start, end mem.PhysAddr) (*FreeList, error) {
	if !format.PageAligned(start) || !format.PageAligned(end) {
		return nil, fmt.Errorf("phys: range [%#x, %#x): %w", start, end, format.ErrUnaligned)
	}
	if start >= end || !img.Contains(start, end-start) {
		return nil, fmt.Errorf("phys: range [%#x, %#x) outside image: %w", start, end, format.ErrBadAddress)
	}

	fl := &FreeList{img: img, start: start, end: end}
	for pa := start; pa < end; pa += format.PageSize {
		fl.push(pa)
	}
	fl.stats.TotalPages = fl.stats.FreePages
	return fl, nil
}

// AllocPage pops one page off the free list. The page contents are whatever
// the previous owner left there, except for the first word, which held the
// free-list link.
func (fl *FreeList) AllocPage() (mem.PhysAddr, error) {
	fl.stats.AllocCalls++
	if fl.head == 0 {
		return 0, ErrOutOfMemory
	}
	pa := fl.head
	fl.head = fl.img.Word(pa)
	fl.stats.FreePages--
	return pa, nil
}

// FreePage pushes a page back onto the free list.
func (fl *FreeList) FreePage(pa mem.PhysAddr) error {
	fl.stats.FreeCalls++
	if !format.PageAligned(pa) || pa < fl.start || pa >= fl.end {
		return fmt.Errorf("%w: %#x", ErrBadPage, pa)
	}
	fl.push(pa)
	return nil
}

func (fl *FreeList) push(pa mem.PhysAddr) {
	fl.img.SetWord(pa, fl.head)
	fl.head = pa
	fl.stats.FreePages++
}

// Stats returns a snapshot of the allocator counters.
func (fl *FreeList) Stats() Stats { return fl.stats }

// Compile-time interface check
var _ Allocator = (*FreeList)(nil)
