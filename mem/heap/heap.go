// Package heap implements the user-space heap allocator: a two-tier design
// with whole-page allocation for requests of at least one page and a
// first-fit segment allocator with coalescing-on-free below that. All
// metadata lives in descriptor cells pooled out of physical pages, so the
// allocator is built directly on the physical page allocator with nothing
// underneath to borrow from.
package heap

import (
	"fmt"
	"os"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
	"github.com/hz826/pkevm/mem/dirty"
	"github.com/hz826/pkevm/mem/pagetable"
	"github.com/hz826/pkevm/mem/phys"
)

// Runtime debug flag for heap tracing - controlled by PKEVM_LOG_HEAP env var.
var logHeap = os.Getenv("PKEVM_LOG_HEAP") != ""

func heapLogf(msg string, args ...any) {
	if logHeap {
		fmt.Fprintf(os.Stderr, "[HEAP] "+msg+"\n", args...)
	}
}

// Stats holds heap counters for instrumentation and tests.
type Stats struct {
	AllocCalls     int
	FreeCalls      int
	SmallAllocs    int
	BigAllocs      int
	PagesMapped    int // heap pages mapped via the page-table engine
	PagesReclaimed int // heap pages unmapped and returned to the physical allocator
	SegmentSplits  int
	SegmentMerges  int
}

// Heap is the per-process allocation context: the next-free-virtual-page
// cursor, the segment and big-allocation lists, and the descriptor pools.
// Exactly one Heap is bound to one address space; operations are synchronous
// and unsynchronized (single execution context model).
type Heap struct {
	img *mem.Image
	pal phys.Allocator
	pt  *pagetable.Table
	dt  dirty.DirtyTracker

	segPool  pool
	pagePool pool

	segHead mem.PhysAddr // sentinel of the global segment list
	bigHead mem.PhysAddr // sentinel of the big-allocation head list

	// cursor is the next free virtual page of the process, monotonically
	// non-decreasing; virtual addresses are never reused once carved.
	cursor pagetable.VirtAddr

	stats Stats
}

// New creates a heap for the address space behind pt, carving virtual pages
// starting at base.
func New(img *mem.Image, pal phys.Allocator, pt *pagetable.Table, dt dirty.DirtyTracker, base pagetable.VirtAddr) (*Heap, error) {
	h := &Heap{
		img:      img,
		pal:      pal,
		pt:       pt,
		dt:       dt,
		segPool:  newPool(img, pal, dt, format.SegNodeSize),
		pagePool: newPool(img, pal, dt, format.PageNodeSize),
		cursor:   base,
	}

	segHead, err := h.segPool.acquire()
	if err != nil {
		return nil, fmt.Errorf("heap: allocating segment list head: %w", err)
	}
	bigHead, err := h.pagePool.acquire()
	if err != nil {
		return nil, fmt.Errorf("heap: allocating page list head: %w", err)
	}
	h.segHead, h.bigHead = segHead, bigHead
	return h, nil
}

func (h *Heap) mark(pa mem.PhysAddr, n int) {
	if h.dt != nil {
		h.dt.Add(h.img.Offset(pa), n)
	}
}

// Cursor returns the process heap cursor (the next virtual page to carve).
func (h *Heap) Cursor() pagetable.VirtAddr { return h.cursor }

// Stats returns a snapshot of the heap counters.
func (h *Heap) Stats() Stats { return h.stats }

// Alloc satisfies an allocation request of size bytes with the given
// abstract permissions (user mappings). Requests of at least one page take
// the big path; smaller requests take the segment path. Physical exhaustion
// propagates as phys.ErrOutOfMemory.
func (h *Heap) Alloc(size uint64, prot pagetable.Prot) (pagetable.VirtAddr, error) {
	h.stats.AllocCalls++
	if size == 0 {
		return 0, ErrBadSize
	}
	perm := pagetable.PermBits(prot, true)
	if size >= format.PageSize {
		return h.allocBig(size, perm)
	}
	return h.allocSmall(size, perm)
}

// allocPageWithVM obtains one physical page and maps it at the heap cursor,
// advancing the cursor by one page. Returns the virtual address of the new
// page.
func (h *Heap) allocPageWithVM(perm uint64) (pagetable.VirtAddr, error) {
	pa, err := h.pal.AllocPage()
	if err != nil {
		return 0, err
	}
	h.cursor = format.PageRoundUp(h.cursor)
	if err := h.pt.Map(h.cursor, format.PageSize, pa, perm); err != nil {
		_ = h.pal.FreePage(pa)
		return 0, err
	}
	va := h.cursor
	h.cursor += format.PageSize
	h.stats.PagesMapped++
	heapLogf("new page pa=%#x va=%#x", pa, va)
	return va, nil
}

// allocBig maps one fresh page per page of the request at consecutive
// virtual pages and chains a page descriptor for each, registering the head
// of the chain on the big-allocation list. Returns the address of the first
// page.
//
// On mid-chain exhaustion the already-mapped pages stay mapped; the failed
// allocation is simply never handed out (no retry, no eviction).
func (h *Heap) allocBig(size uint64, perm uint64) (pagetable.VirtAddr, error) {
	pages := format.PagesSpanned(size)
	h.cursor = format.PageRoundUp(h.cursor)
	va := h.cursor

	var head, last mem.PhysAddr
	for i := uint64(0); i < pages; i++ {
		pageVA, err := h.allocPageWithVM(perm)
		if err != nil {
			return 0, err
		}
		d, err := h.pagePool.acquire()
		if err != nil {
			return 0, err
		}
		h.setPageVA(d, pageVA)
		if head == 0 {
			head = d
		} else {
			h.setPageChain(last, d)
		}
		last = d
	}

	h.insertAfter(h.bigHead, head)
	h.stats.BigAllocs++
	heapLogf("big alloc size=%d pages=%d va=%#x", size, pages, va)
	return va, nil
}

// allocSmall scans the segment list in order for the first free segment
// large enough, carving a fresh whole-page segment when none fits. The
// chosen segment is truncated to the request and any excess spliced in
// directly after it as a new free segment.
func (h *Heap) allocSmall(size uint64, perm uint64) (pagetable.VirtAddr, error) {
	var found mem.PhysAddr
	for s := h.next(h.segHead); s != 0; s = h.next(s) {
		if !h.segOccupied(s) && h.segSize(s) >= size {
			found = s
			break
		}
	}

	if found == 0 {
		s, err := h.segPool.acquire()
		if err != nil {
			return 0, err
		}
		va, err := h.allocPageWithVM(perm)
		if err != nil {
			h.segPool.release(s)
			return 0, err
		}
		h.insertAfter(h.segHead, s)
		h.setSegVA(s, va)
		h.setSegSize(s, format.PageSize)
		h.setSegOccupied(s, false)
		found = s
	}

	if excess := h.segSize(found) - size; excess > 0 {
		rest, err := h.segPool.acquire()
		if err != nil {
			return 0, err
		}
		h.insertAfter(found, rest)
		h.setSegVA(rest, h.segVA(found)+size)
		h.setSegSize(rest, excess)
		h.setSegOccupied(rest, false)
		h.setSegSize(found, size)
		h.stats.SegmentSplits++
	}
	h.setSegOccupied(found, true)

	h.stats.SmallAllocs++
	heapLogf("small alloc size=%d va=%#x", size, h.segVA(found))
	return h.segVA(found), nil
}

// Free releases the allocation starting at va: first the segment list is
// searched for a matching base address, then the big-allocation list for a
// matching chain head. An address matching neither is a silent no-op;
// callers are trusted in this design.
func (h *Heap) Free(va pagetable.VirtAddr) error {
	h.stats.FreeCalls++

	for s := h.next(h.segHead); s != 0; s = h.next(s) {
		if h.segVA(s) == va {
			return h.freeSmall(s)
		}
	}
	for d := h.next(h.bigHead); d != 0; d = h.next(d) {
		if h.pageVA(d) == va {
			return h.freeBig(d)
		}
	}

	heapLogf("free va=%#x: no matching allocation", va)
	return nil
}

// freeSmall marks the segment free and coalesces it with its list neighbors,
// but only neighbors that are free and lie on the same physical page: page
// boundaries are the unit of physical reclamation, so numerically contiguous
// ranges on different pages never merge. A merge that recovers exactly one
// full page unmaps and reclaims the page and discards the descriptor.
func (h *Heap) freeSmall(s mem.PhysAddr) error {
	heapLogf("small free va=%#x size=%d", h.segVA(s), h.segSize(s))
	h.setSegOccupied(s, false)

	if p := h.prev(s); p != h.segHead && p != 0 &&
		!h.segOccupied(p) && format.SamePage(h.segVA(p), h.segVA(s)) {
		h.setSegVA(s, h.segVA(p))
		h.setSegSize(s, h.segSize(s)+h.segSize(p))
		h.removeNode(p)
		h.segPool.release(p)
		h.stats.SegmentMerges++
	}
	if n := h.next(s); n != 0 &&
		!h.segOccupied(n) && format.SamePage(h.segVA(n), h.segVA(s)) {
		h.setSegSize(s, h.segSize(s)+h.segSize(n))
		h.removeNode(n)
		h.segPool.release(n)
		h.stats.SegmentMerges++
	}

	if h.segSize(s) == format.PageSize {
		if err := h.reclaimPage(h.segVA(s)); err != nil {
			return err
		}
		h.removeNode(s)
		h.segPool.release(s)
	}
	return nil
}

// freeBig unmaps and reclaims every page in the chain and releases every
// descriptor.
func (h *Heap) freeBig(head mem.PhysAddr) error {
	heapLogf("big free va=%#x", h.pageVA(head))
	h.removeNode(head)
	for d := head; d != 0; {
		next := h.pageChain(d)
		if err := h.reclaimPage(h.pageVA(d)); err != nil {
			return err
		}
		h.pagePool.release(d)
		d = next
	}
	return nil
}

// reclaimPage unmaps one heap page and returns its frame to the physical
// allocator. The virtual page is gone as addressable heap; the cursor never
// moves backwards to reuse it.
func (h *Heap) reclaimPage(va pagetable.VirtAddr) error {
	if err := h.pt.Unmap(va, format.PageSize, true); err != nil {
		return err
	}
	h.stats.PagesReclaimed++
	return nil
}
