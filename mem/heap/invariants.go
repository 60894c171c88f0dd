package heap

import (
	"fmt"
	"sort"

	"github.com/hz826/pkevm/internal/format"
)

// Segment is a read-only view of one segment descriptor, in list order.
type Segment struct {
	VA       uint64
	Size     uint64
	Occupied bool
}

// Segments returns the current segment list in list order.
func (h *Heap) Segments() []Segment {
	var out []Segment
	for s := h.next(h.segHead); s != 0; s = h.next(s) {
		out = append(out, Segment{
			VA:       h.segVA(s),
			Size:     h.segSize(s),
			Occupied: h.segOccupied(s),
		})
	}
	return out
}

// BigAllocs returns the first-page virtual address and page count of every
// live big allocation.
func (h *Heap) BigAllocs() map[uint64]int {
	out := make(map[uint64]int)
	for d := h.next(h.bigHead); d != 0; d = h.next(d) {
		pages := 0
		for q := d; q != 0; q = h.pageChain(q) {
			pages++
		}
		out[h.pageVA(d)] = pages
	}
	return out
}

// CheckTiling verifies the segment tiling invariant: for every virtual page
// backing small allocations, the segments on that page partition exactly one
// page-size span with no gaps and no overlaps.
func (h *Heap) CheckTiling() error {
	byPage := make(map[uint64][]Segment)
	for _, s := range h.Segments() {
		base := format.PageRoundDown(s.VA)
		if !format.SamePage(s.VA, s.VA+s.Size-1) {
			return fmt.Errorf("heap: segment [%#x, %#x) crosses a page boundary", s.VA, s.VA+s.Size)
		}
		byPage[base] = append(byPage[base], s)
	}

	for base, segs := range byPage {
		sort.Slice(segs, func(i, j int) bool { return segs[i].VA < segs[j].VA })
		at := base
		for _, s := range segs {
			if s.VA != at {
				return fmt.Errorf("heap: page %#x: gap or overlap at %#x (segment starts %#x)", base, at, s.VA)
			}
			at += s.Size
		}
		if at != base+format.PageSize {
			return fmt.Errorf("heap: page %#x: segments cover %d bytes, want %d", base, at-base, format.PageSize)
		}
	}
	return nil
}
