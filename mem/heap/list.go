package heap

import (
	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
)

// Intrusive doubly-linked list over descriptor cells in the image. Every
// pooled descriptor starts with a prev/next header of physical addresses;
// zero is the nil link. List heads are sentinel cells owned by the Heap and
// never handed to callers, so a node's prev is never nil while linked.

func (h *Heap) prev(n mem.PhysAddr) mem.PhysAddr {
	return h.img.Word(n + format.NodePrevOffset)
}

func (h *Heap) next(n mem.PhysAddr) mem.PhysAddr {
	return h.img.Word(n + format.NodeNextOffset)
}

func (h *Heap) setPrev(n, v mem.PhysAddr) {
	h.img.SetWord(n+format.NodePrevOffset, v)
	h.mark(n+format.NodePrevOffset, 8)
}

func (h *Heap) setNext(n, v mem.PhysAddr) {
	h.img.SetWord(n+format.NodeNextOffset, v)
	h.mark(n+format.NodeNextOffset, 8)
}

// insertAfter splices n into the list directly after p.
func (h *Heap) insertAfter(p, n mem.PhysAddr) {
	succ := h.next(p)
	h.setPrev(n, p)
	h.setNext(n, succ)
	if succ != 0 {
		h.setPrev(succ, n)
	}
	h.setNext(p, n)
}

// removeNode unlinks n. The cell's own links are left stale; the pool zeroes
// cells on acquire.
func (h *Heap) removeNode(n mem.PhysAddr) {
	p, s := h.prev(n), h.next(n)
	if p != 0 {
		h.setNext(p, s)
	}
	if s != 0 {
		h.setPrev(s, p)
	}
}

// Segment descriptor field access.

func (h *Heap) segVA(s mem.PhysAddr) uint64   { return h.img.Word(s + format.SegNodeVAOffset) }
func (h *Heap) segSize(s mem.PhysAddr) uint64 { return h.img.Word(s + format.SegNodeSizeOffset) }

func (h *Heap) segOccupied(s mem.PhysAddr) bool {
	return h.img.Word(s+format.SegNodeFlagsOffset) == format.SegOccupied
}

func (h *Heap) setSegVA(s mem.PhysAddr, va uint64) {
	h.img.SetWord(s+format.SegNodeVAOffset, va)
	h.mark(s+format.SegNodeVAOffset, 8)
}

func (h *Heap) setSegSize(s mem.PhysAddr, size uint64) {
	h.img.SetWord(s+format.SegNodeSizeOffset, size)
	h.mark(s+format.SegNodeSizeOffset, 8)
}

func (h *Heap) setSegOccupied(s mem.PhysAddr, occupied bool) {
	v := uint64(format.SegFree)
	if occupied {
		v = format.SegOccupied
	}
	h.img.SetWord(s+format.SegNodeFlagsOffset, v)
	h.mark(s+format.SegNodeFlagsOffset, 8)
}

// Page descriptor field access.

func (h *Heap) pageVA(d mem.PhysAddr) uint64 { return h.img.Word(d + format.PageNodeVAOffset) }
func (h *Heap) pageChain(d mem.PhysAddr) mem.PhysAddr {
	return h.img.Word(d + format.PageNodeChainOffset)
}

func (h *Heap) setPageVA(d mem.PhysAddr, va uint64) {
	h.img.SetWord(d+format.PageNodeVAOffset, va)
	h.mark(d+format.PageNodeVAOffset, 8)
}

func (h *Heap) setPageChain(d, next mem.PhysAddr) {
	h.img.SetWord(d+format.PageNodeChainOffset, next)
	h.mark(d+format.PageNodeChainOffset, 8)
}
