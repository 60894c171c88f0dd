package heap

import (
	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
	"github.com/hz826/pkevm/mem/dirty"
	"github.com/hz826/pkevm/mem/phys"
)

// pool is a fixed-size-object allocator for descriptor cells, backed directly
// by whole physical pages. When its free stack runs dry it carves one fresh
// page into cells; released cells go back on the stack. Pool pages are never
// returned to the physical allocator.
//
// The free stack is threaded through the first word of each free cell, so the
// pool carries no metadata beyond the stack head.
type pool struct {
	img      *mem.Image
	pal      phys.Allocator
	dt       dirty.DirtyTracker
	cellSize uint64
	head     mem.PhysAddr // top of the free stack, 0 when empty

	pages     int // pool pages carved so far
	freeCells int
}

func newPool(img *mem.Image, pal phys.Allocator, dt dirty.DirtyTracker, cellSize uint64) pool {
	return pool{img: img, pal: pal, dt: dt, cellSize: cellSize}
}

// acquire pops a zeroed cell off the free stack, carving a new page first if
// the stack is empty. After a successful carve the stack is guaranteed
// non-empty.
func (p *pool) acquire() (mem.PhysAddr, error) {
	if p.head == 0 {
		pa, err := p.pal.AllocPage()
		if err != nil {
			return 0, err
		}
		p.img.ZeroPage(pa)
		p.mark(pa, format.PageSize)
		for off := uint64(0); off+p.cellSize <= format.PageSize; off += p.cellSize {
			p.push(pa + off)
		}
		p.pages++
	}

	cell := p.head
	p.head = p.img.Word(cell)
	p.freeCells--
	p.img.ZeroRange(cell, p.cellSize)
	p.mark(cell, int(p.cellSize))
	return cell, nil
}

// release puts a cell back on the free stack unconditionally. The pool never
// shrinks; for the bounded workloads of a teaching kernel that is acceptable.
func (p *pool) release(cell mem.PhysAddr) {
	p.push(cell)
	p.mark(cell, 8)
}

func (p *pool) push(cell mem.PhysAddr) {
	p.img.SetWord(cell, p.head)
	p.head = cell
	p.freeCells++
}

func (p *pool) mark(pa mem.PhysAddr, n int) {
	if p.dt != nil {
		p.dt.Add(p.img.Offset(pa), n)
	}
}
