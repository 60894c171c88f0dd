// Package pagetable implements the 3-level SV39 radix tree: walking,
// mapping, unmapping and translation against a simulated memory image.
// Intermediate table pages are allocated lazily from the physical allocator
// and owned by the tree once installed.
package pagetable

import (
	"fmt"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
	"github.com/hz826/pkevm/mem/dirty"
	"github.com/hz826/pkevm/mem/phys"
)

// VirtAddr is a virtual address in some address space.
type VirtAddr = uint64

// Table binds a page-table root to the image and allocator it lives in.
// The root handle itself (a physical page address) is what process-switch
// code would load into satp.
type Table struct {
	img  *mem.Image
	pal  phys.Allocator
	dt   dirty.DirtyTracker // nil when the image is not file-backed
	root mem.PhysAddr
}

// New allocates and zeroes a fresh root page and returns a table over it.
func New(img *mem.Image, pal phys.Allocator, dt dirty.DirtyTracker) (*Table, error) {
	root, err := pal.AllocPage()
	if err != nil {
		return nil, fmt.Errorf("pagetable: allocating root: %w", err)
	}
	img.ZeroPage(root)
	t := &Table{img: img, pal: pal, dt: dt, root: root}
	t.mark(root, format.PageSize)
	return t, nil
}

// Attach wraps an existing root page without touching it.
func Attach(img *mem.Image, pal phys.Allocator, dt dirty.DirtyTracker, root mem.PhysAddr) *Table {
	return &Table{img: img, pal: pal, dt: dt, root: root}
}

// Root returns the physical address of the root table page.
func (t *Table) Root() mem.PhysAddr { return t.root }

func (t *Table) mark(pa mem.PhysAddr, n int) {
	if t.dt != nil {
		t.dt.Add(t.img.Offset(pa), n)
	}
}

// walk descends the tree from level 2 to level 0 and returns the physical
// address of the level-0 entry slot for va. The slot itself may hold an
// invalid entry. With alloc set, missing intermediate tables are allocated,
// zeroed and installed with only the valid bit; without it a hole yields
// ErrNotMapped.
func (t *Table) walk(va VirtAddr, alloc bool) (mem.PhysAddr, error) {
	if va >= format.MaxVA {
		return 0, fmt.Errorf("%w: %#x", ErrAddressOutOfRange, va)
	}

	pt := t.root
	for level := format.Levels - 1; level > 0; level-- {
		slot := pt + format.SlotOffset(format.VPN(level, va))
		pte := t.img.Word(slot)
		if pte&format.PTEValid != 0 {
			pt = format.PTEToPA(pte)
			continue
		}
		if !alloc {
			return 0, ErrNotMapped
		}
		pa, err := t.pal.AllocPage()
		if err != nil {
			return 0, err
		}
		t.img.ZeroPage(pa)
		t.mark(pa, format.PageSize)
		t.img.SetWord(slot, format.PAToPTE(pa)|format.PTEValid)
		t.mark(slot, format.EntrySize)
		pt = pa
	}
	return pt + format.SlotOffset(format.VPN(0, va)), nil
}

// Entry returns the raw level-0 entry for va, walking without allocation.
func (t *Table) Entry(va VirtAddr) (uint64, error) {
	slot, err := t.walk(va, false)
	if err != nil {
		return 0, err
	}
	return t.img.Word(slot), nil
}
