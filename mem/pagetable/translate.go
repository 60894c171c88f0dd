package pagetable

import (
	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
)

// Translate looks up the physical address va maps to, preserving the offset
// bits within the page. A missing entry, an invalid entry, or an entry that
// grants neither read nor write all report not-mapped.
func (t *Table) Translate(va VirtAddr) (mem.PhysAddr, bool) {
	slot, err := t.walk(va, false)
	if err != nil {
		return 0, false
	}
	pte := t.img.Word(slot)
	if pte&format.PTEValid == 0 || pte&(format.PTERead|format.PTEWrite) == 0 {
		return 0, false
	}
	return format.PTEToPA(pte) | format.PageOffset(va), true
}
