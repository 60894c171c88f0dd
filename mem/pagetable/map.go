package pagetable

import (
	"errors"
	"fmt"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
)

// Map establishes mappings for every page covering [va, va+size) to the
// physical range starting at pa, with the given entry permission bits.
// Both addresses are rounded down to their page boundaries.
//
// A page that already has a valid entry is a programming error and yields
// ErrMappingCollision; physical exhaustion while building intermediate
// tables yields phys.ErrOutOfMemory. A partial mapping may remain after an
// error.
func (t *Table) Map(va VirtAddr, size uint64, pa mem.PhysAddr, perm uint64) error {
	if size == 0 {
		return nil
	}

	first := format.PageRoundDown(va)
	last := format.PageRoundDown(va + size - 1)
	pa = format.PageRoundDown(pa)

	for a := first; ; a, pa = a+format.PageSize, pa+format.PageSize {
		slot, err := t.walk(a, true)
		if err != nil {
			return fmt.Errorf("pagetable: mapping %#x: %w", a, err)
		}
		if t.img.Word(slot)&format.PTEValid != 0 {
			return fmt.Errorf("%w: va %#x -> pa %#x", ErrMappingCollision, a, pa)
		}
		t.img.SetWord(slot, format.PAToPTE(pa)|perm|format.PTEValid)
		t.mark(slot, format.EntrySize)
		if a == last {
			break
		}
	}
	return nil
}

// Unmap removes the mappings for every page covering [va, va+size).
// Pages with no existing mapping are silently skipped, so unmapping a hole
// (or the same range twice) is a no-op. With reclaim set, the backing
// physical frames are returned to the allocator.
//
// No translation caches are invalidated here: the single-core,
// non-preemptive model makes the stale-TLB window unobservable. A port to
// real hardware needs an sfence.vma at every unmap and permission downgrade.
func (t *Table) Unmap(va VirtAddr, size uint64, reclaim bool) error {
	if size == 0 {
		return nil
	}

	first := format.PageRoundDown(va)
	last := format.PageRoundDown(va + size - 1)

	for a := first; ; a += format.PageSize {
		slot, err := t.walk(a, false)
		if err != nil {
			if errors.Is(err, ErrNotMapped) {
				if a == last {
					break
				}
				continue
			}
			return err
		}
		pte := t.img.Word(slot)
		if pte&format.PTEValid != 0 {
			t.img.SetWord(slot, pte&^uint64(format.PTEValid))
			t.mark(slot, format.EntrySize)
			if reclaim {
				if err := t.pal.FreePage(format.PTEToPA(pte)); err != nil {
					return fmt.Errorf("pagetable: reclaiming %#x: %w", a, err)
				}
			}
		}
		if a == last {
			break
		}
	}
	return nil
}
