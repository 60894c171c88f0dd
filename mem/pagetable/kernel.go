package pagetable

import (
	"fmt"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
	"github.com/hz826/pkevm/mem/dirty"
	"github.com/hz826/pkevm/mem/phys"
)

// KernelLayout describes the identity-mapped kernel address space. On real
// hardware TextEnd comes from the linker (_etext); the simulation makes it
// an explicit, page-aligned parameter.
type KernelLayout struct {
	KernBase VirtAddr     // start of kernel text, identity-mapped
	TextEnd  VirtAddr     // first byte after text+rodata, page-aligned
	PhysTop  mem.PhysAddr // one past the highest mapped physical address
}

// BuildKernelSpace constructs the single global kernel address space on a
// fresh root: [KernBase, TextEnd) is identity-mapped read+execute, and all
// remaining physical memory up to PhysTop is identity-mapped read+write so
// the kernel can reach any frame directly, e.g. to inspect a process's
// memory without copying.
func BuildKernelSpace(img *mem.Image, pal phys.Allocator, dt dirty.DirtyTracker, layout KernelLayout) (*Table, error) {
	if !format.PageAligned(layout.TextEnd) {
		return nil, fmt.Errorf("pagetable: kernel text end %#x: %w", layout.TextEnd, format.ErrUnaligned)
	}
	if layout.KernBase >= layout.TextEnd || layout.TextEnd > layout.PhysTop {
		return nil, fmt.Errorf("pagetable: bad kernel layout [%#x, %#x, %#x)",
			layout.KernBase, layout.TextEnd, layout.PhysTop)
	}

	t, err := New(img, pal, dt)
	if err != nil {
		return nil, err
	}

	if err := t.Map(layout.KernBase, layout.TextEnd-layout.KernBase, layout.KernBase,
		PermBits(ProtRead|ProtExec, false)); err != nil {
		return nil, fmt.Errorf("pagetable: mapping kernel text: %w", err)
	}
	if err := t.Map(layout.TextEnd, layout.PhysTop-layout.TextEnd, layout.TextEnd,
		PermBits(ProtRead|ProtWrite, false)); err != nil {
		return nil, fmt.Errorf("pagetable: mapping kernel data: %w", err)
	}
	return t, nil
}
