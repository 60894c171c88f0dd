package vm

import (
	"context"
	"fmt"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
	"github.com/hz826/pkevm/mem/dirty"
	"github.com/hz826/pkevm/mem/heap"
	"github.com/hz826/pkevm/mem/pagetable"
	"github.com/hz826/pkevm/mem/phys"
)

// Prot and its values are re-exported for convenience.
type Prot = pagetable.Prot

const (
	ProtNone  = pagetable.ProtNone
	ProtRead  = pagetable.ProtRead
	ProtWrite = pagetable.ProtWrite
	ProtExec  = pagetable.ProtExec
)

// Machine is a booted simulated machine: DRAM, the physical page free list
// and the global kernel address space.
type Machine struct {
	Image  *mem.Image
	Phys   *phys.FreeList
	Kernel *pagetable.Table

	tracker  *dirty.Tracker // nil for in-memory images
	layout   pagetable.KernelLayout
	heapBase uint64
}

// Boot creates the DRAM image, seeds the physical free list with every page
// above the kernel text, and builds the identity-mapped kernel space. This
// is the one-time, system-wide initialization.
func Boot(opts Options) (*Machine, error) {
	o := opts.withDefaults()

	var (
		img *mem.Image
		err error
	)
	if o.ImagePath != "" {
		img, err = mem.CreateImage(o.ImagePath, o.Base, o.MemSize)
	} else {
		img, err = mem.NewImage(o.Base, o.MemSize)
	}
	if err != nil {
		return nil, fmt.Errorf("vm: creating image: %w", err)
	}

	var tracker *dirty.Tracker
	var dt dirty.DirtyTracker
	if o.ImagePath != "" {
		tracker = dirty.NewTracker(img)
		dt = tracker
	}

	textEnd := o.Base + uint64(o.KernelTextPages)*format.PageSize
	if textEnd >= img.End() {
		_ = img.Close()
		return nil, fmt.Errorf("vm: kernel text (%d pages) leaves no free memory", o.KernelTextPages)
	}

	freeList, err := phys.NewFreeList(img, textEnd, img.End())
	if err != nil {
		_ = img.Close()
		return nil, fmt.Errorf("vm: seeding free list: %w", err)
	}

	layout := pagetable.KernelLayout{
		KernBase: o.Base,
		TextEnd:  textEnd,
		PhysTop:  img.End(),
	}
	kernel, err := pagetable.BuildKernelSpace(img, freeList, dt, layout)
	if err != nil {
		_ = img.Close()
		return nil, fmt.Errorf("vm: building kernel space: %w", err)
	}

	return &Machine{
		Image:    img,
		Phys:     freeList,
		Kernel:   kernel,
		tracker:  tracker,
		layout:   layout,
		heapBase: o.HeapBase,
	}, nil
}

// Layout returns the kernel address-space layout the machine booted with.
func (m *Machine) Layout() pagetable.KernelLayout { return m.layout }

// NewProcess creates a fresh user address space with a heap bound to it.
// The kernel model runs one process at a time; nothing stops a test from
// holding several, they just share the physical allocator.
func (m *Machine) NewProcess() (*Process, error) {
	var dt dirty.DirtyTracker
	if m.tracker != nil {
		dt = m.tracker
	}

	table, err := pagetable.New(m.Image, m.Phys, dt)
	if err != nil {
		return nil, fmt.Errorf("vm: creating process space: %w", err)
	}
	h, err := heap.New(m.Image, m.Phys, table, dt, m.heapBase)
	if err != nil {
		return nil, fmt.Errorf("vm: creating process heap: %w", err)
	}
	return &Process{Table: table, Heap: h}, nil
}

// Sync flushes dirty image ranges for file-backed machines; a no-op for
// in-memory ones.
func (m *Machine) Sync(ctx context.Context) error {
	if m.tracker == nil {
		return nil
	}
	return m.tracker.Flush(ctx)
}

// Close releases the image.
func (m *Machine) Close() error {
	return m.Image.Close()
}

// Process is one user address space plus its heap. Syscall dispatch and ELF
// loading (external collaborators) call into these.
type Process struct {
	Table *pagetable.Table
	Heap  *heap.Heap
}

// Malloc allocates size bytes on the process heap with the given
// permissions and returns the user virtual address.
func (p *Process) Malloc(size uint64, prot Prot) (uint64, error) {
	return p.Heap.Alloc(size, prot)
}

// Free releases the allocation at va. Unknown addresses are a silent no-op.
func (p *Process) Free(va uint64) error {
	return p.Heap.Free(va)
}

// Translate resolves a user virtual address to its physical address.
func (p *Process) Translate(va uint64) (uint64, bool) {
	return p.Table.Translate(va)
}
