package vm

import "github.com/hz826/pkevm/internal/format"

// Options controls machine boot.
type Options struct {
	// Base is the physical address where DRAM starts.
	// Default: 0x80000000 (RISC-V platform convention).
	Base uint64

	// MemSize is the DRAM size in bytes (page multiple).
	// Default: 128 MiB.
	MemSize uint64

	// KernelTextPages is the number of pages at Base treated as kernel
	// text+rodata: identity-mapped read+execute, excluded from the free
	// page region. Default: 128 (512 KiB).
	KernelTextPages int

	// ImagePath, when set, backs the DRAM with an mmapped file at that path
	// (created zeroed), so the booted state can be flushed with Sync and
	// reopened. Empty means an in-memory image.
	ImagePath string

	// HeapBase is the first user virtual address the process heap carves
	// pages from. Default: 0x400000.
	HeapBase uint64
}

// defaultHeapBase leaves the low user range to the program image, the way
// the ELF loader places teaching-kernel binaries.
const defaultHeapBase = 0x400000

const defaultKernelTextPages = 128

func (o *Options) withDefaults() Options {
	out := *o
	if out.Base == 0 {
		out.Base = format.DRAMBase
	}
	if out.MemSize == 0 {
		out.MemSize = format.DefaultDRAMSize
	}
	if out.KernelTextPages == 0 {
		out.KernelTextPages = defaultKernelTextPages
	}
	if out.HeapBase == 0 {
		out.HeapBase = defaultHeapBase
	}
	return out
}
