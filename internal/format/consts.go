package format

// Layout constants for the SV39 paging scheme (RISC-V, 3 levels, 4KiB pages).
// The bit layout of a page-table entry is fixed by the hardware; everything in
// this package merely encodes and decodes it.

const (
	// PageShift is log2 of the page size.
	PageShift = 12

	// PageSize is the size of one page in bytes.
	PageSize = 1 << PageShift

	// PageMask selects the offset bits of an address within a page.
	PageMask = PageSize - 1

	// EntrySize is the size of one page-table entry in bytes.
	EntrySize = 8

	// EntriesPerTable is the number of entry slots in one table page.
	EntriesPerTable = PageSize / EntrySize

	// Levels is the number of page-table levels (SV39: 2 -> 1 -> 0).
	Levels = 3

	// IndexBits is the number of virtual-address bits consumed per level.
	IndexBits = 9

	// IndexMask selects one level's index from a shifted virtual address.
	IndexMask = EntriesPerTable - 1
)

// MaxVA is one beyond the highest usable SV39 virtual address. It is one bit
// less than the full 39 bits to sidestep the sign-extension of addresses with
// bit 38 set.
const MaxVA = uint64(1) << (IndexBits*Levels + PageShift - 1)

// Page-table entry flag bits.
const (
	PTEValid    = 1 << 0 // V: entry is present
	PTERead     = 1 << 1 // R
	PTEWrite    = 1 << 2 // W
	PTEExec     = 1 << 3 // X
	PTEUser     = 1 << 4 // U: accessible in user mode
	PTEGlobal   = 1 << 5 // G
	PTEAccessed = 1 << 6 // A
	PTEDirty    = 1 << 7 // D
)

// PTEFlagBits is the number of low bits holding flags; the physical page
// number starts directly above them.
const PTEFlagBits = 10

// Default simulated machine layout. DRAMBase matches the physical address at
// which RISC-V platform DRAM (and the kernel image) conventionally starts.
const (
	DRAMBase        = uint64(0x80000000)
	DefaultDRAMSize = 128 << 20
)

// Descriptor cell layout for the heap allocator's pooled metadata.
//
// Every pooled descriptor starts with a two-word doubly-linked list header.
// Links are physical addresses into the memory image; zero is the nil link.
const (
	NodePrevOffset = 0
	NodeNextOffset = 8
	NodeHeaderSize = 16
)

// Page descriptor: one physical page backing a big (>= one page) allocation.
const (
	PageNodeVAOffset    = NodeHeaderSize
	PageNodeChainOffset = NodeHeaderSize + 8
	PageNodeSize        = NodeHeaderSize + 16
)

// Segment descriptor: a sub-page run of virtual address space tracked by the
// small-allocation path.
const (
	SegNodeVAOffset    = NodeHeaderSize
	SegNodeSizeOffset  = NodeHeaderSize + 8
	SegNodeFlagsOffset = NodeHeaderSize + 16
	SegNodeSize        = NodeHeaderSize + 24
)

// Segment flag values stored at SegNodeFlagsOffset.
const (
	SegFree     = 0
	SegOccupied = 1
)
