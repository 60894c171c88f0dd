package format

// PTE index and address composition helpers for the SV39 radix tree.

// VPN extracts the page-table index for the given level (2, 1 or 0) from a
// virtual address.
func VPN(level int, va uint64) uint64 {
	return (va >> (PageShift + IndexBits*uint(level))) & IndexMask
}

// PAToPTE composes the physical-page-number field of an entry from a
// page-aligned physical address. Flag bits are left clear.
func PAToPTE(pa uint64) uint64 {
	return (pa >> PageShift) << PTEFlagBits
}

// PTEToPA recovers the page-aligned physical address from an entry.
func PTEToPA(pte uint64) uint64 {
	return (pte >> PTEFlagBits) << PageShift
}

// PTEFlags returns only the flag bits of an entry.
func PTEFlags(pte uint64) uint64 {
	return pte & ((1 << PTEFlagBits) - 1)
}

// SlotOffset returns the byte offset of an entry slot within its table page.
func SlotOffset(index uint64) uint64 {
	return index * EntrySize
}
