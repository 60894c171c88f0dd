package format

// Page alignment utilities. Mapping and allocation operations always work in
// whole pages; these helpers round arbitrary addresses and sizes to the
// hardware page granule.

// PageRoundDown returns a rounded down to its page boundary.
//
// Example:
//
//	PageRoundDown(0x1000) = 0x1000
//	PageRoundDown(0x1fff) = 0x1000
func PageRoundDown(a uint64) uint64 {
	return a &^ uint64(PageMask)
}

// PageRoundUp returns a rounded up to the next page boundary.
//
// Example:
//
//	PageRoundUp(0x1000) = 0x1000
//	PageRoundUp(0x1001) = 0x2000
func PageRoundUp(a uint64) uint64 {
	return (a + PageMask) &^ uint64(PageMask)
}

// PageOffset returns the offset of a within its page.
func PageOffset(a uint64) uint64 {
	return a & PageMask
}

// PageAligned reports whether a sits exactly on a page boundary.
func PageAligned(a uint64) bool {
	return a&PageMask == 0
}

// PagesSpanned returns the number of whole pages needed to cover size bytes.
func PagesSpanned(size uint64) uint64 {
	return (size + PageMask) >> PageShift
}

// SamePage reports whether two addresses fall on the same page.
func SamePage(a, b uint64) bool {
	return PageRoundDown(a) == PageRoundDown(b)
}
