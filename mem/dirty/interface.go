package dirty

// DirtyTracker is the minimal interface for marking modified byte ranges of
// the memory image. Components that mutate the image (page-table engine,
// heap, physical allocator) only need Add; they never flush themselves.
type DirtyTracker interface {
	// Add marks a byte range as dirty.
	// off is the offset from the start of the image, length the number of bytes.
	Add(off, length int)
}
