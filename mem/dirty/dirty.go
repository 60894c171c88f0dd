// Package dirty tracks modified byte ranges of a file-backed memory image
// and flushes them with platform-specific calls (msync on unix). Components
// that mutate the image mark the regions they touch; a boot image snapshot
// can then be synced incrementally instead of rewriting the whole file.
package dirty

import (
	"context"
	"sort"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
)

// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
const defaultRangeCapacity = 64

// Range represents a dirty byte range (offsets into the image).
type Range struct {
	Off int64
	Len int64
}

// Tracker accumulates dirty ranges and flushes them efficiently.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	img    *mem.Image
	ranges []Range
}

// NewTracker creates a dirty tracker for the given image.
func NewTracker(img *mem.Image) *Tracker {
	return &Tracker{
		img:    img,
		ranges: make([]Range, 0, defaultRangeCapacity),
	}
}

// Add records a dirty range. Very fast: appends to a slice; alignment and
// coalescing happen at flush time.
func (t *Tracker) Add(off, length int) {
	t.ranges = append(t.ranges, Range{Off: int64(off), Len: int64(length)})
}

// Pending returns the number of recorded (uncoalesced) ranges.
func (t *Tracker) Pending() int { return len(t.ranges) }

// Flush writes all dirty ranges back to the image file and then syncs the
// descriptor. For in-memory images it only clears the recorded ranges.
//
// The context can cancel the flush between ranges; some ranges may have been
// flushed while others have not.
func (t *Tracker) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.img.FD() < 0 {
		t.ranges = t.ranges[:0]
		return nil
	}

	coalesced := t.coalesce()
	if err := t.flushRanges(ctx, t.img.Bytes(), coalesced); err != nil {
		return err
	}
	if err := fdatasync(t.img.FD()); err != nil {
		return err
	}

	t.ranges = t.ranges[:0]
	return nil
}

// coalesce sorts the recorded ranges, aligns them to page boundaries and
// merges overlapping or adjacent ranges.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, 0, len(t.ranges))
	for _, r := range t.ranges {
		start := r.Off &^ int64(format.PageMask)
		end := (r.Off + r.Len + format.PageMask) &^ int64(format.PageMask)
		if max := int64(t.img.Size()); end > max {
			end = max
		}
		if end > start {
			aligned = append(aligned, Range{Off: start, Len: end - start})
		}
	}

	sort.Slice(aligned, func(i, j int) bool { return aligned[i].Off < aligned[j].Off })

	out := aligned[:1]
	for _, r := range aligned[1:] {
		last := &out[len(out)-1]
		if r.Off <= last.Off+last.Len {
			if end := r.Off + r.Len; end > last.Off+last.Len {
				last.Len = end - last.Off
			}
		} else {
			out = append(out, r)
		}
	}
	return out
}
