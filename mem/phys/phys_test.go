package phys

import (
	"errors"
	"testing"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
)

func newTestFreeList(t *testing.T, pages int) (*mem.Image, *FreeList) {
	t.Helper()
	img, err := mem.NewImage(format.DRAMBase, uint64(pages)*format.PageSize)
	if err != nil {
		t.Fatal(err)
	}
	fl, err := NewFreeList(img, img.Base(), img.End())
	if err != nil {
		t.Fatal(err)
	}
	return img, fl
}

func Test_FreeList_AllocAll(t *testing.T) {
	_, fl := newTestFreeList(t, 8)

	seen := make(map[mem.PhysAddr]bool)
	for i := 0; i < 8; i++ {
		pa, err := fl.AllocPage()
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		if !format.PageAligned(pa) {
			t.Fatalf("alloc %d: unaligned page %#x", i, pa)
		}
		if seen[pa] {
			t.Fatalf("alloc %d: page %#x handed out twice", i, pa)
		}
		seen[pa] = true
	}

	if _, err := fl.AllocPage(); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}

func Test_FreeList_Reuse(t *testing.T) {
	_, fl := newTestFreeList(t, 2)

	a, _ := fl.AllocPage()
	b, _ := fl.AllocPage()
	if err := fl.FreePage(a); err != nil {
		t.Fatal(err)
	}
	c, err := fl.AllocPage()
	if err != nil {
		t.Fatal(err)
	}
	if c != a {
		t.Fatalf("expected freed page %#x back, got %#x", a, c)
	}
	_ = b
}

func Test_FreeList_BadFree(t *testing.T) {
	img, fl := newTestFreeList(t, 4)

	if err := fl.FreePage(img.Base() + 1); !errors.Is(err, ErrBadPage) {
		t.Fatalf("unaligned free: expected ErrBadPage, got %v", err)
	}
	if err := fl.FreePage(img.End()); !errors.Is(err, ErrBadPage) {
		t.Fatalf("out-of-range free: expected ErrBadPage, got %v", err)
	}
}

func Test_FreeList_Stats(t *testing.T) {
	_, fl := newTestFreeList(t, 4)

	st := fl.Stats()
	if st.TotalPages != 4 || st.FreePages != 4 {
		t.Fatalf("initial stats wrong: %+v", st)
	}

	pa, _ := fl.AllocPage()
	if st = fl.Stats(); st.FreePages != 3 || st.AllocCalls != 1 {
		t.Fatalf("post-alloc stats wrong: %+v", st)
	}
	_ = fl.FreePage(pa)
	if st = fl.Stats(); st.FreePages != 4 || st.FreeCalls != 1 {
		t.Fatalf("post-free stats wrong: %+v", st)
	}
}

func Test_FreeList_RejectsBadRange(t *testing.T) {
	img, err := mem.NewImage(format.DRAMBase, 4*format.PageSize)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewFreeList(img, img.Base()+1, img.End()); err == nil {
		t.Fatal("expected error for unaligned start")
	}
	if _, err := NewFreeList(img, img.End(), img.Base()); err == nil {
		t.Fatal("expected error for inverted range")
	}
	if _, err := NewFreeList(img, img.Base(), img.End()+format.PageSize); err == nil {
		t.Fatal("expected error for range past image end")
	}
}
