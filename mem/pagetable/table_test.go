package pagetable

import (
	"errors"
	"testing"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
	"github.com/hz826/pkevm/mem/phys"
)

func newTestTable(t *testing.T, pages int) (*mem.Image, *phys.FreeList, *Table) {
	t.Helper()
	img, err := mem.NewImage(format.DRAMBase, uint64(pages)*format.PageSize)
	if err != nil {
		t.Fatal(err)
	}
	fl, err := phys.NewFreeList(img, img.Base(), img.End())
	if err != nil {
		t.Fatal(err)
	}
	tab, err := New(img, fl, nil)
	if err != nil {
		t.Fatal(err)
	}
	return img, fl, tab
}

func Test_Map_TranslateRoundTrip(t *testing.T) {
	img, fl, tab := newTestTable(t, 32)

	frame, err := fl.AllocPage()
	if err != nil {
		t.Fatal(err)
	}
	va := uint64(0x400000)
	if err := tab.Map(va, format.PageSize, frame, PermBits(ProtRead|ProtWrite, true)); err != nil {
		t.Fatal(err)
	}

	pa, ok := tab.Translate(va)
	if !ok || pa != frame {
		t.Fatalf("Translate(%#x) = %#x, %v; want %#x, true", va, pa, ok, frame)
	}

	// Offset bits inside the page are preserved.
	pa, ok = tab.Translate(va + 0x123)
	if !ok || pa != frame+0x123 {
		t.Fatalf("Translate(%#x) = %#x, %v; want %#x, true", va+0x123, pa, ok, frame+0x123)
	}
	_ = img
}

func Test_Map_MultiPageRange(t *testing.T) {
	_, fl, tab := newTestTable(t, 64)

	// The free list hands out descending contiguous pages; the third pop is
	// the lowest, so [base, base+3*PageSize) is exactly the three frames.
	if _, err := fl.AllocPage(); err != nil {
		t.Fatal(err)
	}
	if _, err := fl.AllocPage(); err != nil {
		t.Fatal(err)
	}
	base, err := fl.AllocPage()
	if err != nil {
		t.Fatal(err)
	}

	// Unaligned va and size; rounding must cover all three pages.
	va := uint64(0x400000) + 16
	if err := tab.Map(va, 2*format.PageSize+32, base, PermBits(ProtRead, false)); err != nil {
		t.Fatal(err)
	}

	for i := uint64(0); i < 3; i++ {
		pa, ok := tab.Translate(0x400000 + i*format.PageSize)
		if !ok || pa != base+i*format.PageSize {
			t.Fatalf("page %d: Translate = %#x, %v", i, pa, ok)
		}
	}
	if _, ok := tab.Translate(0x400000 + 3*format.PageSize); ok {
		t.Fatal("page past the mapped range should be unmapped")
	}
}

func Test_Map_Collision(t *testing.T) {
	_, fl, tab := newTestTable(t, 32)

	frame, _ := fl.AllocPage()
	va := uint64(0x400000)
	if err := tab.Map(va, format.PageSize, frame, PermBits(ProtRead, false)); err != nil {
		t.Fatal(err)
	}
	err := tab.Map(va, format.PageSize, frame, PermBits(ProtRead, false))
	if !errors.Is(err, ErrMappingCollision) {
		t.Fatalf("expected ErrMappingCollision, got %v", err)
	}
}

func Test_Walk_AddressOutOfRange(t *testing.T) {
	_, fl, tab := newTestTable(t, 32)

	frame, _ := fl.AllocPage()
	err := tab.Map(format.MaxVA, format.PageSize, frame, PermBits(ProtRead, false))
	if !errors.Is(err, ErrAddressOutOfRange) {
		t.Fatalf("expected ErrAddressOutOfRange, got %v", err)
	}
	if _, ok := tab.Translate(format.MaxVA); ok {
		t.Fatal("Translate above MaxVA must fail")
	}
}

func Test_Walk_OutOfMemory(t *testing.T) {
	// 1 page for the root; intermediate tables have nothing left to come
	// from.
	_, _, tab := newTestTable(t, 1)

	err := tab.Map(0x400000, format.PageSize, format.DRAMBase, PermBits(ProtRead, false))
	if !errors.Is(err, phys.ErrOutOfMemory) {
		t.Fatalf("expected phys.ErrOutOfMemory, got %v", err)
	}
}

func Test_Unmap_Idempotent(t *testing.T) {
	_, fl, tab := newTestTable(t, 32)

	frame, _ := fl.AllocPage()
	va := uint64(0x400000)
	if err := tab.Map(va, format.PageSize, frame, PermBits(ProtRead|ProtWrite, false)); err != nil {
		t.Fatal(err)
	}

	if err := tab.Unmap(va, format.PageSize, false); err != nil {
		t.Fatal(err)
	}
	if _, ok := tab.Translate(va); ok {
		t.Fatal("still translates after unmap")
	}

	// Second unmap of the same range, and unmap of a never-mapped range,
	// are silent no-ops.
	if err := tab.Unmap(va, format.PageSize, false); err != nil {
		t.Fatalf("second unmap: %v", err)
	}
	if err := tab.Unmap(0x7000000, 4*format.PageSize, true); err != nil {
		t.Fatalf("unmap of hole: %v", err)
	}
}

func Test_Unmap_Reclaims(t *testing.T) {
	_, fl, tab := newTestTable(t, 32)

	before := fl.Stats().FreePages
	frame, _ := fl.AllocPage()
	va := uint64(0x400000)
	if err := tab.Map(va, format.PageSize, frame, PermBits(ProtRead|ProtWrite, false)); err != nil {
		t.Fatal(err)
	}
	if err := tab.Unmap(va, format.PageSize, true); err != nil {
		t.Fatal(err)
	}

	// The data frame came back; the two intermediate table pages stayed
	// with the tree.
	after := fl.Stats().FreePages
	if after != before-2 {
		t.Fatalf("free pages: before=%d after=%d, want diff of exactly the 2 table pages", before, after)
	}
}

func Test_Translate_RequiresReadOrWrite(t *testing.T) {
	_, fl, tab := newTestTable(t, 32)

	frame, _ := fl.AllocPage()
	va := uint64(0x400000)
	// Execute-only leaf: valid, but translate treats it as unmapped.
	if err := tab.Map(va, format.PageSize, frame, format.PTEExec|format.PTEAccessed); err != nil {
		t.Fatal(err)
	}
	if _, ok := tab.Translate(va); ok {
		t.Fatal("execute-only mapping must not translate")
	}

	pte, err := tab.Entry(va)
	if err != nil {
		t.Fatal(err)
	}
	if pte&format.PTEValid == 0 {
		t.Fatal("entry should still be valid")
	}
}
