package vm_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hz826/pkevm/internal/format"
	"github.com/hz826/pkevm/mem"
	"github.com/hz826/pkevm/pkg/vm"
)

func bootSmall(t *testing.T) *vm.Machine {
	t.Helper()
	m, err := vm.Boot(vm.Options{
		MemSize:         2 << 20, // 2 MiB keeps tests fast
		KernelTextPages: 8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestBoot_Defaults(t *testing.T) {
	m := bootSmall(t)

	layout := m.Layout()
	require.Equal(t, format.DRAMBase, layout.KernBase)
	require.Equal(t, layout.KernBase+8*uint64(format.PageSize), layout.TextEnd)
	require.Equal(t, m.Image.End(), layout.PhysTop)

	// Kernel space identity-maps its own root page.
	pa, ok := m.Kernel.Translate(m.Kernel.Root())
	require.True(t, ok)
	require.Equal(t, m.Kernel.Root(), pa)
}

func TestProcess_MallocTranslateFree(t *testing.T) {
	m := bootSmall(t)
	p, err := m.NewProcess()
	require.NoError(t, err)

	va, err := p.Malloc(64, vm.ProtRead|vm.ProtWrite)
	require.NoError(t, err)

	pa, ok := p.Translate(va)
	require.True(t, ok)
	require.True(t, m.Image.Contains(pa, 64), "heap memory must be backed by DRAM")

	// The kernel's direct map reaches the same frame without copying.
	kpa, ok := m.Kernel.Translate(pa)
	require.True(t, ok)
	require.Equal(t, pa, kpa)

	require.NoError(t, p.Free(va))
	_, ok = p.Translate(format.PageRoundDown(va))
	require.False(t, ok, "heap page must be unmapped once fully freed")
}

func TestProcess_BigAndSmallMix(t *testing.T) {
	m := bootSmall(t)
	p, err := m.NewProcess()
	require.NoError(t, err)

	small, err := p.Malloc(24, vm.ProtRead|vm.ProtWrite)
	require.NoError(t, err)
	big, err := p.Malloc(3*format.PageSize, vm.ProtRead|vm.ProtWrite)
	require.NoError(t, err)
	require.NotEqual(t, format.PageRoundDown(small), format.PageRoundDown(big))

	require.NoError(t, p.Free(big))
	require.NoError(t, p.Free(small))
	require.NoError(t, p.Heap.CheckTiling())

	st := p.Heap.Stats()
	require.Equal(t, st.PagesMapped, st.PagesReclaimed, "all heap pages must come back")
}

func TestBoot_FileBackedSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.img")
	m, err := vm.Boot(vm.Options{
		MemSize:         2 << 20,
		KernelTextPages: 8,
		ImagePath:       path,
	})
	require.NoError(t, err)

	root := m.Kernel.Root()
	require.NoError(t, m.Sync(context.Background()))
	require.NoError(t, m.Close())

	// The flushed image holds the kernel page table: reopen it and walk the
	// same tree.
	img, err := mem.OpenImage(path, format.DRAMBase)
	require.NoError(t, err)
	defer img.Close()

	// Root page's first-level entry for the kernel base must be valid.
	slot := root + format.SlotOffset(format.VPN(2, format.DRAMBase))
	require.NotZero(t, img.Word(slot)&format.PTEValid, "persisted kernel root lost its entries")
}

func TestBoot_BadOptions(t *testing.T) {
	_, err := vm.Boot(vm.Options{MemSize: 12345}) // not page-aligned
	require.Error(t, err)

	_, err = vm.Boot(vm.Options{MemSize: 2 << 20, KernelTextPages: 1024}) // text swallows DRAM
	require.Error(t, err)
}
